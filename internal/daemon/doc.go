// Package daemon runs the long-lived "callqa serve" process.
//
// It wires configuration, the record store, the call evaluator, and the
// HTTP API into a single lifecycle with flock-based locking so only one
// server owns a data directory at a time. Startup runs the preflight checks
// and logs failures without refusing to start.
//
// Keep orchestration here: scoring belongs in pipeline and its leaf
// packages, and the handlers only translate HTTP to those calls.
package daemon
