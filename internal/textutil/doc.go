// Package textutil provides text helpers shared by the scoring, risk scan,
// and upload paths.
//
// The primary use cases are:
//   - Normalizing judge step keys for tolerant comparison
//   - Case-insensitive phrase matching for risk and phase keywords
//   - Sanitizing uploaded filenames for safe filesystem use
package textutil
