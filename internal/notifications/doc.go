// Package notifications pages supervisors through ntfy.
//
// A call whose evaluation raised supervisor alerts is published to the topic
// configured under [notifications] in config.toml. Batch runs from the CLI
// also publish a completion summary. With no topic configured NewService
// returns a no-op, so callers never need to check whether delivery is on.
package notifications
