// Package preflight provides readiness checks for the services and paths
// callqa depends on.
//
// These checks run in two contexts:
//   - "callqa serve" calls RunAll at startup and logs a WARN per failure, so
//     an operator sees a missing rules file or unwritable upload dir before
//     the first upload arrives.
//   - "callqa status" uses the individual checks to print a health table.
//
// The LLM check is only run when an API key is configured; without one the
// judge degrades to all-FAIL verdicts, which status reports separately.
package preflight
