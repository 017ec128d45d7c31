// Package judge holds the LLM-backed collaborators of the evaluation
// pipeline: the SOP step judge, the speaker-role identifier, and the SOP
// authoring helpers that turn script lines into verifiable intents.
//
// Every call goes through a Completer (normally *llm.Client). Callers treat
// errors from this package as degraded input, never as pipeline failures.
package judge
