// Package llm is the chat-completion transport shared by the SOP judge, the
// speaker-role identifier, the sentiment classifier, and SOP authoring helpers.
//
// It speaks the OpenAI-compatible chat completions protocol (Groq by default,
// OpenRouter and similar gateways work unchanged) and always asks for JSON
// output. Callers decode the returned payload with DecodeLLMJSON, which
// tolerates code fences and prose around the object.
//
// # Retry Behaviour
//
// Requests are retried on HTTP 408/429/5xx, empty completions, and network
// timeouts with exponential backoff (base 1s, max 10s, up to 5 attempts by
// default). Retry-After is honoured when present. Context cancellation aborts
// retries immediately. This is the only retry loop in callqa; callers above
// this package degrade instead of retrying.
//
// # Errors
//
// A missing API key is ErrConfiguration. Transport and provider failures are
// ErrExternalTool, or ErrTimeout when the deadline expired.
package llm
