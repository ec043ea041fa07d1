// Package llm provides chat-completion providers for summarization and
// transcript analysis.
//
// Two providers are available: an OpenRouter chat client and a Gemini client
// backed by the official SDK. Both return raw JSON payloads; callers decode
// with DecodeJSON, which tolerates code fences and prose wrapping around the
// JSON body.
//
// # Retry Behaviour
//
// The OpenRouter client retries on HTTP 408/429/5xx errors and network
// timeouts with exponential backoff, honoring Retry-After when present.
// Context cancellation aborts retries immediately.
package llm
