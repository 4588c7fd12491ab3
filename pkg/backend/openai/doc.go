// Package openai implements the Backend interface for OpenAI-compatible
// chat completion APIs.
//
// The adapter transforms gateway completion requests into chat completion
// calls (the prompt becomes a single user message), normalizes responses,
// and reads streamed completions from the provider's SSE endpoint. Backend
// failures are mapped into the backend package's error taxonomy by the
// embedded HTTPBackend.
package openai
