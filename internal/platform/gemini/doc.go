// Package gemini implements llm.Provider on Google's Gemini API through the
// google.golang.org/genai client.
//
// Clients are created lazily, one per API key, because every task may carry
// its own credentials in its model info. The key from configuration is used
// when a task has none.
//
// Blocked prompts and safety stops map to llm.ErrContentBlocked and client
// errors (4xx except 408 and 429) to llm.ErrInvalidConfig, so the router
// does not retry them.
package gemini
