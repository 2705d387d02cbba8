// Package llm is the boundary between the generation services and the model
// providers. A Router picks the provider named by a task's model info,
// applies the per-request timeout and retries transient failures with
// exponential backoff.
package llm
