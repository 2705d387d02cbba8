// Package generation holds the per-item domain services the task handlers
// call: question, answer, conversation and tag generation, chunk cleaning,
// dataset scoring, benchmark generation and model grading, and splitting
// uploaded files into chunks.
//
// Every service renders an embedded prompt template, sends it through an
// llm.Completer and persists the parsed result through the stores. Model
// output that cannot be parsed fails the item with ErrInvalidResponse.
package generation
