// Package task runs long, LLM-backed batch jobs in the background.
//
// A task is a durable row (domain.Task) created PROCESSING by Engine.Submit.
// The Dispatcher routes it to the Handler registered for its type; the
// handler enumerates the work items not yet processed, fans them out with
// ProcessInParallel under a per-project concurrency limit, records progress
// after every item and writes the terminal status. A task moved to
// INTERRUPTED or FAILED by someone else is noticed at the next item
// boundary and never overwritten. On boot, Recovery resumes every task
// still PROCESSING; handlers recompute what is left, so resuming is safe.
package task
