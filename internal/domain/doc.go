// Package domain contains the entities shared by every layer: tasks and
// their lifecycle, the model info a task carries, per-type task configs and
// the work items the handlers process.
package domain
