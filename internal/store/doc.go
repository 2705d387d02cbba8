// Package store defines the persistence interfaces of the task engine: the
// task records themselves, per-project engine settings and the work-item
// repositories (chunks, questions, datasets, conversations, tags, images,
// eval rows and uploaded files) the handlers enumerate.
package store
