// Package events carries task lifecycle notifications between components.
//
// The engine emits a TaskEvent when a task is submitted or interrupted.
// Subscribers register with an EventEmitter and receive every event; the
// engine itself subscribes to launch submitted tasks, which keeps the HTTP
// layer free of any dependency on how runs are scheduled.
package events
