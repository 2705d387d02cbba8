// Package logger sets up the process-wide slog JSON logger and carries
// request and task loggers through context.
//
// Setup reads the level from the server config. The HTTP trace middleware
// stores a logger tagged with trace_id via WithLogger; stores and handlers
// pick it up with FromContextOrDefault and fall back to their component
// logger outside a request, e.g. in task runs launched by the engine.
package logger
