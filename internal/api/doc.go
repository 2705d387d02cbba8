// Package api exposes the task engine over HTTP: submitting, listing,
// inspecting, interrupting and deleting tasks. Handlers translate HTTP
// concerns to engine calls and map internal errors to safe responses.
package api
