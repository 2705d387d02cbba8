// Package config loads the server settings from config.yaml, a .env file
// and FORGE_ prefixed environment variables, in increasing precedence, and
// validates them before anything starts.
package config
