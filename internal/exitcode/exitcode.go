// Package exitcode defines the process exit codes.
package exitcode

const (
	// Success indicates a normal exit.
	Success = 0

	// UserError indicates bad flags or arguments.
	UserError = 1

	// StorageError indicates the data directory or local database could not be used.
	StorageError = 2

	// UIError indicates the terminal UI failed.
	UIError = 3
)
