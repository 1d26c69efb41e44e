package main

// Exit codes
const (
	ExitSuccess      = 0 // Success
	ExitError        = 1 // General error (invalid arguments, runtime failure)
	ExitDataNotFound = 2 // Record file not found
	ExitDataError    = 3 // Malformed record file or input publications
	ExitWriteError   = 4 // Saving the record file failed
	ExitConfigError  = 5 // Invalid configuration
)
