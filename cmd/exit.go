package cmd

// ExitError is returned by a command that must end the process with a
// specific exit code. An empty Message means the command already reported
// the problem.
type ExitError struct {
	Code    int
	Message string
}

// NewExitError creates an ExitError.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func (e *ExitError) Error() string {
	return e.Message
}
