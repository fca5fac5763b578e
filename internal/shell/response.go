// Package shell implements the line-oriented command shell: input sources,
// the operator console, the script stack and recursion guard, the REPL
// driver and the script executor that nests file-sourced execution.
package shell

// Status classifies the outcome of a dispatched command.
type Status int

const (
	// StatusOK means the command ran; its message is printed.
	StatusOK Status = iota
	// StatusFailed means the command reported an error. Scripts stop on it.
	StatusFailed
	// StatusTerminate asks the whole session to end.
	StatusTerminate
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFailed:
		return "failed"
	case StatusTerminate:
		return "terminate"
	default:
		return "unknown"
	}
}

// Response is the result of applying one command.
// Termination is carried by Status, never by message text.
type Response struct {
	Status  Status
	Message string
}

// OK builds a successful response.
func OK(message string) Response {
	return Response{Status: StatusOK, Message: message}
}

// Fail builds a failed response.
func Fail(message string) Response {
	return Response{Status: StatusFailed, Message: message}
}

// Terminate builds a response that ends the session.
func Terminate(message string) Response {
	return Response{Status: StatusTerminate, Message: message}
}

// Success reports whether the response does not signal an error.
// A Terminate response counts as successful.
func (r Response) Success() bool {
	return r.Status != StatusFailed
}

// Terminates reports whether the session should end.
func (r Response) Terminates() bool {
	return r.Status == StatusTerminate
}
