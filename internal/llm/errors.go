package llm

import "fmt"

// ErrorKind classifies gateway failures so the pipeline boundary can pick
// the right user-facing message; the gateway itself never speaks to users.
type ErrorKind string

const (
	KindTransport ErrorKind = "TRANSPORT"
	KindAuth      ErrorKind = "AUTH"
	KindDecode    ErrorKind = "DECODE"
)

// Error is a typed gateway failure.
type Error struct {
	Kind     ErrorKind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("llm %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
