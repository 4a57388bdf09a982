package apperr

// Typed failures for the snapshot run
// Every error that reaches the command layer carries one of four kinds
// so the caller can tell a bad setup from a flaky node from a contract rejection

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConfig - missing/malformed credential, flag, address or artifact.
	KindConfig
	// KindTransport - network failure, timeout, node error or malformed response.
	KindTransport
	// KindExecution - the contract itself rejected the call (revert).
	KindExecution
	// KindIO - reading or writing local files.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindTransport:
		return "transport"
	case KindExecution:
		return "execution"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Config(op string, err error) error    { return newError(KindConfig, op, err) }
func Transport(op string, err error) error { return newError(KindTransport, op, err) }
func Execution(op string, err error) error { return newError(KindExecution, op, err) }
func IO(op string, err error) error        { return newError(KindIO, op, err) }

// Configf builds a config error from a message, for validation failures without a cause.
func Configf(op string, format string, args ...interface{}) error {
	return Config(op, fmt.Errorf(format, args...))
}

// KindOf returns the kind of the outermost classified error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case KindConfig:
		return 2
	case KindTransport:
		return 3
	case KindExecution:
		return 4
	case KindIO:
		return 5
	default:
		return 1
	}
}
