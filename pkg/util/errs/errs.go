// Package errs contains error helpers shared by the proxy packages.
package errs

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

var ErrMissingConfig = errors.New("config is missing")

// SilentError wraps an error that is only logged at debug verbosity.
//
// It is used for invalid data sent by game clients, which would
// otherwise spam the log.
type SilentError struct{ error }

func (e *SilentError) Error() string { return e.error.Error() }
func (e *SilentError) Unwrap() error { return e.error }

func NewSilentErr(format string, a ...any) error {
	return &SilentError{fmt.Errorf(format, a...)}
}

func WrapSilent(err error) error {
	if err == nil {
		return nil
	}
	return &SilentError{err}
}

// IsSilent reports whether any error in err's chain is a SilentError.
func IsSilent(err error) bool {
	var s *SilentError
	return errors.As(err, &s)
}

// IsConnClosedErr reports whether err is the result of a peer
// or local close of a network connection.
func IsConnClosedErr(err error) bool {
	return err != nil && (errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE))
}
