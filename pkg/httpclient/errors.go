package httpclient

import "errors"

var (
	// ErrEnvironment reports that the transfer engine is unavailable or cannot be tuned.
	ErrEnvironment = errors.New("transfer engine unavailable")
	// ErrFileAccess reports a certificate path that is not a readable file.
	ErrFileAccess = errors.New("file not readable")
	// ErrState reports a debug record requested before one was captured.
	ErrState = errors.New("invalid client state")
)

var errTooManyRedirects = errors.New("maximum redirects followed")

// transferError carries an error code decided before the engine runs
// (bad CA bundle, bad proxy, missing engine).
type transferError struct {
	code int
	err  error
}

func (e *transferError) Error() string { return e.err.Error() }
func (e *transferError) Unwrap() error { return e.err }
