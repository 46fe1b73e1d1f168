package tlc5940

import "github.com/pkg/errors"

var (
	// ErrConfiguration marks a failure to bring up a required resource
	// (BLANK line, grayscale clock, LED registration). Fatal to New.
	ErrConfiguration = errors.New("tlc5940: configuration error")

	// ErrTransport marks a failed bus write. The scheduler absorbs it and
	// retries on the next tick.
	ErrTransport = errors.New("tlc5940: transport error")

	// ErrInvalidChannel marks access to a channel id outside [0,N).
	ErrInvalidChannel = errors.New("tlc5940: invalid channel")

	// ErrHardwareLink marks a BLANK line that can no longer be driven.
	// The scheduler stops when it sees one.
	ErrHardwareLink = errors.New("tlc5940: hardware link error")
)

// kindError attaches one of the sentinel kinds to an underlying cause so
// that errors.Is matches both.
type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string {
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *kindError) Is(target error) bool { return target == e.kind }

func (e *kindError) Unwrap() error { return e.cause }

func withKind(kind, cause error, format string, args ...interface{}) error {
	if cause == nil {
		return errors.Wrapf(kind, format, args...)
	}
	return &kindError{kind: kind, cause: errors.Wrapf(cause, format, args...)}
}

func invalidChannel(id, n int) error {
	return errors.Wrapf(ErrInvalidChannel, "id %d not in [0,%d)", id, n)
}
