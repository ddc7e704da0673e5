package scaffold

import (
	"errors"
	"fmt"

	"hyperthink/internal/llmprovider"
)

// ErrConfigInvalid wraps a rejected Config at NewController time.
var ErrConfigInvalid = errors.New("scaffold: invalid config")

// ErrEmptyCompletion is returned when a model call that must produce
// non-empty content (the starter call, a reviewer call, the synthesizer call)
// comes back blank.
var ErrEmptyCompletion = errors.New("scaffold: completion produced no content")

// ErrIterationCapReached is returned by Query when max_iterations model calls
// (the starter call included) elapse without acceptance; the last seen output
// is still usable, it is simply not an accepted answer.
var ErrIterationCapReached = errors.New("scaffold: iteration cap reached without acceptance")

// ErrProviderRejected and ErrTransport re-export the llmprovider sentinels so
// callers of this package never need to import llmprovider just to classify
// a Completer failure.
var (
	ErrProviderRejected = llmprovider.ErrProviderRejected
	ErrTransport        = llmprovider.ErrTransport
)

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfigInvalid, fmt.Sprintf(format, args...))
}
