package common

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateSubscription is a programmer error: a second Open on a
	// handle that was never closed would double-deliver every event.
	ErrDuplicateSubscription = errors.New("conversation channel already subscribed")

	// ErrHandleClosed is returned by operations on a closed channel handle.
	ErrHandleClosed = errors.New("conversation channel handle is closed")

	// ErrSubscriptionDropped signals a transport-level disconnect. The
	// subscription manager resubscribes; in-flight typing state is discarded.
	ErrSubscriptionDropped = errors.New("channel subscription dropped")

	// ErrMarkReadFailed wraps a failed mark-as-read call. Best effort: it is
	// logged and retried on the next foreground transition, never surfaced.
	ErrMarkReadFailed = errors.New("mark messages as read failed")
)

// SendError is surfaced to the compose UI when a message dispatch fails.
// RestoredInput carries the original text so the input field can be refilled.
type SendError struct {
	RestoredInput string
	Err           error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("message send failed: %v", e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}
