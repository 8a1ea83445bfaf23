package typing

import "time"

// Timer is a cancellable one-shot timer owned by the state machine. Every
// transition out of the active state must stop it so no callback fires into a
// torn-down view.
type Timer interface {
	Stop() bool
	Reset(d time.Duration) bool
}

// Clock creates timers. Tests substitute a manual clock to drive decay
// deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }
