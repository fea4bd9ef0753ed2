package auth

import "time"

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	// Stop cancels the timer, reporting false when it already fired or was stopped.
	Stop() bool
}

// Clock schedules callbacks. The authorization timeout and the refresh timer are both driven through it.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock returns a [Clock] backed by [time.AfterFunc].
func SystemClock() Clock {
	return systemClock{}
}
