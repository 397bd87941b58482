package clock

import "time"

// Clock is an injectable time source. Expiry and lockout logic compares
// timestamps from here so tests can drive time deterministically.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// Real returns the wall clock.
func Real() Clock {
	return realClock{}
}

// Fixed is a manually advanced clock for tests.
type Fixed struct {
	Current time.Time
}

// NewFixed builds a fixed clock starting at t.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{Current: t}
}

// Now returns the clock's current instant.
func (f *Fixed) Now() time.Time {
	return f.Current
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.Current = f.Current.Add(d)
}
