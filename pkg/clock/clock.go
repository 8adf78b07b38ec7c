// Package clock provides a small time abstraction so components that make
// time-based decisions (cache TTLs, breaker cooldowns, dispatch windows) can
// be tested with controlled clocks instead of time.Now().
package clock

import "time"

// Clock provides time operations for testability.
type Clock interface {
	// Now returns the current time.
	//
	// Production implementations should return time.Now().
	// Test implementations can return fixed or controlled times.
	Now() time.Time
}

// SystemClock is a Clock implementation that uses the system time.
type SystemClock struct{}

// Now returns the current system time.
func (c *SystemClock) Now() time.Time {
	return time.Now()
}
