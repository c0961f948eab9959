package retry

import "time"

// ExponentialBackoff returns delay based on attempt number.
// The delay doubles with each attempt: base * 2^attempt
func ExponentialBackoff(attempt int, base time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return base * (1 << attempt)
}

// CappedBackoff is ExponentialBackoff limited to max.
func CappedBackoff(attempt int, base, max time.Duration) time.Duration {
	if attempt > 30 {
		return max
	}
	d := ExponentialBackoff(attempt, base)
	if d > max || d <= 0 {
		return max
	}
	return d
}
