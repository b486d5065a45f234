package action

import "time"

// DefaultBaseDelayMs and DefaultMaxDelayMs parameterize Backoff (spec §4.4
// step 7): delay := min(60000, 2000*2^(attempt-1)) milliseconds.
const (
	DefaultBaseDelayMs int64 = 2000
	DefaultMaxDelayMs  int64 = 60000
)

// Backoff computes the retry delay for the given attempt number
// (1-indexed: attempt is the attempt that just failed).
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := DefaultBaseDelayMs
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= DefaultMaxDelayMs {
			delay = DefaultMaxDelayMs
			break
		}
	}
	if delay > DefaultMaxDelayMs {
		delay = DefaultMaxDelayMs
	}
	return time.Duration(delay) * time.Millisecond
}
