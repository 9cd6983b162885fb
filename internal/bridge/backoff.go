package bridge

import "time"

// Backoff is the wait before the next cycle after failures consecutive
// failed cycles: interval * 2^failures, capped at max (max <= 0: no cap).
//
//	failures 0: interval
//	failures 1: 2 * interval
//	failures 2: 4 * interval
func Backoff(interval, max time.Duration, failures int) time.Duration {
	if interval <= 0 {
		interval = time.Second
	}
	d := interval
	for i := 0; i < failures; i++ {
		if d > time.Duration(1<<62)/2 {
			break
		}
		d *= 2
		if max > 0 && d >= max {
			return max
		}
	}
	if max > 0 && d > max {
		return max
	}
	return d
}
