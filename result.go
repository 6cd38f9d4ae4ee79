package eventbus

import "time"

// PostResult reports how one published event was delivered.
type PostResult struct {
	Event     any
	Succeeded int
	Failed    int
	// Timings holds the handler duration of every subscription that
	// completed without error.
	Timings map[*Subscription]time.Duration
}

func newPostResult(event any, expected int) *PostResult {
	return &PostResult{
		Event:   event,
		Timings: make(map[*Subscription]time.Duration, expected),
	}
}

// Delivered returns Succeeded + Failed.
func (r *PostResult) Delivered() int { return r.Succeeded + r.Failed }

// Millis returns the recorded duration for sub in milliseconds, and whether
// one was recorded.
func (r *PostResult) Millis(sub *Subscription) (int64, bool) {
	d, ok := r.Timings[sub]
	return d.Milliseconds(), ok
}
