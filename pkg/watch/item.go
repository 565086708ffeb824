package watch

import "time"

// Item is one registered application to poll. AppID addresses the remote
// directory entry, BotID keys the persisted observation. Items are loaded
// once at the start of a run and never mutated.
type Item struct {
	AppID string
	BotID string
}

// Result is the terminal outcome of resolving one Item. Exactly one Result
// per input Item reaches the Report, however many fetch attempts the item
// consumed on the way.
type Result struct {
	Item Item

	// Success reports that the retry loop terminated normally, with or
	// without a count. Retry exhaustion and cancellation clear it.
	Success bool

	// Count is the observed guild count, valid only when HasCount is set.
	Count    int64
	HasCount bool

	// Attempts is the number of fetch calls made, rate-limited ones included.
	Attempts int

	// Elapsed spans the retry loop entry to exit, backoff sleeps included.
	Elapsed time.Duration

	// Err carries the terminal error for failed items.
	Err error

	// SinkErr is set by the scheduler when recording the count failed.
	SinkErr error
}

// Recorded reports whether the item produced a count that reached the sink.
func (r Result) Recorded() bool {
	return r.Success && r.HasCount && r.SinkErr == nil
}
