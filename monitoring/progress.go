package monitoring

import (
	"sync"
	"time"
)

// A ProgressBar tracks how much of a trace replay is done.
type ProgressBar struct {
	sync.Mutex
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	PageFaults uint64    `json:"page_faults"`
	Err        string    `json:"error,omitempty"`
}

// IncrementFinished adds a certain amount to finished accesses.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.Finished += amount
}

// IncrementPageFaults counts accesses skipped because of a page fault.
func (b *ProgressBar) IncrementPageFaults(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.PageFaults += amount
}

// Fail records the error that stopped the replay.
func (b *ProgressBar) Fail(err error) {
	b.Lock()
	defer b.Unlock()

	b.Err = err.Error()
}
