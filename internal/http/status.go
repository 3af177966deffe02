package http

import (
	"sync"
	"time"

	"github.com/fyrsmithlabs/repoindexer/internal/pipeline"
)

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	Account    string  `json:"account"`
	State      string  `json:"state"`
	Repository string  `json:"repository,omitempty"`
	Completed  int     `json:"completed"`
	Total      int     `json:"total"`
	Elapsed    float64 `json:"elapsed_seconds"`
}

// Tracker holds the latest pipeline progress. Update is a
// pipeline.ProgressCallback.
type Tracker struct {
	account string
	started time.Time

	mu   sync.RWMutex
	last pipeline.Progress
}

// NewTracker creates a tracker for a run against account.
func NewTracker(account string) *Tracker {
	return &Tracker{
		account: account,
		started: time.Now(),
		last:    pipeline.Progress{State: pipeline.StateInit},
	}
}

// Update records p.
func (t *Tracker) Update(p pipeline.Progress) {
	t.mu.Lock()
	t.last = p
	t.mu.Unlock()
}

// Snapshot returns the current status.
func (t *Tracker) Snapshot() StatusResponse {
	t.mu.RLock()
	p := t.last
	t.mu.RUnlock()
	return StatusResponse{
		Account:    t.account,
		State:      string(p.State),
		Repository: p.Repository,
		Completed:  p.Completed,
		Total:      p.Total,
		Elapsed:    time.Since(t.started).Seconds(),
	}
}
