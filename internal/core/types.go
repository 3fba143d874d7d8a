package core

import (
	"time"

	"github.com/JonMunkholm/pokelab/internal/pokeapi"
)

// JobKind names the two operations that replace the collection.
type JobKind string

const (
	JobFetch  JobKind = "fetch"
	JobImport JobKind = "import"
)

// JobPhase indicates the current stage of a job.
type JobPhase string

const (
	PhaseStarting  JobPhase = "starting"
	PhaseFetching  JobPhase = "fetching"
	PhaseReading   JobPhase = "reading"
	PhaseComplete  JobPhase = "complete"
	PhaseFailed    JobPhase = "failed"
	PhaseCancelled JobPhase = "cancelled"
)

// Done reports whether the phase is terminal.
func (p JobPhase) Done() bool {
	return p == PhaseComplete || p == PhaseFailed || p == PhaseCancelled
}

// JobProgress is the state broadcast to progress subscribers.
type JobProgress struct {
	JobID    string   `json:"jobId"`
	Kind     JobKind  `json:"kind"`
	Phase    JobPhase `json:"phase"`
	FileName string   `json:"fileName,omitempty"`

	// Fetch: records accumulated of Total. Import: records converted so far,
	// Total stays 0 and byte counts drive Percent.
	Current int `json:"current"`
	Total   int `json:"total"`

	BytesRead  int64 `json:"bytesRead,omitempty"`
	BytesTotal int64 `json:"bytesTotal,omitempty"`

	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// Percent returns progress in 0-100. Count-based progress wins when the
// total is known; otherwise bytes are used.
func (p JobProgress) Percent() int {
	if p.Phase == PhaseComplete {
		return 100
	}
	if p.Total > 0 {
		return min(p.Current*100/p.Total, 100)
	}
	if p.BytesTotal > 0 {
		return min(int(p.BytesRead*100/p.BytesTotal), 100)
	}
	return 0
}

// JobResult is the outcome of a finished job.
type JobResult struct {
	JobID    string  `json:"jobId"`
	Kind     JobKind `json:"kind"`
	FileName string  `json:"fileName,omitempty"`

	Records int `json:"records"`

	// Fetch only.
	Total  int                   `json:"total,omitempty"`
	Failed []pokeapi.FailedEntry `json:"failed,omitempty"`

	// Import only: custom columns registered for unmapped targets.
	AddedColumns []string `json:"addedColumns,omitempty"`

	Duration time.Duration `json:"-"`
	Error    string        `json:"error,omitempty"`
	Code     string        `json:"code,omitempty"`
}

// Complete reports whether the job succeeded with no dropped entries.
func (r *JobResult) Complete() bool {
	return r.Error == "" && len(r.Failed) == 0
}

// ImportResult is the outcome of a synchronous import.
type ImportResult struct {
	Records      int
	AddedColumns []string
	Duration     time.Duration
}
