// Package report records a run as a sequence of explicit spans. Every
// interaction opens a span before it touches the device and closes it with
// the outcome, so the report always reflects what actually ran.
//
// Output layout:
//   - report.json: the run summary, rewritten atomically after every change
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status of the run or a single span.
type Status string

const (
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
)

// Span is one recorded interaction: a step, a device call, a wait.
type Span struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Detail   string     `json:"detail,omitempty"`
	Status   Status     `json:"status"`
	Start    time.Time  `json:"start"`
	End      *time.Time `json:"end,omitempty"`
	Duration int64      `json:"durationMs"`
	Error    string     `json:"error,omitempty"`
}

// Run is the serialized report.
type Run struct {
	ID       string     `json:"id"`
	Scenario string     `json:"scenario"`
	Platform string     `json:"platform"`
	AppID    string     `json:"appId"`
	Status   Status     `json:"status"`
	Start    time.Time  `json:"start"`
	End      *time.Time `json:"end,omitempty"`
	Summary  Summary    `json:"summary"`
	Spans    []Span     `json:"spans"`
}

// Summary counts spans by outcome.
type Summary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// Reporter accumulates spans for one run and persists the report after every
// span transition. Safe for concurrent use; background event waiters report
// from their own goroutines.
type Reporter struct {
	mu   sync.Mutex
	run  Run
	dir  string
	next int
}

// NewReporter starts a run report. dir may be empty, in which case nothing is
// persisted and the report lives in memory only (tests, dry runs).
func NewReporter(dir, scenario, platform, appID string) *Reporter {
	return &Reporter{
		dir: dir,
		run: Run{
			ID:       uuid.NewString(),
			Scenario: scenario,
			Platform: platform,
			AppID:    appID,
			Status:   StatusRunning,
			Start:    time.Now(),
		},
	}
}

// RunID returns the generated run identifier.
func (r *Reporter) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run.ID
}

// Begin opens a span and returns its id for the matching End call.
func (r *Reporter) Begin(name, detail string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := fmt.Sprintf("span-%03d", r.next)
	r.next++
	r.run.Spans = append(r.run.Spans, Span{
		ID:     id,
		Name:   name,
		Detail: detail,
		Status: StatusRunning,
		Start:  time.Now(),
	})
	r.flushLocked()
	return id
}

// End closes a span with the outcome. A nil err marks it passed.
func (r *Reporter) End(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.run.Spans {
		if r.run.Spans[i].ID != id {
			continue
		}
		s := &r.run.Spans[i]
		now := time.Now()
		s.End = &now
		s.Duration = now.Sub(s.Start).Milliseconds()
		if err != nil {
			s.Status = StatusFailed
			s.Error = err.Error()
		} else {
			s.Status = StatusPassed
		}
		break
	}
	r.flushLocked()
}

// Step runs fn inside a span. The span closes with fn's error before it
// propagates.
func (r *Reporter) Step(name, detail string, fn func() error) error {
	id := r.Begin(name, detail)
	err := fn()
	r.End(id, err)
	return err
}

// Finish closes the run. The run fails if any span failed or runErr is set.
func (r *Reporter) Finish(runErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.run.End = &now
	r.run.Summary = r.summarizeLocked()
	if runErr != nil || r.run.Summary.Failed > 0 {
		r.run.Status = StatusFailed
	} else {
		r.run.Status = StatusPassed
	}
	r.flushLocked()
}

// Snapshot returns a deep copy of the run for inspection.
func (r *Reporter) Snapshot() Run {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := r.run
	cp.Spans = make([]Span, len(r.run.Spans))
	copy(cp.Spans, r.run.Spans)
	cp.Summary = r.summarizeLocked()
	return cp
}

func (r *Reporter) summarizeLocked() Summary {
	var s Summary
	for _, sp := range r.run.Spans {
		s.Total++
		switch sp.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

func (r *Reporter) flushLocked() {
	if r.dir == "" {
		return
	}
	r.run.Summary = r.summarizeLocked()
	atomicWriteJSON(filepath.Join(r.dir, "report.json"), &r.run)
}

// atomicWriteJSON writes via a temp file and rename so a concurrent reader
// never observes a partial report.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
