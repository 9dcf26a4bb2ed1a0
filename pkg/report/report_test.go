package report

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestReporter_SpanLifecycle(t *testing.T) {
	r := NewReporter("", "checkout.yaml", "android", "com.example.shop")

	id := r.Begin("click", "Add to cart")
	r.End(id, nil)
	id = r.Begin("awaitEvent", "purchase")
	r.End(id, errors.New("deadline"))
	r.Finish(nil)

	run := r.Snapshot()
	if run.Status != StatusFailed {
		t.Errorf("run status = %s, want failed (one span failed)", run.Status)
	}
	if run.Summary != (Summary{Total: 2, Passed: 1, Failed: 1}) {
		t.Errorf("summary = %+v", run.Summary)
	}
	if run.Spans[1].Error != "deadline" {
		t.Errorf("failed span must carry the error, got %q", run.Spans[1].Error)
	}
	if run.Spans[0].End == nil {
		t.Error("closed span must have an end time")
	}
}

func TestReporter_StepWrapsFunction(t *testing.T) {
	r := NewReporter("", "s", "ios", "app")

	if err := r.Step("launchApp", "", func() error { return nil }); err != nil {
		t.Fatalf("step failed: %v", err)
	}
	wantErr := errors.New("boom")
	if err := r.Step("click", "", func() error { return wantErr }); err != wantErr {
		t.Errorf("step must propagate the error, got %v", err)
	}

	run := r.Snapshot()
	if run.Spans[0].Status != StatusPassed || run.Spans[1].Status != StatusFailed {
		t.Errorf("span statuses = %s, %s", run.Spans[0].Status, run.Spans[1].Status)
	}
}

func TestReporter_AllPassed(t *testing.T) {
	r := NewReporter("", "s", "android", "app")
	r.Step("a", "", func() error { return nil })
	r.Finish(nil)

	if got := r.Snapshot().Status; got != StatusPassed {
		t.Errorf("run status = %s, want passed", got)
	}
}

func TestReporter_PersistsAtomically(t *testing.T) {
	dir := t.TempDir()
	r := NewReporter(dir, "checkout.yaml", "android", "com.example.shop")
	r.Step("click", "Buy", func() error { return nil })
	r.Finish(nil)

	data, err := os.ReadFile(filepath.Join(dir, "report.json"))
	if err != nil {
		t.Fatalf("report.json missing: %v", err)
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		t.Fatalf("report.json is not valid JSON: %v", err)
	}
	if run.ID == "" || run.ID != r.RunID() {
		t.Errorf("persisted run id %q, want %q", run.ID, r.RunID())
	}
	if run.Summary.Passed != 1 {
		t.Errorf("summary = %+v", run.Summary)
	}
	if _, err := os.Stat(filepath.Join(dir, "report.json.tmp")); !os.IsNotExist(err) {
		t.Error("temp file must not survive a flush")
	}
}
