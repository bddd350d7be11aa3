//go:build !integration

package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"candidate-screening/internal/domain/model"
)

func TestOneLine(t *testing.T) {
	if got := oneLine("tms:\n  503   upstream", 60); got != "tms: 503 upstream" {
		t.Errorf("got %q", got)
	}
	got := oneLine(strings.Repeat("é", 80), 10)
	if r := []rune(got); len(r) != 10 || r[9] != '…' {
		t.Errorf("expected 10 runes ending in an ellipsis, got %q", got)
	}
}

func TestPrintJobs(t *testing.T) {
	app, err := model.NewJob(model.JobTypeAnalyze, "app-1", "", 0, time.Time{}, 5)
	if err != nil {
		t.Fatal(err)
	}
	sync, err := model.NewJob(model.JobTypeSync, "", "req-1", 0, time.Time{}, 5)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	printJobs(&buf, []*model.Job{app, sync})
	out := buf.String()
	for _, want := range []string{app.ID, "app-1", "req:req-1", "0/5", "2 jobs"} {
		if !strings.Contains(out, want) {
			t.Errorf("output is missing %q:\n%s", want, out)
		}
	}
}

func TestClearAllNeedsConfirmation(t *testing.T) {
	clearAll, clearYes = true, false
	defer func() { clearAll, clearYes = false, false }()

	err := jobsClearCmd.RunE(jobsClearCmd, nil)
	if err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Fatalf("expected a confirmation error, got %v", err)
	}
}

func TestEnqueueHelpListsJobTypes(t *testing.T) {
	for _, jt := range model.AllJobTypes {
		if !strings.Contains(jobsEnqueueCmd.Long, string(jt)) {
			t.Errorf("help text is missing %s", jt)
		}
	}
}
