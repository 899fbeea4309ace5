/* ippserver - a self-contained network IPP server
 *
 * Job state machine tests
 */

package main

import (
	"context"
	"testing"

	"github.com/OpenPrinting/goipp"
)

func newTestJob(t *testing.T) *Job {
	t.Helper()

	p := &Printer{jobs: map[int]*Job{}, nextJobID: 1}
	req := goipp.NewRequest(goipp.MakeVersion(2, 0), goipp.OpPrintJob, 1)
	req.Operation.Add(goipp.MakeAttribute("job-name", goipp.TagName, goipp.String("test job")))
	req.Operation.Add(goipp.MakeAttribute("requesting-user-name", goipp.TagName, goipp.String("alice")))

	return p.CreateJob(1, req)
}

func TestJobInitialState(t *testing.T) {
	j := newTestJob(t)

	if j.State() != jobStatePending {
		t.Errorf("initial state = %q, want %q", j.State(), jobStatePending)
	}
	if j.Name != "test job" {
		t.Errorf("Name = %q, want %q", j.Name, "test job")
	}
	if j.Username != "alice" {
		t.Errorf("Username = %q, want %q", j.Username, "alice")
	}
	if j.IsTerminal() {
		t.Error("new job reports terminal")
	}
}

func TestJobStartComplete(t *testing.T) {
	ctx := context.Background()
	j := newTestJob(t)

	if err := j.Start(ctx); err != nil {
		t.Fatalf("Start: %s", err)
	}
	if j.State() != jobStateProcessing {
		t.Errorf("state after Start = %q, want %q", j.State(), jobStateProcessing)
	}

	if err := j.Complete(ctx); err != nil {
		t.Fatalf("Complete: %s", err)
	}
	if j.State() != jobStateCompleted {
		t.Errorf("state after Complete = %q, want %q", j.State(), jobStateCompleted)
	}
	if !j.IsTerminal() {
		t.Error("completed job does not report terminal")
	}
	if j.Completed.IsZero() {
		t.Error("Completed timestamp was not set")
	}
}

func TestJobCancelPending(t *testing.T) {
	ctx := context.Background()
	j := newTestJob(t)

	if err := j.Cancel(ctx); err != nil {
		t.Fatalf("Cancel: %s", err)
	}
	if j.State() != jobStateCanceled {
		t.Errorf("state after Cancel = %q, want %q", j.State(), jobStateCanceled)
	}
}

func TestJobCancelProcessingIsDeferred(t *testing.T) {
	ctx := context.Background()
	j := newTestJob(t)

	if err := j.Start(ctx); err != nil {
		t.Fatalf("Start: %s", err)
	}

	if err := j.Cancel(ctx); err != nil {
		t.Fatalf("Cancel: %s", err)
	}

	// The state machine has not yet observed the cancel: a
	// processing job's transition is deferred to ObserveCancel
	if j.State() != jobStateProcessing {
		t.Errorf("state immediately after Cancel = %q, want %q", j.State(), jobStateProcessing)
	}
	if !j.Canceled() {
		t.Error("Canceled() = false, want true")
	}

	if !j.ObserveCancel(ctx) {
		t.Fatal("ObserveCancel returned false")
	}
	if j.State() != jobStateCanceled {
		t.Errorf("state after ObserveCancel = %q, want %q", j.State(), jobStateCanceled)
	}
}

func TestJobCancelTerminalFails(t *testing.T) {
	ctx := context.Background()
	j := newTestJob(t)

	if err := j.Cancel(ctx); err != nil {
		t.Fatalf("Cancel: %s", err)
	}
	if err := j.Cancel(ctx); err != ErrJobTerminal {
		t.Errorf("second Cancel error = %v, want %v", err, ErrJobTerminal)
	}
}

func TestJobSameSession(t *testing.T) {
	j := newTestJob(t)

	if !j.SameSession(1) {
		t.Error("SameSession(1) = false, want true")
	}
	if j.SameSession(2) {
		t.Error("SameSession(2) = true, want false")
	}
}

func TestJobStateReasons(t *testing.T) {
	ctx := context.Background()
	j := newTestJob(t)

	if got := j.StateReasons(); len(got) != 1 || got[0] != "none" {
		t.Errorf("pending reasons = %v, want [none]", got)
	}

	j.Start(ctx)
	if got := j.StateReasons(); len(got) != 1 || got[0] != "job-printing" {
		t.Errorf("processing reasons = %v, want [job-printing]", got)
	}

	j.Complete(ctx)
	if got := j.StateReasons(); len(got) != 1 || got[0] != "job-completed-successfully" {
		t.Errorf("completed reasons = %v, want [job-completed-successfully]", got)
	}
}

func TestJobOpenDocumentOnlyOnce(t *testing.T) {
	dir := t.TempDir()
	j := newTestJob(t)

	f, err := j.OpenDocument(dir, "application/pdf")
	if err != nil {
		t.Fatalf("OpenDocument: %s", err)
	}
	f.Close()

	if _, err := j.OpenDocument(dir, "application/pdf"); err != ErrDocumentAlreadySent {
		t.Errorf("second OpenDocument error = %v, want %v", err, ErrDocumentAlreadySent)
	}
}

func TestExtensionForFormat(t *testing.T) {
	cases := map[string]string{
		"application/pdf":         "pdf",
		"application/postscript":  "ps",
		"application/vnd.hp-PCL":  "pcl",
		"image/jpeg":              "jpg",
		"image/png":               "png",
		"application/octet-stream": "prn",
	}

	for format, want := range cases {
		if got := extensionForFormat(format); got != want {
			t.Errorf("extensionForFormat(%q) = %q, want %q", format, got, want)
		}
	}
}
