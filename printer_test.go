/* ippserver - a self-contained network IPP server
 *
 * Printer tests
 */

package main

import (
	"context"
	"testing"

	"github.com/OpenPrinting/goipp"
)

func TestPrinterMatchesURI(t *testing.T) {
	p := testPrinter(t) // uri = "ipp://localhost/ipp"

	cases := map[string]bool{
		"ipp://localhost/ipp":  true,
		"ipp://localhost/ipp/": true,
		"http://localhost/ipp": true,
		"ipp://localhost":      false,
		"ipp://elsewhere/ipp":  false,
	}

	for uri, want := range cases {
		if got := p.MatchesURI(uri); got != want {
			t.Errorf("MatchesURI(%q) = %v, want %v", uri, got, want)
		}
	}
}

func TestPrinterJobsFiltering(t *testing.T) {
	p := testPrinter(t)

	req1 := goipp.NewRequest(goipp.MakeVersion(2, 0), goipp.OpCreateJob, 1)
	req1.Operation.Add(goipp.MakeAttribute("requesting-user-name", goipp.TagName, goipp.String("alice")))
	j1 := p.CreateJob(1, req1)

	req2 := goipp.NewRequest(goipp.MakeVersion(2, 0), goipp.OpCreateJob, 2)
	req2.Operation.Add(goipp.MakeAttribute("requesting-user-name", goipp.TagName, goipp.String("bob")))
	j2 := p.CreateJob(2, req2)

	aliceJobs := p.Jobs("", true, "alice", 0)
	if len(aliceJobs) != 1 || aliceJobs[0].ID != j1.ID {
		t.Errorf("alice's jobs = %v, want just job %d", aliceJobs, j1.ID)
	}

	all := p.Jobs("", false, "", 0)
	if len(all) != 2 {
		t.Errorf("all jobs = %d, want 2", len(all))
	}
	if all[0].ID != j2.ID || all[1].ID != j1.ID {
		t.Errorf("Jobs order = [%d %d], want descending id order [%d %d]", all[0].ID, all[1].ID, j2.ID, j1.ID)
	}

	limited := p.Jobs("", false, "", 1)
	if len(limited) != 1 || limited[0].ID != j2.ID {
		t.Errorf("limited jobs = %v, want just the newest job %d", limited, j2.ID)
	}
}

func TestPrinterJobsWhichFilters(t *testing.T) {
	p := testPrinter(t)
	ctx := context.Background()

	pending := p.CreateJob(1, goipp.NewRequest(goipp.MakeVersion(2, 0), goipp.OpCreateJob, 1))

	processing := p.CreateJob(2, goipp.NewRequest(goipp.MakeVersion(2, 0), goipp.OpCreateJob, 2))
	processing.Start(ctx)

	canceled := p.CreateJob(3, goipp.NewRequest(goipp.MakeVersion(2, 0), goipp.OpCreateJob, 3))
	canceled.Cancel(ctx)

	aborted := p.CreateJob(4, goipp.NewRequest(goipp.MakeVersion(2, 0), goipp.OpCreateJob, 4))
	aborted.Abort(ctx)

	completed := p.CreateJob(5, goipp.NewRequest(goipp.MakeVersion(2, 0), goipp.OpCreateJob, 5))
	completed.Start(ctx)
	completed.Complete(ctx)

	cases := []struct {
		which string
		want  int
	}{
		{"pending", pending.ID},
		{"processing", processing.ID},
		{"canceled", canceled.ID},
		{"aborted", aborted.ID},
	}

	for _, c := range cases {
		got := p.Jobs(c.which, false, "", 0)
		if len(got) != 1 || got[0].ID != c.want {
			t.Errorf("Jobs(%q) = %v, want just job %d", c.which, got, c.want)
		}
	}

	if got := p.Jobs("all", false, "", 0); len(got) != 5 {
		t.Errorf(`Jobs("all") = %d jobs, want 5`, len(got))
	}
	if got := p.Jobs("completed", false, "", 0); len(got) != 3 {
		t.Errorf(`Jobs("completed") = %d jobs, want 3 (canceled, aborted, completed)`, len(got))
	}
	if got := p.Jobs("not-completed", false, "", 0); len(got) != 2 {
		t.Errorf(`Jobs("not-completed") = %d jobs, want 2 (pending, processing)`, len(got))
	}
}

func TestPrinterQueuedJobCount(t *testing.T) {
	p := testPrinter(t)

	req := goipp.NewRequest(goipp.MakeVersion(2, 0), goipp.OpCreateJob, 1)
	j := p.CreateJob(1, req)

	if got := p.QueuedJobCount(); got != 1 {
		t.Errorf("QueuedJobCount = %d, want 1", got)
	}

	j.Cancel(context.Background())

	if got := p.QueuedJobCount(); got != 0 {
		t.Errorf("QueuedJobCount after cancel = %d, want 0", got)
	}
}
