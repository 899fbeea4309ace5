/* ippserver - a self-contained network IPP server
 *
 * Printer: identity, static attributes, job table
 */

package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/OpenPrinting/goipp"
)

// Printer is the single network IPP printer a process serves. It owns
// every Job it creates; a Job's back-reference to its Printer is
// non-owning, so the cycle is resolved by the garbage collector
// rather than by manual refcounting, per the data model's note on
// cyclic ownership
type Printer struct {
	cfg      Configuration
	uri      string
	iconPath string

	attrs      goipp.Attributes // static, built once at startup
	kOctetsMax int              // upper bound of job-k-octets-supported

	startTime time.Time

	mu        sync.RWMutex
	jobs      map[int]*Job
	nextJobID int
	log       *Logger
}

// NewPrinter builds a Printer from a Configuration, the IPP URI this
// process will be reachable at, and the printer-icons URI/admin URL
// already assembled by the caller from the listening address
func NewPrinter(cfg Configuration, uri, iconURI, adminURL string, log *Logger) *Printer {
	if err := os.MkdirAll(cfg.SpoolDir, DefaultSpoolDirMode); err != nil {
		log.Begin().Error('!', "unable to create spool directory %s: %s", cfg.SpoolDir, err).Commit()
	}

	kmax := kOctetsSupported(cfg.SpoolDir)

	p := &Printer{
		cfg:        cfg,
		uri:        uri,
		iconPath:   cfg.Icon,
		attrs:      buildPrinterAttrs(cfg, uri, iconURI, adminURL, kmax),
		kOctetsMax: kmax,
		jobs:       make(map[int]*Job),
		nextJobID: 1,
		log:       log,
		startTime: time.Now(),
	}

	return p
}

// URI returns the printer's ipp:// URI, as reported in
// printer-uri-supported
func (p *Printer) URI() string {
	return p.uri
}

// MatchesURI reports whether uri names this printer, tolerating a
// trailing slash and an http(s) scheme substituted for ipp(s), as
// real clients do
func (p *Printer) MatchesURI(uri string) bool {
	norm := func(s string) string {
		s = strings.TrimSuffix(s, "/")
		s = strings.Replace(s, "http://", "ipp://", 1)
		s = strings.Replace(s, "https://", "ipps://", 1)
		return s
	}
	return norm(uri) == norm(p.uri)
}

// KOctetsMax returns the upper bound of job-k-octets-supported, in
// kilobytes, used to cap incoming request bodies
func (p *Printer) KOctetsMax() int {
	return p.kOctetsMax
}

// Attributes returns the printer's static attribute set, already
// populated per the catalog in §4.3. Callers must not mutate the
// returned slice
func (p *Printer) Attributes() goipp.Attributes {
	return p.attrs
}

// State returns the current printer-state value and its accompanying
// printer-state-reasons. The printer has no mechanical components to
// fail, so it is always idle/"none"
func (p *Printer) State() (state int, reasons []string) {
	return printerStateIdle, []string{"none"}
}

// printer-state enum values, per RFC 8011 section 5.4.12
const (
	printerStateIdle       = 3
	printerStateProcessing = 4
	printerStateStopped    = 5
)

// CreateJob allocates a new Job from req's operation attributes and
// adds it to the job table. sessionID identifies the HTTP connection
// that issued the request, so a later Send-Document on a different
// connection is rejected
func (p *Printer) CreateJob(sessionID uint64, req *goipp.Message) *Job {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextJobID
	p.nextJobID++

	j := newJob(p, id, sessionID, req)
	p.jobs[id] = j

	return j
}

// Job looks up a job by id
func (p *Printer) Job(id int) (*Job, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	j, ok := p.jobs[id]
	return j, ok
}

// Jobs returns the printer's jobs in descending id order (newest
// first, per §4.4/§4.5), optionally filtered by the which-jobs
// keyword. Every value advertised by whichJobsSupported in attrs.go is
// handled explicitly
func (p *Printer) Jobs(which string, myJobsOnly bool, username string, limit int) []*Job {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []*Job
	for _, j := range p.jobs {
		if myJobsOnly && j.Username != username {
			continue
		}
		if !jobMatchesWhich(j, which) {
			continue
		}
		out = append(out, j)
	}

	sort.Slice(out, func(i, k int) bool { return out[i].ID > out[k].ID })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out
}

// jobMatchesWhich reports whether j belongs to the which-jobs keyword
// category, covering every value in whichJobsSupported
func jobMatchesWhich(j *Job, which string) bool {
	switch which {
	case "all":
		return true
	case "completed":
		return j.IsTerminal()
	case "aborted":
		return j.State() == jobStateAborted
	case "canceled":
		return j.State() == jobStateCanceled
	case "pending":
		return j.State() == jobStatePending
	case "pending-held":
		return j.State() == jobStateHeld
	case "processing":
		return j.State() == jobStateProcessing
	case "processing-stopped":
		return j.State() == jobStateStopped
	case "not-completed", "":
		return !j.IsTerminal()
	default:
		return !j.IsTerminal()
	}
}

// ReapTerminalJobs performs the deferred transition to canceled for
// every job whose cancel latch is set and which is still processing.
// It removes no job and no spool file: job history (job-state,
// job-uri) and spool files are kept for the life of the process
func (p *Printer) ReapTerminalJobs(ctx context.Context) {
	p.mu.RLock()
	jobs := make([]*Job, 0, len(p.jobs))
	for _, j := range p.jobs {
		jobs = append(jobs, j)
	}
	p.mu.RUnlock()

	for _, j := range jobs {
		if j.Canceled() {
			j.ObserveCancel(ctx)
		}
	}
}

// jobURI returns the job-uri for a job of this printer
func (p *Printer) jobURI(id int) string {
	return fmt.Sprintf("%s/%d", p.uri, id)
}

// UpTime returns seconds since the printer was constructed, for
// printer-up-time
func (p *Printer) UpTime() int {
	return int(time.Since(p.startTime).Seconds())
}

// QueuedJobCount returns the number of jobs not yet in a terminal
// state, for queued-job-count
func (p *Printer) QueuedJobCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	n := 0
	for _, j := range p.jobs {
		if !j.IsTerminal() {
			n++
		}
	}
	return n
}
