/* ippserver - a self-contained network IPP server
 *
 * Job model and state machine
 */

package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OpenPrinting/goipp"
	"github.com/looplab/fsm"
)

// Job state names, matching the fsm's internal state strings and the
// state set of the data model: pending, held, processing, stopped,
// canceled, aborted, completed
const (
	jobStatePending    = "pending"
	jobStateHeld       = "held"
	jobStateProcessing = "processing"
	jobStateStopped    = "stopped"
	jobStateCanceled   = "canceled"
	jobStateAborted    = "aborted"
	jobStateCompleted  = "completed"
)

// jobStateCode maps a job state name to its IPP job-state enum value,
// per RFC 8011 section 5.3.7
var jobStateCode = map[string]int{
	jobStatePending:    3,
	jobStateHeld:       4,
	jobStateProcessing: 5,
	jobStateStopped:    6,
	jobStateCanceled:   7,
	jobStateAborted:    8,
	jobStateCompleted:  9,
}

// fsm event names driving the job state machine
const (
	jobEvHold     = "hold"     // pending -> held, job-hold-until was requested
	jobEvStart    = "start"    // pending -> processing
	jobEvComplete = "complete" // processing -> completed
	jobEvCancel   = "cancel"   // {pending,held,processing} -> canceled
	jobEvAbort    = "abort"    // {pending,held,processing} -> aborted
)

// jobFSMEvents is the transition table of §4.4, expressed as looplab/fsm events
var jobFSMEvents = []fsm.EventDesc{
	{Name: jobEvHold, Src: []string{jobStatePending}, Dst: jobStateHeld},
	{Name: jobEvStart, Src: []string{jobStatePending}, Dst: jobStateProcessing},
	{Name: jobEvComplete, Src: []string{jobStateProcessing}, Dst: jobStateCompleted},
	{Name: jobEvCancel, Src: []string{jobStatePending, jobStateHeld, jobStateProcessing}, Dst: jobStateCanceled},
	{Name: jobEvAbort, Src: []string{jobStatePending, jobStateHeld, jobStateProcessing}, Dst: jobStateAborted},
}

// Job represents a single print job, owned by exactly one Printer.
// The back-pointer to the printer is non-owning in the sense that a
// job never outlives the process; Go's garbage collector, not manual
// refcounting, resolves the cycle, so no weak-reference indirection
// is needed here
type Job struct {
	ID        int
	Printer   *Printer
	Name      string
	Username  string
	Created   time.Time
	Completed time.Time

	sm *fsm.FSM

	// mu guards fields touched by the document-streaming goroutine
	// independently of the printer's reader-writer lock, so that a
	// multi-kilobyte spool write never holds the printer lock
	mu         sync.Mutex
	canceled   int32 // atomic latch, observed by the streaming writer
	docFile    *os.File
	docPath    string
	documentIn bool // a document has already been accepted

	sessionID  uint64 // identifies the HTTP connection that created the job
	holdUntil  string // raw job-hold-until value; "" if none requested
	attrs      goipp.Attributes
	refs       int32
}

// newJob allocates a job from a Create-Job or Print-Job request.
// Recognized job-template attributes are copied from the request's
// operation-attributes group (where clients place them) into the
// job's own attribute set
func newJob(p *Printer, id int, sessionID uint64, req *goipp.Message) *Job {
	j := &Job{
		ID:        id,
		Printer:   p,
		Created:   time.Now(),
		sessionID: sessionID,
		refs:      1,
	}

	j.Name = fmt.Sprintf("Job %d", id)
	j.Username = "anonymous"

	for _, attr := range req.Operation {
		switch attr.Name {
		case "job-name":
			if len(attr.Values) > 0 {
				if s, ok := attr.Values[0].V.(goipp.String); ok {
					j.Name = string(s)
				}
			}
		case "requesting-user-name":
			if len(attr.Values) > 0 {
				if s, ok := attr.Values[0].V.(goipp.String); ok {
					j.Username = string(s)
				}
			}
		case "job-hold-until":
			if len(attr.Values) > 0 {
				if s, ok := attr.Values[0].V.(goipp.String); ok && s != "no-hold" {
					j.holdUntil = string(s)
				}
			}
		}

		if isJobTemplateAttr(attr.Name) {
			j.attrs.Add(attr)
		}
	}

	initial := jobStatePending
	if j.holdUntil != "" {
		initial = jobStateHeld
	}

	j.sm = fsm.NewFSM(initial, jobFSMEvents, fsm.Callbacks{
		jobEvComplete: func(_ context.Context, _ *fsm.Event) {
			j.Completed = time.Now()
		},
		jobEvCancel: func(_ context.Context, _ *fsm.Event) {
			j.Completed = time.Now()
		},
		jobEvAbort: func(_ context.Context, _ *fsm.Event) {
			j.Completed = time.Now()
		},
	})

	return j
}

// jobTemplateAttrs is the set of job-template attribute names recognized
// from the creating request and copied onto the job, per the original
// create_job()'s attribute whitelist
var jobTemplateAttrs = map[string]bool{
	"job-name":            true,
	"job-priority":        true,
	"job-hold-until":      true,
	"job-sheets":          true,
	"multiple-document-handling": true,
	"copies":              true,
	"finishings":          true,
	"page-ranges":         true,
	"sides":               true,
	"number-up":           true,
	"orientation-requested": true,
	"media":               true,
	"media-col":           true,
	"print-quality":       true,
	"printer-resolution":  true,
	"document-format":     true,
}

func isJobTemplateAttr(name string) bool {
	return jobTemplateAttrs[name]
}

// TemplateAttrs returns the job-template attributes copied from the
// creating request
func (j *Job) TemplateAttrs() goipp.Attributes {
	return j.attrs
}

// State returns the current state name
func (j *Job) State() string {
	return j.sm.Current()
}

// StateCode returns the IPP job-state enum value of the current state
func (j *Job) StateCode() int {
	return jobStateCode[j.State()]
}

// IsTerminal reports whether the job has reached a terminal state
func (j *Job) IsTerminal() bool {
	switch j.State() {
	case jobStateCanceled, jobStateAborted, jobStateCompleted:
		return true
	}
	return false
}

// Canceled reports whether the cancel latch has been set, regardless
// of whether the fsm has yet observed it
func (j *Job) Canceled() bool {
	return atomic.LoadInt32(&j.canceled) != 0
}

// Cancel implements Cancel-Job's semantics (§4.5, §4.4). It is legal
// from pending, held or processing; it returns ErrJobTerminal if the
// job already reached a terminal state.
//
// For a pending or held job the state machine transitions to canceled
// immediately. For a processing job only the latch is set: the
// in-flight document writer observes it between chunks and performs
// the actual state transition, so that canceling never blocks on I/O
// the printer lock is held across
func (j *Job) Cancel(ctx context.Context) error {
	if j.IsTerminal() {
		return ErrJobTerminal
	}

	atomic.StoreInt32(&j.canceled, 1)

	if j.State() == jobStateProcessing {
		return nil
	}

	return j.sm.Event(ctx, jobEvCancel)
}

// ObserveCancel is called by the document-streaming writer between
// chunks. If the cancel latch is set and the job is still processing,
// it performs the deferred state transition and returns true
func (j *Job) ObserveCancel(ctx context.Context) bool {
	if !j.Canceled() {
		return false
	}
	if j.State() != jobStateProcessing {
		return false
	}
	j.sm.Event(ctx, jobEvCancel)
	return true
}

// Start transitions a pending job to processing, e.g. when the last
// document chunk of a Send-Document/Print-Job request arrives
func (j *Job) Start(ctx context.Context) error {
	return j.sm.Event(ctx, jobEvStart)
}

// Complete transitions a processing job to completed
func (j *Job) Complete(ctx context.Context) error {
	return j.sm.Event(ctx, jobEvComplete)
}

// Abort transitions any non-terminal job to aborted, on a fatal I/O error
func (j *Job) Abort(ctx context.Context) error {
	return j.sm.Event(ctx, jobEvAbort)
}

// StateReasons derives job-state-reasons purely from the job's state,
// the cancel latch and whether a hold was requested, per §4.4's table
func (j *Job) StateReasons() []string {
	switch j.State() {
	case jobStatePending:
		return []string{"none"}
	case jobStateHeld:
		if j.holdUntil != "" {
			return []string{"job-hold-until-specified"}
		}
		return []string{"job-incoming"}
	case jobStateProcessing:
		if j.Canceled() {
			return []string{"processing-to-stop-point"}
		}
		return []string{"job-printing"}
	case jobStateCanceled:
		return []string{"job-canceled-by-user"}
	case jobStateAborted:
		return []string{"aborted-by-system"}
	case jobStateCompleted:
		return []string{"job-completed-successfully"}
	case jobStateStopped:
		return []string{"job-stopped"}
	}
	return []string{"none"}
}

// AddRef increments the job's reference count, so an in-flight
// operation can safely read a job while a peer Cancel transitions
// its state
func (j *Job) AddRef() {
	atomic.AddInt32(&j.refs, 1)
}

// Release decrements the job's reference count
func (j *Job) Release() {
	atomic.AddInt32(&j.refs, -1)
}

// OpenDocument creates the spool file for this job's document, named
// <spool>/<job-id>.<ext>, where <ext> is derived from the submitted
// document-format
func (j *Job) OpenDocument(spoolDir, format string) (*os.File, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.documentIn {
		return nil, ErrDocumentAlreadySent
	}

	ext := extensionForFormat(format)
	path := fmt.Sprintf("%s/%d.%s", spoolDir, j.ID, ext)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}

	j.docFile = f
	j.docPath = path
	j.documentIn = true

	return f, nil
}

// CloseDocument closes the job's spool file, if open
func (j *Job) CloseDocument() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.docFile != nil {
		j.docFile.Close()
		j.docFile = nil
	}
}

// SameSession reports whether sessionID matches the session that
// created this job, the precondition Send-Document places on
// identifying which connection may supply the document
func (j *Job) SameSession(sessionID uint64) bool {
	return j.sessionID == sessionID
}

// extensionForFormat derives a spool file extension from a
// document-format MIME type
func extensionForFormat(format string) string {
	switch format {
	case "application/pdf":
		return "pdf"
	case "application/postscript":
		return "ps"
	case "application/vnd.hp-PCL":
		return "pcl"
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	default:
		return "prn"
	}
}
