/* ippserver - a self-contained network IPP server
 *
 * IPP operation dispatcher
 */

package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/OpenPrinting/goipp"
)

// documentChunkSize bounds a single read from the HTTP body while
// streaming a document to the spool file, so the cancel latch is
// observed at least this often
const documentChunkSize = 64 * 1024

// Dispatch routes a decoded IPP request to its operation handler and
// returns the response message. body supplies whatever bytes follow
// the IPP message on the wire (the document, for Print-Job and
// Send-Document); only those two operations read it, and it may be
// nil for the others
func Dispatch(ctx context.Context, p *Printer, sessionID uint64, req *goipp.Message, body io.Reader) *goipp.Message {
	resp := goipp.NewResponse(req.Version, goipp.StatusOk, req.RequestID)
	addOperationBoilerplate(resp)

	if status, ok := checkSharedPreconditions(p, req); !ok {
		resp.Code = goipp.Code(status)
		return resp
	}

	switch goipp.Op(req.Code) {
	case goipp.OpPrintJob:
		dispatchPrintJob(ctx, p, sessionID, req, body, resp)
	case goipp.OpValidateJob:
		dispatchValidateJob(p, req, resp)
	case goipp.OpCreateJob:
		dispatchCreateJob(p, sessionID, req, resp)
	case goipp.OpSendDocument:
		dispatchSendDocument(ctx, p, sessionID, req, body, resp)
	case goipp.OpCancelJob:
		dispatchCancelJob(ctx, p, req, resp)
	case goipp.OpGetJobAttributes:
		dispatchGetJobAttributes(p, req, resp)
	case goipp.OpGetJobs:
		dispatchGetJobs(p, req, resp)
	case goipp.OpGetPrinterAttributes:
		dispatchGetPrinterAttributes(p, req, resp)
	default:
		resp.Code = goipp.Code(goipp.StatusErrorOperationNotSupported)
	}

	return resp
}

// addOperationBoilerplate sets the operation-attributes group every
// response carries: attributes-charset and attributes-natural-language
func addOperationBoilerplate(resp *goipp.Message) {
	resp.Operation.Add(goipp.MakeAttribute("attributes-charset", goipp.TagCharset, goipp.String("utf-8")))
	resp.Operation.Add(goipp.MakeAttribute("attributes-natural-language", goipp.TagLanguage, goipp.String("en")))
}

// checkSharedPreconditions implements §4.5's shared preconditions, in
// order. ok is false if a precondition failed and status names the
// terminal response status
func checkSharedPreconditions(p *Printer, req *goipp.Message) (status goipp.Status, ok bool) {
	if req.Version.Major() > 2 {
		return goipp.StatusErrorVersionNotSupported, false
	}

	var haveCharset, haveLang bool
	var uri string
	haveURI := false

	for _, attr := range req.Operation {
		switch attr.Name {
		case "attributes-charset":
			haveCharset = len(attr.Values) > 0
		case "attributes-natural-language":
			haveLang = len(attr.Values) > 0
		case "printer-uri", "job-uri":
			if len(attr.Values) > 0 {
				if s, ok := attr.Values[0].V.(goipp.String); ok {
					uri = string(s)
					haveURI = true
				}
			}
		}
	}

	if !haveCharset || !haveLang {
		return goipp.StatusErrorBadRequest, false
	}

	if !haveURI || !p.MatchesURI(uri) {
		return goipp.StatusErrorNotFound, false
	}

	return goipp.StatusOk, true
}

// requestingUserName extracts requesting-user-name, defaulting to
// "anonymous" as newJob does
func requestingUserName(req *goipp.Message) string {
	for _, attr := range req.Operation {
		if attr.Name == "requesting-user-name" && len(attr.Values) > 0 {
			if s, ok := attr.Values[0].V.(goipp.String); ok {
				return string(s)
			}
		}
	}
	return "anonymous"
}

func documentFormat(req *goipp.Message) string {
	for _, attr := range req.Operation {
		if attr.Name == "document-format" && len(attr.Values) > 0 {
			if s, ok := attr.Values[0].V.(goipp.String); ok {
				return string(s)
			}
		}
	}
	return "application/octet-stream"
}

func lastDocument(req *goipp.Message) bool {
	for _, attr := range req.Operation {
		if attr.Name == "last-document" && len(attr.Values) > 0 {
			if b, ok := attr.Values[0].V.(goipp.Boolean); ok {
				return bool(b)
			}
		}
	}
	return true
}

func jobID(req *goipp.Message) (int, bool) {
	for _, attr := range req.Operation {
		if attr.Name == "job-id" && len(attr.Values) > 0 {
			if n, ok := attr.Values[0].V.(goipp.Integer); ok {
				return int(n), true
			}
		}
	}
	return 0, false
}

// addJobIdentity adds job-id, job-uri, job-state and
// job-state-reasons to resp's job-attributes group, the minimal set
// every job-creating or job-querying response must carry
func addJobIdentity(j *Job, resp *goipp.Message) {
	resp.Job.Add(goipp.MakeAttribute("job-id", goipp.TagInteger, goipp.Integer(j.ID)))
	resp.Job.Add(goipp.MakeAttribute("job-uri", goipp.TagURI, goipp.String(j.Printer.jobURI(j.ID))))
	addJobState(j, resp)
}

func addJobState(j *Job, resp *goipp.Message) {
	resp.Job.Add(goipp.MakeAttribute("job-state", goipp.TagEnum, goipp.Integer(j.StateCode())))

	reasons := j.StateReasons()
	vals := make([]goipp.Value, 0, len(reasons))
	for _, r := range reasons {
		vals = append(vals, goipp.String(r))
	}
	if len(vals) > 0 {
		attr := goipp.MakeAttr("job-state-reasons", goipp.TagKeyword, vals[0], vals[1:]...)
		resp.Job.Add(attr)
	}
}

// dispatchPrintJob implements Print-Job: Create-Job plus immediate
// document streaming, the document being whatever remains of the
// POST body after the IPP message
func dispatchPrintJob(ctx context.Context, p *Printer, sessionID uint64, req *goipp.Message, body io.Reader, resp *goipp.Message) {
	j := p.CreateJob(sessionID, req)
	addJobIdentity(j, resp)
	streamAndComplete(ctx, j, body, documentFormat(req), resp)
}

// dispatchValidateJob runs job-creation attribute validation without
// allocating a job or accepting a document
func dispatchValidateJob(p *Printer, req *goipp.Message, resp *goipp.Message) {
	offending := validateJobTemplateAttrs(req.Operation, p.cfg.Duplex)
	if len(offending) == 0 {
		return
	}

	resp.Code = goipp.Code(goipp.StatusErrorAttributesOrValues)
	for _, attr := range offending {
		resp.Unsupported.Add(attr)
	}
}

// validateJobTemplateAttrs checks job-template attributes against
// this server's static capabilities, returning the attributes it
// cannot honor. Currently the only attribute with a capability this
// server can violate is "sides", when two-sided printing was
// requested of a simplex-configured printer
func validateJobTemplateAttrs(op goipp.Attributes, duplex bool) goipp.Attributes {
	var offending goipp.Attributes

	for _, attr := range op {
		if duplex || attr.Name != "sides" || len(attr.Values) == 0 {
			continue
		}
		s, ok := attr.Values[0].V.(goipp.String)
		if !ok {
			continue
		}
		if s == "two-sided-long-edge" || s == "two-sided-short-edge" {
			offending = append(offending, attr)
		}
	}

	return offending
}

// dispatchCreateJob allocates a job with no document
func dispatchCreateJob(p *Printer, sessionID uint64, req *goipp.Message, resp *goipp.Message) {
	j := p.CreateJob(sessionID, req)
	addJobIdentity(j, resp)
}

// dispatchSendDocument streams a document onto an existing job,
// created earlier by Create-Job, and requires the same HTTP session
func dispatchSendDocument(ctx context.Context, p *Printer, sessionID uint64, req *goipp.Message, body io.Reader, resp *goipp.Message) {
	id, ok := jobID(req)
	if !ok {
		resp.Code = goipp.Code(goipp.StatusErrorBadRequest)
		return
	}

	j, ok := p.Job(id)
	if !ok {
		resp.Code = goipp.Code(goipp.StatusErrorNotFound)
		return
	}

	if !j.SameSession(sessionID) {
		resp.Code = goipp.Code(goipp.StatusErrorNotPossible)
		return
	}

	if j.IsTerminal() {
		resp.Code = goipp.Code(goipp.StatusErrorNotPossible)
		return
	}

	if !lastDocument(req) {
		// Not the last document: this server keeps a single
		// document per job, so the data is written to the job's
		// spool file and the job stays pending. Any further
		// Send-Document for this job finds the document already
		// taken and aborts the job
		f, err := j.OpenDocument(p.cfg.SpoolDir, documentFormat(req))
		if err != nil {
			j.Abort(ctx)
			resp.Code = goipp.Code(goipp.StatusErrorNotPossible)
			addJobIdentity(j, resp)
			return
		}
		io.Copy(f, body)
		j.CloseDocument()
		addJobIdentity(j, resp)
		return
	}

	streamAndComplete(ctx, j, body, documentFormat(req), resp)
}

// streamAndComplete transitions the job to processing, copies r to
// the job's spool file in bounded chunks, observing the cancel latch
// between chunks, then transitions the job on to completed (or
// aborted, on a read or write failure)
func streamAndComplete(ctx context.Context, j *Job, r io.Reader, format string, resp *goipp.Message) {
	if err := j.Start(ctx); err != nil {
		resp.Code = goipp.Code(goipp.StatusErrorNotPossible)
		return
	}

	addJobIdentity(j, resp)

	f, err := j.OpenDocument(j.Printer.cfg.SpoolDir, format)
	if err != nil {
		j.Abort(ctx)
		resp.Code = goipp.Code(goipp.StatusErrorNotPossible)
		addJobState(j, resp)
		return
	}
	defer j.CloseDocument()

	buf := make([]byte, documentChunkSize)
	for {
		if j.ObserveCancel(ctx) {
			addJobState(j, resp)
			return
		}

		n, rerr := r.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				j.Abort(ctx)
				addJobState(j, resp)
				return
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(rerr, &tooLarge) {
				resp.Code = goipp.Code(goipp.StatusErrorRequestEntity)
			}
			j.Abort(ctx)
			addJobState(j, resp)
			return
		}
	}

	j.Complete(ctx)
	addJobState(j, resp)
}

// dispatchCancelJob sets the cancel latch, or terminal-state errors
func dispatchCancelJob(ctx context.Context, p *Printer, req *goipp.Message, resp *goipp.Message) {
	id, ok := jobID(req)
	if !ok {
		resp.Code = goipp.Code(goipp.StatusErrorBadRequest)
		return
	}

	j, ok := p.Job(id)
	if !ok {
		resp.Code = goipp.Code(goipp.StatusErrorNotFound)
		return
	}

	if err := j.Cancel(ctx); err != nil {
		resp.Code = goipp.Code(goipp.StatusErrorNotPossible)
		return
	}
}

// dispatchGetJobAttributes filters a job's attributes through
// requested-attributes
func dispatchGetJobAttributes(p *Printer, req *goipp.Message, resp *goipp.Message) {
	id, ok := jobID(req)
	if !ok {
		resp.Code = goipp.Code(goipp.StatusErrorBadRequest)
		return
	}

	j, ok := p.Job(id)
	if !ok {
		resp.Code = goipp.Code(goipp.StatusErrorNotFound)
		return
	}

	set := expandRequestedAttributes(req.Operation)
	addJobAttributesFiltered(j, set, resp)
}

// addJobAttributesFiltered writes every reportable attribute of j
// into resp's job-attributes group, subject to set
func addJobAttributesFiltered(j *Job, set requestedAttrSet, resp *goipp.Message) {
	synth := goipp.Attributes{
		goipp.MakeAttribute("job-id", goipp.TagInteger, goipp.Integer(j.ID)),
		goipp.MakeAttribute("job-uri", goipp.TagURI, goipp.String(j.Printer.jobURI(j.ID))),
		goipp.MakeAttribute("job-printer-uri", goipp.TagURI, goipp.String(j.Printer.URI())),
		goipp.MakeAttribute("job-name", goipp.TagName, goipp.String(j.Name)),
		goipp.MakeAttribute("job-originating-user-name", goipp.TagName, goipp.String(j.Username)),
		goipp.MakeAttribute("job-state", goipp.TagEnum, goipp.Integer(j.StateCode())),
		goipp.MakeAttribute("time-at-creation", goipp.TagInteger, goipp.Integer(j.Created.Sub(j.Printer.startTime).Seconds())),
	}

	if !j.Completed.IsZero() {
		synth = append(synth, goipp.MakeAttribute("time-at-completed", goipp.TagInteger, goipp.Integer(j.Completed.Sub(j.Printer.startTime).Seconds())))
	}

	reasons := j.StateReasons()
	rvals := make([]goipp.Value, 0, len(reasons))
	for _, r := range reasons {
		rvals = append(rvals, goipp.String(r))
	}
	if len(rvals) > 0 {
		synth = append(synth, goipp.MakeAttr("job-state-reasons", goipp.TagKeyword, rvals[0], rvals[1:]...))
	}

	filterInto(&resp.Job, synth, set)
	filterInto(&resp.Job, j.TemplateAttrs(), set)
}

// dispatchGetJobs lists jobs filtered by which-jobs/my-jobs/limit
func dispatchGetJobs(p *Printer, req *goipp.Message, resp *goipp.Message) {
	which := "not-completed"
	myJobsOnly := false
	limit := 0
	user := requestingUserName(req)

	for _, attr := range req.Operation {
		switch attr.Name {
		case "which-jobs":
			if len(attr.Values) > 0 {
				if s, ok := attr.Values[0].V.(goipp.String); ok {
					which = string(s)
				}
			}
		case "my-jobs":
			if len(attr.Values) > 0 {
				if b, ok := attr.Values[0].V.(goipp.Boolean); ok {
					myJobsOnly = bool(b)
				}
			}
		case "limit":
			if len(attr.Values) > 0 {
				if n, ok := attr.Values[0].V.(goipp.Integer); ok {
					limit = int(n)
				}
			}
		}
	}

	set := expandRequestedAttributes(req.Operation)
	jobs := p.Jobs(which, myJobsOnly, user, limit)

	// Encode()/Print() prefer resp.Groups over the named per-group
	// fields whenever Groups is non-nil, so once this response needs
	// repeated job-attributes groups, the operation-attributes group
	// set earlier via resp.Operation must be carried over explicitly
	resp.Groups = goipp.Groups{{Tag: goipp.TagOperationGroup, Attrs: resp.Operation}}

	for _, j := range jobs {
		group := goipp.Attributes{}
		addJobAttributesFilteredInto(&group, j, set)
		resp.Groups = append(resp.Groups, goipp.Group{Tag: goipp.TagJobGroup, Attrs: group})
	}
}

// addJobAttributesFilteredInto is addJobAttributesFiltered, writing
// into an arbitrary destination rather than resp.Job; Get-Jobs needs
// one job-attributes group per job, while Get-Job-Attributes writes
// the single implicit group
func addJobAttributesFilteredInto(dst *goipp.Attributes, j *Job, set requestedAttrSet) {
	tmp := &goipp.Message{}
	addJobAttributesFiltered(j, set, tmp)
	*dst = tmp.Job
}

// dispatchGetPrinterAttributes filters the static catalog plus the
// dynamic attributes computed at request time
func dispatchGetPrinterAttributes(p *Printer, req *goipp.Message, resp *goipp.Message) {
	set := expandRequestedAttributes(req.Operation)

	state, reasons := p.State()
	dynamic := goipp.Attributes{
		goipp.MakeAttribute("printer-state", goipp.TagEnum, goipp.Integer(state)),
		goipp.MakeAttribute("printer-up-time", goipp.TagInteger, goipp.Integer(p.UpTime())),
		goipp.MakeAttribute("printer-current-time", goipp.TagDateTime, goipp.Time{Time: time.Now()}),
		goipp.MakeAttribute("queued-job-count", goipp.TagInteger, goipp.Integer(p.QueuedJobCount())),
	}
	rvals := make([]goipp.Value, 0, len(reasons))
	for _, r := range reasons {
		rvals = append(rvals, goipp.String(r))
	}
	if len(rvals) > 0 {
		dynamic = append(dynamic, goipp.MakeAttr("printer-state-reasons", goipp.TagKeyword, rvals[0], rvals[1:]...))
	}

	filterInto(&resp.Printer, dynamic, set)
	filterInto(&resp.Printer, p.Attributes(), set)
}
