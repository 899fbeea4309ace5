/* ippserver - a self-contained network IPP server
 *
 * Operation dispatcher tests
 */

package main

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/OpenPrinting/goipp"
)

// errReader simulates http.MaxBytesReader tripping its limit, so
// streamAndComplete's request-entity-too-large handling can be
// exercised without standing up a real HTTP server
type errReader struct{}

func (errReader) Read([]byte) (int, error) {
	return 0, &http.MaxBytesError{Limit: 1}
}

func testPrinter(t *testing.T) *Printer {
	t.Helper()

	cfg := DefaultConfiguration()
	cfg.Name = "Test Printer"
	cfg.SpoolDir = t.TempDir()

	return NewPrinter(cfg, "ipp://localhost/ipp", "http://localhost/icon.png", "http://localhost/", NewLogger().ToNowhere())
}

func baseRequest(op goipp.Op, printerURI string) *goipp.Message {
	req := goipp.NewRequest(goipp.MakeVersion(2, 0), op, 1)
	req.Operation.Add(goipp.MakeAttribute("attributes-charset", goipp.TagCharset, goipp.String("utf-8")))
	req.Operation.Add(goipp.MakeAttribute("attributes-natural-language", goipp.TagLanguage, goipp.String("en")))
	req.Operation.Add(goipp.MakeAttribute("printer-uri", goipp.TagURI, goipp.String(printerURI)))
	req.Operation.Add(goipp.MakeAttribute("requesting-user-name", goipp.TagName, goipp.String("alice")))
	return req
}

func statusOf(resp *goipp.Message) goipp.Status {
	return goipp.Status(resp.Code)
}

func TestDispatchMissingPreconditions(t *testing.T) {
	p := testPrinter(t)

	req := goipp.NewRequest(goipp.MakeVersion(2, 0), goipp.OpGetPrinterAttributes, 1)
	resp := Dispatch(context.Background(), p, 1, req, nil)

	if statusOf(resp) != goipp.StatusErrorBadRequest {
		t.Errorf("status = %#x, want bad-request", resp.Code)
	}
}

func TestDispatchWrongPrinterURI(t *testing.T) {
	p := testPrinter(t)

	req := baseRequest(goipp.OpGetPrinterAttributes, "ipp://somewhere-else/ipp")
	resp := Dispatch(context.Background(), p, 1, req, nil)

	if statusOf(resp) != goipp.StatusErrorNotFound {
		t.Errorf("status = %#x, want not-found", resp.Code)
	}
}

func TestDispatchGetPrinterAttributes(t *testing.T) {
	p := testPrinter(t)

	req := baseRequest(goipp.OpGetPrinterAttributes, p.URI())
	resp := Dispatch(context.Background(), p, 1, req, nil)

	if statusOf(resp) != goipp.StatusOk {
		t.Fatalf("status = %#x, want ok", resp.Code)
	}

	if a, ok := findAttr(resp.Printer, "printer-name"); !ok || string(a.Values[0].V.(goipp.String)) != "Test Printer" {
		t.Errorf("printer-name missing or wrong in response: %v", a)
	}
	if _, ok := findAttr(resp.Printer, "printer-state"); !ok {
		t.Error("printer-state missing from Get-Printer-Attributes response")
	}
}

func TestDispatchPrintJobAndGetJobAttributes(t *testing.T) {
	p := testPrinter(t)

	req := baseRequest(goipp.OpPrintJob, p.URI())
	req.Operation.Add(goipp.MakeAttribute("document-format", goipp.TagMimeType, goipp.String("application/pdf")))

	body := bytes.NewReader([]byte("%PDF-1.4 fake document"))
	resp := Dispatch(context.Background(), p, 7, req, body)

	if statusOf(resp) != goipp.StatusOk {
		t.Fatalf("Print-Job status = %#x, want ok", resp.Code)
	}

	idAttr, ok := findAttr(resp.Job, "job-id")
	if !ok {
		t.Fatal("job-id missing from Print-Job response")
	}
	id := int(idAttr.Values[0].V.(goipp.Integer))

	stateAttr, ok := findAttr(resp.Job, "job-state")
	if !ok || int(stateAttr.Values[0].V.(goipp.Integer)) != jobStateCode[jobStatePending] {
		t.Errorf("job-state after Print-Job = %v, want pending", stateAttr)
	}

	getReq := baseRequest(goipp.OpGetJobAttributes, p.URI())
	getReq.Operation.Add(goipp.MakeAttribute("job-id", goipp.TagInteger, goipp.Integer(id)))

	getResp := Dispatch(context.Background(), p, 7, getReq, nil)
	if statusOf(getResp) != goipp.StatusOk {
		t.Fatalf("Get-Job-Attributes status = %#x, want ok", getResp.Code)
	}
	if a, ok := findAttr(getResp.Job, "job-originating-user-name"); !ok || string(a.Values[0].V.(goipp.String)) != "alice" {
		t.Errorf("job-originating-user-name = %v, want alice", a)
	}
}

func TestDispatchSendDocumentWrongSession(t *testing.T) {
	p := testPrinter(t)

	createReq := baseRequest(goipp.OpCreateJob, p.URI())
	createResp := Dispatch(context.Background(), p, 1, createReq, nil)

	idAttr, _ := findAttr(createResp.Job, "job-id")
	id := int(idAttr.Values[0].V.(goipp.Integer))

	sendReq := baseRequest(goipp.OpSendDocument, p.URI())
	sendReq.Operation.Add(goipp.MakeAttribute("job-id", goipp.TagInteger, goipp.Integer(id)))
	sendReq.Operation.Add(goipp.MakeAttribute("last-document", goipp.TagBoolean, goipp.Boolean(true)))

	resp := Dispatch(context.Background(), p, 2, sendReq, bytes.NewReader(nil))

	if statusOf(resp) != goipp.StatusErrorNotPossible {
		t.Errorf("status = %#x, want not-possible for cross-session Send-Document", resp.Code)
	}
}

func TestDispatchCreateThenSendDocument(t *testing.T) {
	p := testPrinter(t)

	createReq := baseRequest(goipp.OpCreateJob, p.URI())
	createResp := Dispatch(context.Background(), p, 5, createReq, nil)
	idAttr, _ := findAttr(createResp.Job, "job-id")
	id := int(idAttr.Values[0].V.(goipp.Integer))

	sendReq := baseRequest(goipp.OpSendDocument, p.URI())
	sendReq.Operation.Add(goipp.MakeAttribute("job-id", goipp.TagInteger, goipp.Integer(id)))
	sendReq.Operation.Add(goipp.MakeAttribute("last-document", goipp.TagBoolean, goipp.Boolean(true)))

	resp := Dispatch(context.Background(), p, 5, sendReq, bytes.NewReader([]byte("document bytes")))
	if statusOf(resp) != goipp.StatusOk {
		t.Fatalf("status = %#x, want ok", resp.Code)
	}

	j, ok := p.Job(id)
	if !ok {
		t.Fatal("job not found after Send-Document")
	}
	if j.State() != jobStateCompleted {
		t.Errorf("state = %q, want completed", j.State())
	}
}

func TestDispatchSendDocumentTwiceIsRejected(t *testing.T) {
	p := testPrinter(t)

	createReq := baseRequest(goipp.OpCreateJob, p.URI())
	createResp := Dispatch(context.Background(), p, 9, createReq, nil)
	idAttr, _ := findAttr(createResp.Job, "job-id")
	id := int(idAttr.Values[0].V.(goipp.Integer))

	firstReq := baseRequest(goipp.OpSendDocument, p.URI())
	firstReq.Operation.Add(goipp.MakeAttribute("job-id", goipp.TagInteger, goipp.Integer(id)))
	firstReq.Operation.Add(goipp.MakeAttribute("last-document", goipp.TagBoolean, goipp.Boolean(false)))

	firstResp := Dispatch(context.Background(), p, 9, firstReq, bytes.NewReader([]byte("first chunk")))
	if statusOf(firstResp) != goipp.StatusOk {
		t.Fatalf("first Send-Document status = %#x, want ok", firstResp.Code)
	}

	secondReq := baseRequest(goipp.OpSendDocument, p.URI())
	secondReq.Operation.Add(goipp.MakeAttribute("job-id", goipp.TagInteger, goipp.Integer(id)))
	secondReq.Operation.Add(goipp.MakeAttribute("last-document", goipp.TagBoolean, goipp.Boolean(true)))

	secondResp := Dispatch(context.Background(), p, 9, secondReq, bytes.NewReader([]byte("second document")))
	if statusOf(secondResp) != goipp.StatusErrorNotPossible {
		t.Errorf("second Send-Document status = %#x, want not-possible", secondResp.Code)
	}

	j, ok := p.Job(id)
	if !ok {
		t.Fatal("job not found")
	}
	if j.State() != jobStateAborted {
		t.Errorf("state after duplicate document = %q, want aborted", j.State())
	}
}

func TestDispatchValidateJobRejectsDuplexOnSimplex(t *testing.T) {
	p := testPrinter(t) // DefaultConfiguration has Duplex = false

	req := baseRequest(goipp.OpValidateJob, p.URI())
	req.Operation.Add(goipp.MakeAttribute("sides", goipp.TagKeyword, goipp.String("two-sided-long-edge")))

	resp := Dispatch(context.Background(), p, 1, req, nil)

	if statusOf(resp) != goipp.StatusErrorAttributesOrValues {
		t.Errorf("status = %#x, want attributes-or-values", resp.Code)
	}
	if len(resp.Unsupported) != 1 || resp.Unsupported[0].Name != "sides" {
		t.Errorf("unsupported attrs = %v, want [sides]", resp.Unsupported)
	}
}

func TestDispatchGetJobsCarriesOperationAttributes(t *testing.T) {
	p := testPrinter(t)

	create := baseRequest(goipp.OpCreateJob, p.URI())
	Dispatch(context.Background(), p, 1, create, nil)

	req := baseRequest(goipp.OpGetJobs, p.URI())
	resp := Dispatch(context.Background(), p, 1, req, nil)

	if statusOf(resp) != goipp.StatusOk {
		t.Fatalf("status = %#x, want ok", resp.Code)
	}

	if resp.Groups == nil {
		t.Fatal("Get-Jobs response has no Groups")
	}

	var sawOperationGroup, sawJobGroup bool
	for _, g := range resp.Groups {
		switch g.Tag {
		case goipp.TagOperationGroup:
			sawOperationGroup = true
			if _, ok := findAttr(g.Attrs, "attributes-charset"); !ok {
				t.Error("operation-attributes group is missing attributes-charset")
			}
		case goipp.TagJobGroup:
			sawJobGroup = true
		}
	}

	if !sawOperationGroup {
		t.Error("Get-Jobs response groups missing the operation-attributes group")
	}
	if !sawJobGroup {
		t.Error("Get-Jobs response groups missing a job-attributes group")
	}
}

func TestDocumentFormatDefault(t *testing.T) {
	req := goipp.NewRequest(goipp.MakeVersion(2, 0), goipp.OpPrintJob, 1)
	if got := documentFormat(req); got != "application/octet-stream" {
		t.Errorf("documentFormat with no attribute = %q, want application/octet-stream", got)
	}
}

func TestDispatchRequestEntityTooLarge(t *testing.T) {
	p := testPrinter(t)

	req := baseRequest(goipp.OpPrintJob, p.URI())

	// A reader that always errors as if http.MaxBytesReader had
	// tripped, exercising streamAndComplete's *http.MaxBytesError
	// detection without standing up a real HTTP server
	resp := Dispatch(context.Background(), p, 1, req, &errReader{})

	if statusOf(resp) != goipp.StatusErrorRequestEntity {
		t.Errorf("status = %#x, want request-entity-too-large", resp.Code)
	}
}
