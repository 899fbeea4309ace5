/* ippserver - a self-contained network IPP server
 *
 * Sentinel errors
 */

package main

import "errors"

var (
	// ErrJobNotFound means the requested job id doesn't exist on this printer
	ErrJobNotFound = errors.New("job not found")

	// ErrJobTerminal means an operation that requires a non-terminal
	// job was attempted against a job that already reached a
	// terminal state
	ErrJobTerminal = errors.New("job is in a terminal state")

	// ErrDocumentAlreadySent means Send-Document was attempted
	// against a job that already received its document
	ErrDocumentAlreadySent = errors.New("document already sent for this job")

	// ErrWrongSession means Send-Document arrived on a different
	// HTTP connection than the one that created the job
	ErrWrongSession = errors.New("job does not belong to this session")

	// ErrPrinterURIMismatch means the request's printer-uri (or
	// job-uri) doesn't name this printer
	ErrPrinterURIMismatch = errors.New("printer or job URI does not match this printer")
)
