/* ippserver - a self-contained network IPP server
 *
 * requested-attributes group-token expansion
 */

package main

import "github.com/OpenPrinting/goipp"

var jobTemplateGroup = []string{
	"copies", "copies-default", "copies-supported",
	"finishings", "finishings-default", "finishings-supported",
	"job-hold-until", "job-hold-until-default", "job-hold-until-supported",
	"job-priority", "job-priority-default", "job-priority-supported",
	"job-sheets", "job-sheets-default", "job-sheets-supported",
	"media", "media-col", "media-col-default", "media-col-supported",
	"media-default", "media-source-supported", "media-supported", "media-type-supported",
	"multiple-document-handling", "multiple-document-handling-default", "multiple-document-handling-supported",
	"number-up", "number-up-default", "number-up-supported",
	"orientation-requested", "orientation-requested-default", "orientation-requested-supported",
	"page-ranges", "page-ranges-supported",
	"printer-resolution", "printer-resolution-default", "printer-resolution-supported",
	"print-quality", "print-quality-default", "print-quality-supported",
	"sides", "sides-default", "sides-supported",
}

var jobDescriptionGroup = []string{
	"date-time-at-completed", "date-time-at-creation", "date-time-at-processing",
	"job-detailed-status-message", "job-document-access-errors",
	"job-id", "job-impressions", "job-impressions-completed",
	"job-k-octets", "job-k-octets-processed",
	"job-media-sheets", "job-media-sheets-completed",
	"job-message-from-operator", "job-more-info", "job-name",
	"job-originating-user-name", "job-printer-up-time", "job-printer-uri",
	"job-state", "job-state-message", "job-state-reasons", "job-uri",
	"number-of-documents", "number-of-intervening-jobs",
	"output-device-assigned",
	"time-at-completed", "time-at-creation", "time-at-processing",
}

var printerDescriptionGroup = []string{
	"charset-configured", "charset-supported",
	"color-supported", "compression-supported",
	"document-format-default", "document-format-supported",
	"generated-natural-language-supported", "ipp-versions-supported",
	"job-impressions-supported", "job-k-octets-supported", "job-media-sheets-supported",
	"multiple-document-jobs-supported", "multiple-operation-time-out",
	"natural-language-configured",
	"notify-attributes-supported", "notify-lease-duration-default", "notify-lease-duration-supported",
	"notify-max-events-supported", "notify-events-default", "notify-events-supported",
	"notify-pull-method-supported", "notify-schemes-supported",
	"operations-supported", "pages-per-minute", "pages-per-minute-color",
	"pdl-override-supported",
	"printer-alert", "printer-alert-description", "printer-current-time",
	"printer-driver-installer", "printer-info", "printer-is-accepting-jobs",
	"printer-location", "printer-make-and-model", "printer-message-from-operator",
	"printer-more-info", "printer-more-info-manufacturer", "printer-name",
	"printer-state", "printer-state-message", "printer-state-reasons",
	"printer-up-time", "printer-uri-supported", "queued-job-count",
	"reference-uri-schemes-supported",
	"uri-authentication-supported", "uri-security-supported",
}

var printerDefaultsGroup = []string{
	"copies-default", "document-format-default", "finishings-default",
	"job-hold-until-default", "job-priority-default", "job-sheets-default",
	"media-default", "media-col-default", "number-up-default",
	"orientation-requested-default", "sides-default",
}

var subscriptionTemplateGroup = []string{
	"notify-attributes", "notify-charset", "notify-events",
	"notify-lease-duration", "notify-natural-language", "notify-pull-method",
	"notify-recipient-uri", "notify-time-interval", "notify-user-data",
}

// requestedAttrSet is the expanded filter a requested-attributes value
// resolves to: nil means "no filter, return everything"
type requestedAttrSet map[string]bool

// expandRequestedAttributes builds the filter set named by the
// requested-attributes operation attribute. A single "all" value, or
// the attribute's absence, means no filtering
func expandRequestedAttributes(op goipp.Attributes) requestedAttrSet {
	var values []string
	for _, attr := range op {
		if attr.Name != "requested-attributes" {
			continue
		}
		for _, v := range attr.Values {
			if s, ok := v.V.(goipp.String); ok {
				values = append(values, string(s))
			}
		}
	}

	if values == nil {
		return nil
	}
	if len(values) == 1 && values[0] == "all" {
		return nil
	}

	set := make(requestedAttrSet)
	add := func(names []string) {
		for _, n := range names {
			set[n] = true
		}
	}

	for _, v := range values {
		switch v {
		case "job-template":
			add(jobTemplateGroup)
		case "job-description":
			add(jobDescriptionGroup)
		case "printer-description":
			add(printerDescriptionGroup)
		case "printer-defaults":
			add(printerDefaultsGroup)
		case "subscription-template":
			add(subscriptionTemplateGroup)
		default:
			set[v] = true
		}
	}

	return set
}

// allows reports whether name passes the filter; a nil set allows
// everything
func (s requestedAttrSet) allows(name string) bool {
	return s == nil || s[name]
}

// filterInto copies attrs into dst, keeping only attributes allowed
// by the filter set
func filterInto(dst *goipp.Attributes, attrs goipp.Attributes, set requestedAttrSet) {
	for _, attr := range attrs {
		if set.allows(attr.Name) {
			dst.Add(attr)
		}
	}
}
