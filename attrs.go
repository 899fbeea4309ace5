/* ippserver - a self-contained network IPP server
 *
 * Printer attribute catalog (Get-Printer-Attributes content)
 */

package main

import (
	"fmt"
	"strings"

	"github.com/OpenPrinting/goipp"
)

// media size classification, controlling which media-types a given
// media-col-database size is paired with
const (
	mediaGeneral = iota
	mediaPhotoOnly
	mediaEnvOnly
)

// mediaSize describes one media-supported keyword and its physical
// dimensions in hundredths of millimeters, plus its classification
type mediaSize struct {
	keyword string
	x, y    int
	class   int
}

// mediaSizes is the media-col-database size table, grounded on the
// original server's media_supported[]/media_col_sizes[] tables
var mediaSizes = []mediaSize{
	{"iso_a4_210x297mm", 21000, 29700, mediaGeneral},
	{"iso_a5_148x210mm", 14800, 21000, mediaPhotoOnly},
	{"iso_a6_105x148mm", 10500, 14800, mediaPhotoOnly},
	{"iso_dl_110x220mm", 11000, 22000, mediaEnvOnly},
	{"na_legal_8.5x14in", 21590, 35560, mediaGeneral},
	{"na_letter_8.5x11in", 21590, 27940, mediaGeneral},
	{"na_number-10_4.125x9.5in", 10477, 24130, mediaEnvOnly},
	{"na_index-3x5_3x5in", 7630, 12700, mediaPhotoOnly},
	{"oe_photo-l_3.5x5in", 8890, 12700, mediaPhotoOnly},
	{"na_index-4x6_4x6in", 10160, 15240, mediaPhotoOnly},
	{"na_5x7_5x7in", 12700, 17780, mediaPhotoOnly},
}

var mediaTypeSupported = []string{
	"auto",
	"cardstock",
	"envelope",
	"labels",
	"other",
	"photographic-glossy",
	"photographic-high-gloss",
	"photographic-matte",
	"photographic-satin",
	"photographic-semi-gloss",
	"stationery",
	"stationery-letterhead",
	"transparency",
}

// mediaMargins holds the borderless (0) and bordered (635) margin
// values reported for media-xxx-margin-supported
var mediaMargins = []int{0, 635}

var mediaColSupported = []string{
	"media-bottom-margin",
	"media-left-margin",
	"media-right-margin",
	"media-size",
	"media-top-margin",
	"media-type",
}

var multipleDocumentHandlingSupported = []string{
	"separate-documents-uncollated-copies",
	"separate-documents-collated-copies",
}

var sidesSupportedAll = []string{
	"one-sided",
	"two-sided-long-edge",
	"two-sided-short-edge",
}

var whichJobsSupported = []string{
	"completed",
	"not-completed",
	"aborted",
	"all",
	"canceled",
	"pending",
	"pending-held",
	"processing",
	"processing-stopped",
}

var jobCreationAttributesSupported = []string{
	"copies",
	"ipp-attribute-fidelity",
	"job-name",
	"media",
	"media-col",
	"multiple-document-handling",
	"output-bin",
	"orientation-requested",
	"print-quality",
	"printer-resolution",
	"sides",
}

var operationsSupported = []int{
	int(goipp.OpPrintJob),
	int(goipp.OpValidateJob),
	int(goipp.OpCreateJob),
	int(goipp.OpSendDocument),
	int(goipp.OpCancelJob),
	int(goipp.OpGetJobAttributes),
	int(goipp.OpGetJobs),
	int(goipp.OpGetPrinterAttributes),
}

// orientation-requested-supported values, per RFC 8011 section 5.2-11
const (
	orientPortrait          = 3
	orientLandscape         = 4
	orientReverseLandscape  = 5
	orientReversePortrait   = 6
)

var orientationsSupported = []int{orientPortrait, orientLandscape, orientReverseLandscape, orientReversePortrait}

// print-quality enum values, per RFC 8011 section 5.2-13
const (
	qualityDraft  = 3
	qualityNormal = 4
	qualityHigh   = 5
)

var printQualitySupported = []int{qualityDraft, qualityNormal, qualityHigh}

// createMediaCol builds a single media-col collection value, for one
// media keyword / media-type pairing
func createMediaCol(media, mediaType string, x, y, margin int) goipp.Collection {
	sizeCol := goipp.MakeAttrCollection("media-size",
		goipp.MakeAttribute("x-dimension", goipp.TagInteger, goipp.Integer(x)),
		goipp.MakeAttribute("y-dimension", goipp.TagInteger, goipp.Integer(y)))

	return goipp.Collection{
		goipp.MakeAttribute("media-key", goipp.TagKeyword,
			goipp.String(fmt.Sprintf("%s_%s", media, mediaType))),
		sizeCol,
		goipp.MakeAttribute("media-bottom-margin", goipp.TagInteger, goipp.Integer(margin)),
		goipp.MakeAttribute("media-left-margin", goipp.TagInteger, goipp.Integer(margin)),
		goipp.MakeAttribute("media-right-margin", goipp.TagInteger, goipp.Integer(margin)),
		goipp.MakeAttribute("media-top-margin", goipp.TagInteger, goipp.Integer(margin)),
		goipp.MakeAttribute("media-type", goipp.TagKeyword, goipp.String(mediaType)),
	}
}

// buildMediaColDatabase constructs the full media-col-database cross
// product: every (size, type) pairing allowed by the size's
// classification, plus a borderless variant for "auto" and
// "photographic-*" types on non-envelope sizes
func buildMediaColDatabase() []goipp.Collection {
	var out []goipp.Collection

	for _, sz := range mediaSizes {
		for _, mt := range mediaTypeSupported {
			if sz.class == mediaEnvOnly && mt != "auto" && mt != "envelope" {
				continue
			}
			if sz.class == mediaPhotoOnly && mt != "auto" && !strings.HasPrefix(mt, "photographic-") {
				continue
			}

			out = append(out, createMediaCol(sz.keyword, mt, sz.x, sz.y, mediaMargins[1]))

			if sz.class != mediaEnvOnly && (mt == "auto" || strings.HasPrefix(mt, "photographic-")) {
				out = append(out, createMediaCol(sz.keyword, mt, sz.x, sz.y, mediaMargins[0]))
			}
		}
	}

	return out
}

// buildDeviceID constructs printer-device-id from the manufacturer,
// model and accepted document formats, following the
// "MFG:...;MDL:...;CMD:...;" convention IEEE 1284 device IDs use
func buildDeviceID(make, model string, formats []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "MFG:%s;MDL:%s;", make, model)

	prefix := "CMD:"
	for _, f := range formats {
		var tag string
		switch strings.ToLower(f) {
		case "application/pdf":
			tag = "PDF"
		case "application/postscript":
			tag = "PS"
		case "application/vnd.hp-pcl":
			tag = "PCL"
		case "image/jpeg":
			tag = "JPEG"
		case "image/png":
			tag = "PNG"
		case "application/octet-stream":
			continue
		default:
			tag = f
		}
		fmt.Fprintf(&b, "%s%s", prefix, tag)
		prefix = ","
	}
	b.WriteString(";")
	return b.String()
}

// splitFormats parses the comma-separated -f flag value, returning
// the formats in order and the document-format-default value: the
// first "application/octet-stream" entry wins the default, falling
// back to the first entry otherwise
func splitFormats(s string) (formats []string, def string) {
	formats = strings.Split(s, ",")
	def = formats[0]
	for _, f := range formats {
		if strings.EqualFold(f, "application/octet-stream") {
			def = f
			break
		}
	}
	return formats, def
}

// buildPrinterAttrs constructs the full, static set of printer
// attributes returned in the printer-attributes group of
// Get-Printer-Attributes responses. kOctetsMax is the upper
// bound of job-k-octets-supported, typically derived from the spool
// filesystem's free space
func buildPrinterAttrs(cfg Configuration, uri, iconURI, adminURL string, kOctetsMax int) goipp.Attributes {
	var attrs goipp.Attributes

	add := func(name string, tag goipp.Tag, v goipp.Value) {
		attrs.Add(goipp.MakeAttribute(name, tag, v))
	}
	addStrings := func(name string, tag goipp.Tag, ss []string) {
		var vals goipp.Values
		for _, s := range ss {
			vals.Add(tag, goipp.String(s))
		}
		attrs.Add(goipp.Attribute{Name: name, Values: vals})
	}
	addInts := func(name string, tag goipp.Tag, is []int) {
		var vals goipp.Values
		for _, n := range is {
			vals.Add(tag, goipp.Integer(n))
		}
		attrs.Add(goipp.Attribute{Name: name, Values: vals})
	}

	formats, defFormat := splitFormats(cfg.Formats)

	add("charset-configured", goipp.TagCharset, goipp.String("utf-8"))
	addStrings("charset-supported", goipp.TagCharset, []string{"us-ascii", "utf-8"})
	add("color-supported", goipp.TagBoolean, goipp.Boolean(cfg.ColorPPM > 0))
	add("compression-supported", goipp.TagKeyword, goipp.String("none"))
	add("copies-default", goipp.TagInteger, goipp.Integer(1))
	add("copies-supported", goipp.TagRange, goipp.Range{Lower: 1, Upper: 999})
	add("document-format-default", goipp.TagMimeType, goipp.String(defFormat))
	addStrings("document-format-supported", goipp.TagMimeType, formats)
	add("generated-natural-language-supported", goipp.TagLanguage, goipp.String("en"))
	addStrings("ipp-versions-supported", goipp.TagKeyword, []string{"1.0", "1.1", "2.0"})
	addStrings("job-creation-attributes-supported", goipp.TagKeyword, jobCreationAttributesSupported)
	add("job-k-octets-supported", goipp.TagRange, goipp.Range{Lower: 0, Upper: kOctetsMax})
	add("job-priority-default", goipp.TagInteger, goipp.Integer(50))
	add("job-priority-supported", goipp.TagInteger, goipp.Integer(100))
	add("job-sheets-default", goipp.TagName, goipp.String("none"))
	add("job-sheets-supported", goipp.TagName, goipp.String("none"))
	addInts("media-bottom-margin-supported", goipp.TagInteger, mediaMargins)

	database := buildMediaColDatabase()
	var dbVals goipp.Values
	for _, c := range database {
		dbVals.Add(goipp.TagBeginCollection, c)
	}
	attrs.Add(goipp.Attribute{Name: "media-col-database", Values: dbVals})

	def := createMediaCol(mediaSizes[0].keyword, mediaTypeSupported[0],
		mediaSizes[0].x, mediaSizes[0].y, mediaMargins[1])
	add("media-col-default", goipp.TagBeginCollection, def)

	addStrings("media-col-supported", goipp.TagKeyword, mediaColSupported)
	add("media-default", goipp.TagKeyword, goipp.String(mediaSizes[0].keyword))
	addInts("media-left-margin-supported", goipp.TagInteger, mediaMargins)
	addInts("media-right-margin-supported", goipp.TagInteger, mediaMargins)

	mediaKeywords := make([]string, len(mediaSizes))
	for i, m := range mediaSizes {
		mediaKeywords[i] = m.keyword
	}
	addStrings("media-supported", goipp.TagKeyword, mediaKeywords)
	addInts("media-top-margin-supported", goipp.TagInteger, mediaMargins)
	addStrings("multiple-document-handling-supported", goipp.TagKeyword, multipleDocumentHandlingSupported)
	add("multiple-document-jobs-supported", goipp.TagBoolean, goipp.Boolean(false))
	add("natural-language-configured", goipp.TagLanguage, goipp.String("en"))
	add("number-up-default", goipp.TagInteger, goipp.Integer(1))
	add("number-up-supported", goipp.TagInteger, goipp.Integer(1))
	addInts("operations-supported", goipp.TagEnum, operationsSupported)
	add("orientation-requested-default", goipp.TagNoValue, goipp.Void{})
	addInts("orientation-requested-supported", goipp.TagEnum, orientationsSupported)
	add("pages-per-minute", goipp.TagInteger, goipp.Integer(cfg.PPM))
	if cfg.ColorPPM > 0 {
		add("pages-per-minute-color", goipp.TagInteger, goipp.Integer(cfg.ColorPPM))
	}
	add("pdl-override-supported", goipp.TagKeyword, goipp.String("attempted"))
	add("print-quality-default", goipp.TagEnum, goipp.Integer(qualityNormal))
	addInts("print-quality-supported", goipp.TagEnum, printQualitySupported)
	add("printer-device-id", goipp.TagText, goipp.String(buildDeviceID(cfg.Make, cfg.Model, formats)))
	add("printer-icons", goipp.TagURI, goipp.String(iconURI))
	add("printer-is-accepting-jobs", goipp.TagBoolean, goipp.Boolean(true))
	add("printer-info", goipp.TagText, goipp.String(cfg.Name))
	add("printer-location", goipp.TagText, goipp.String(cfg.Location))
	add("printer-make-and-model", goipp.TagText, goipp.String(cfg.Make+" "+cfg.Model))
	add("printer-more-info", goipp.TagURI, goipp.String(adminURL))
	add("printer-name", goipp.TagName, goipp.String(cfg.Name))
	add("printer-uri-supported", goipp.TagURI, goipp.String(uri))
	add("sides-default", goipp.TagKeyword, goipp.String("one-sided"))
	if cfg.Duplex {
		addStrings("sides-supported", goipp.TagKeyword, sidesSupportedAll)
	} else {
		addStrings("sides-supported", goipp.TagKeyword, sidesSupportedAll[:1])
	}
	add("uri-authentication-supported", goipp.TagKeyword, goipp.String("none"))
	add("uri-security-supported", goipp.TagKeyword, goipp.String("none"))
	addStrings("which-jobs-supported", goipp.TagKeyword, whichJobsSupported)

	return attrs
}

// kOctetsSupported derives job-k-octets-supported's upper bound from
// the free space available on the filesystem backing the spool
// directory, falling back to the largest representable value when
// that cannot be determined
func kOctetsSupported(spoolDir string) int {
	free, ok := spoolDirFreeKBytes(spoolDir)
	if !ok || free > int64(^uint32(0)>>1) {
		return 1<<31 - 1
	}
	return int(free)
}
