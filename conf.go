/* ippserver - a self-contained network IPP server
 *
 * Program configuration
 */

package main

import (
	"fmt"
	"os"
)

// Configuration represents the complete, CLI-derived program
// configuration. There is no on-disk configuration file: every knob
// here is set once, from flags, before the printer is constructed,
// and is treated as immutable afterward
type Configuration struct {
	Name       string // Printer name (positional argument)
	Duplex     bool   // -2: printer supports two-sided printing
	Make       string // -M: manufacturer name
	SpoolDir   string // -d: spool directory
	Formats    string // -f: comma-separated document-format-supported list
	Icon       string // -i: path to printer icon (PNG)
	Location   string // -l: printer-location
	Model      string // -m: printer-make-and-model model part
	Port       int    // -p: port; 0 means auto-assign
	RegType    string // -r: DNS-SD service type for the real service
	PPM        int    // -s: monochrome pages-per-minute
	ColorPPM   int    // -s: color pages-per-minute (0 means no color)
	ColorConsole bool // enable ANSI colors on console log output
}

// DefaultConfiguration returns the configuration defaults defined by
// the CLI surface
func DefaultConfiguration() Configuration {
	return Configuration{
		Duplex:       false,
		Make:         "Unknown",
		SpoolDir:     fmt.Sprintf("/tmp/ippserver.%d", os.Getpid()),
		Formats:      "application/pdf,image/jpeg",
		Icon:         "printer.png",
		Model:        "Printer",
		Port:         0,
		RegType:      "_ipp._tcp",
		PPM:          10,
		ColorPPM:     0,
		ColorConsole: true,
	}
}
