/* ippserver - a self-contained network IPP server
 *
 * Console color/tty detection
 */

package main

import (
	"io"
	"os"

	"golang.org/x/term"
)

// logIsAtty returns true, if os.File refers to a terminal
func logIsAtty(file *os.File) bool {
	return term.IsTerminal(int(file.Fd()))
}

// logColorConsoleWrite writes a colorized line to the console
func logColorConsoleWrite(out io.Writer, level LogLevel, line []byte) {
	var beg, end string

	switch {
	case (level & LogError) != 0:
		beg, end = "\033[31;1m", "\033[0m" // Red
	case (level & LogInfo) != 0:
		beg, end = "\033[32;1m", "\033[0m" // Green
	case (level & LogDebug) != 0:
		beg, end = "\033[37;1m", "\033[0m" // White
	case (level & LogTraceAll) != 0:
		beg, end = "\033[37m", "\033[0m" // Gray
	}

	if beg == "" {
		out.Write(line)
		return
	}

	out.Write([]byte(beg))
	out.Write(line)
	out.Write([]byte(end))
}
