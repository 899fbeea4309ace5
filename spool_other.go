//go:build !unix

/* ippserver - a self-contained network IPP server
 *
 * Spool filesystem free space (fallback for non-Unix platforms)
 */

package main

// spoolDirFreeKBytes is unavailable outside Unix; callers fall back
// to the largest representable job-k-octets-supported value
func spoolDirFreeKBytes(dir string) (int64, bool) {
	return 0, false
}
