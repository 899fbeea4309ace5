//go:build unix

/* ippserver - a self-contained network IPP server
 *
 * Spool filesystem free space
 */

package main

import "golang.org/x/sys/unix"

// spoolDirFreeKBytes returns the free space available on the
// filesystem backing dir, in kilobytes
func spoolDirFreeKBytes(dir string) (int64, bool) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, false
	}

	free := uint64(st.Bsize) * st.Bfree / 1024
	return int64(free), true
}
