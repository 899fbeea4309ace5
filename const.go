/* ippserver - a self-contained network IPP server
 *
 * Timeouts, limits and other tunables
 */

package main

import "time"

const (
	// HTTPReadTimeout bounds how long a worker waits for a
	// complete HTTP request, per §5 of the design
	HTTPReadTimeout = 30 * time.Second

	// HTTPKeepAliveTimeout bounds idle time between requests on
	// a keep-alive connection
	HTTPKeepAliveTimeout = 10 * time.Second

	// ListenBacklog is the listen(2) backlog named for the IPv4
	// and IPv6 listening sockets. NewListeners does not pass it
	// to the kernel: Go's net package takes no backlog argument
	ListenBacklog = 5

	// JobCleanupInterval is how often the main loop looks for
	// jobs whose cancel latch is set and performs their deferred
	// transition to canceled
	JobCleanupInterval = 10 * time.Millisecond

	// DefaultSpoolDirMode is the permission mode used when
	// creating the default spool directory
	DefaultSpoolDirMode = 0777
)
