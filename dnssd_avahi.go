/* ippserver - a self-contained network IPP server
 *
 * DNS-SD, Avahi-based system-dependent part
 */

package main

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/holoplot/go-avahi"
)

// dnssdSysdep is the live, registered state of a publisher: a D-Bus
// connection to the system message bus, and the Avahi entry group
// holding the committed service records
type dnssdSysdep struct {
	conn   *dbus.Conn
	server *avahi.Server
	group  *avahi.EntryGroup
}

// newDnssdSysdep connects to the system bus, opens an Avahi entry
// group and commits one service record per entry in services
func newDnssdSysdep(instance string, services DnsSdServices) (*dnssdSysdep, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("avahi: %w", err)
	}

	server, err := avahi.ServerNew(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("avahi: %w", err)
	}

	group, err := server.EntryGroupNew()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("avahi: %w", err)
	}

	for _, svc := range services {
		err = group.AddService(
			avahi.InterfaceUnspec,
			avahi.ProtoUnspec,
			0,
			instance,
			svc.Type,
			"",
			"",
			uint16(svc.Port),
			svc.Txt.export(),
		)
		if err != nil {
			group.Reset()
			conn.Close()
			return nil, fmt.Errorf("avahi: AddService(%s): %w", svc.Type, err)
		}
	}

	if err = group.Commit(); err != nil {
		group.Reset()
		conn.Close()
		return nil, fmt.Errorf("avahi: Commit: %w", err)
	}

	return &dnssdSysdep{conn: conn, server: server, group: group}, nil
}

// Close withdraws the entry group and releases the bus connection
func (sd *dnssdSysdep) Close() {
	sd.group.Reset()
	sd.conn.Close()
}
