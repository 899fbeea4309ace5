/* ippserver - a self-contained network IPP server
 *
 * DNS-SD publisher: system-independent part
 */

package main

import "fmt"

// DnsSdTxtItem is a single TXT record key/value pair
type DnsSdTxtItem struct {
	Key, Value string
}

// DnsSdTxtRecord is an ordered collection of TXT record items
type DnsSdTxtRecord []DnsSdTxtItem

// Add appends an item to the record
func (txt *DnsSdTxtRecord) Add(key, value string) {
	*txt = append(*txt, DnsSdTxtItem{key, value})
}

// IfNotEmpty adds an item only if value is non-empty, returning
// whether it did
func (txt *DnsSdTxtRecord) IfNotEmpty(key, value string) bool {
	if value != "" {
		txt.Add(key, value)
		return true
	}
	return false
}

// export renders the record as the [][]byte Avahi's AddService wants,
// one "key=value" entry per slot
func (txt DnsSdTxtRecord) export() [][]byte {
	exported := make([][]byte, 0, len(txt))
	for _, item := range txt {
		exported = append(exported, []byte(item.Key+"="+item.Value))
	}
	return exported
}

// DnsSdSvcInfo describes one DNS-SD service instance to register
type DnsSdSvcInfo struct {
	Type string // Service type, e.g. "_ipp._tcp"
	Port int
	Txt  DnsSdTxtRecord
}

// DnsSdServices is a collection of services published under one
// Service Instance Name
type DnsSdServices []DnsSdSvcInfo

// Add appends a service
func (services *DnsSdServices) Add(srv DnsSdSvcInfo) {
	*services = append(*services, srv)
}

// DnsSdPublisher registers and unregisters a printer's DNS-SD
// presence. A single publisher may carry several services (here,
// _printer._tcp and _ipp._tcp) under one instance name
type DnsSdPublisher struct {
	Instance string
	Services DnsSdServices
	sysdep   *dnssdSysdep
}

// NewDnsSdPublisher creates a publisher for the given services,
// unpublished until Publish is called
func NewDnsSdPublisher(services DnsSdServices) *DnsSdPublisher {
	return &DnsSdPublisher{Services: services}
}

// Publish registers all services under instance with the system's
// DNS-SD daemon
func (publisher *DnsSdPublisher) Publish(instance string) error {
	var err error

	publisher.Instance = instance
	publisher.sysdep, err = newDnssdSysdep(publisher.Instance, publisher.Services)
	if err != nil {
		return fmt.Errorf("DNS-SD: %w", err)
	}

	return nil
}

// Unpublish withdraws every service this publisher registered
func (publisher *DnsSdPublisher) Unpublish() {
	if publisher.sysdep != nil {
		publisher.sysdep.Close()
		publisher.sysdep = nil
	}
}

// printerDnsSdServices builds the two services a printer advertises,
// per the TXT record layout of the service catalog: a legacy
// _printer._tcp entry at port 0 (present only so older LPR-style
// clients notice the queue exists) and the real service, under
// cfg.RegType, at the listening port
func printerDnsSdServices(cfg Configuration, adminURL string, port int) DnsSdServices {
	formats, _ := splitFormats(cfg.Formats)

	var txt DnsSdTxtRecord
	txt.Add("txtvers", "1")
	txt.Add("qtotal", "1")
	txt.Add("rp", "ipp")
	txt.Add("ty", cfg.Make+" "+cfg.Model)
	txt.IfNotEmpty("adminurl", adminURL)
	txt.IfNotEmpty("note", cfg.Location)
	txt.Add("priority", "0")
	txt.Add("product", "("+cfg.Model+")")

	pdl := ""
	for i, f := range formats {
		if i > 0 {
			pdl += ","
		}
		pdl += f
	}
	txt.Add("pdl", pdl)

	txt.Add("Color", boolTxt(cfg.ColorPPM > 0))
	txt.Add("Duplex", boolTxt(cfg.Duplex))
	txt.IfNotEmpty("usb_MFG", cfg.Make)
	txt.IfNotEmpty("usb_MDL", cfg.Model)
	txt.Add("air", "none")

	var services DnsSdServices
	services.Add(DnsSdSvcInfo{Type: "_printer._tcp", Port: 0, Txt: txt})
	services.Add(DnsSdSvcInfo{Type: cfg.RegType, Port: port, Txt: txt})

	return services
}

func boolTxt(v bool) string {
	if v {
		return "T"
	}
	return "F"
}
