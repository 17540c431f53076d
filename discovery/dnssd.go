package discovery

import (
	"context"
	"net"
	"unicode/utf8"

	"github.com/grandcat/zeroconf"
)

// maxServiceNameBytes is the DNS-SD instance name limit (64 bytes including
// the terminator). Longer names are truncated silently, matching the
// facility behavior the rest of the subsystem tolerates.
const maxServiceNameBytes = 63

// Seams over the multicast discovery facility and the hostname lookup
// primitive. Production wiring is grandcat/zeroconf plus net.DefaultResolver;
// tests inject fakes through Config.
type (
	registerFunc   func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error)
	browseFunc     func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
	lookupFunc     func(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
	addrLookupFunc func(ctx context.Context, host string) ([]net.IPAddr, error)
)

// truncateServiceName cuts an instance name down to the DNS-SD byte limit,
// never splitting a UTF-8 sequence.
func truncateServiceName(name string) string {
	if len(name) <= maxServiceNameBytes {
		return name
	}
	cut := maxServiceNameBytes
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}
