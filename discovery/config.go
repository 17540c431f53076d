package discovery

import (
	"context"
	"net"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// DefaultService is the DNS-SD service type without domain suffix.
	DefaultService = "_lanshare._tcp"
	// DefaultDomain is the mDNS domain.
	DefaultDomain = "local."
	// DefaultRefreshInterval is the cadence of browse scan windows.
	DefaultRefreshInterval = 10 * time.Second
	// DefaultScanTimeout bounds one browse scan window.
	DefaultScanTimeout = 3 * time.Second
	// DefaultResolveTimeout bounds one peer resolution pipeline.
	DefaultResolveTimeout = 3 * time.Second
)

// Config controls advertiser and browser behavior. The zero value is usable;
// missing fields are filled by withDefaults.
type Config struct {
	Service         string
	Domain          string
	RefreshInterval time.Duration
	ScanTimeout     time.Duration
	ResolveTimeout  time.Duration

	registerFn   registerFunc
	browseFn     browseFunc
	lookupFn     lookupFunc
	addrLookupFn addrLookupFunc
}

func (c Config) withDefaults() Config {
	out := c
	if out.Service == "" {
		out.Service = DefaultService
	}
	if out.Domain == "" {
		out.Domain = DefaultDomain
	}
	if out.RefreshInterval <= 0 {
		out.RefreshInterval = DefaultRefreshInterval
	}
	if out.ScanTimeout <= 0 {
		out.ScanTimeout = DefaultScanTimeout
	}
	if out.ResolveTimeout <= 0 {
		out.ResolveTimeout = DefaultResolveTimeout
	}
	if out.registerFn == nil {
		out.registerFn = zeroconf.Register
	}
	if out.addrLookupFn == nil {
		out.addrLookupFn = func(ctx context.Context, host string) ([]net.IPAddr, error) {
			return net.DefaultResolver.LookupIPAddr(ctx, host)
		}
	}
	return out
}

// ensureResolverFns fills the browse and lookup seams from one shared
// zeroconf resolver. Failing to construct the resolver means the discovery
// facility itself is broken, which no query-level retry can fix.
func (c *Config) ensureResolverFns() error {
	if c.browseFn != nil && c.lookupFn != nil {
		return nil
	}
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return err
	}
	if c.browseFn == nil {
		c.browseFn = resolver.Browse
	}
	if c.lookupFn == nil {
		c.lookupFn = resolver.Lookup
	}
	return nil
}
