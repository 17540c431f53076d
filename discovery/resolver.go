package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/grandcat/zeroconf"
)

// resolveOutcome is posted back to the owning browser when a resolution
// pipeline terminates. ok is false for failed attempts, which still have to
// be reported so the browser can drop the pipeline from its in-flight set.
type resolveOutcome struct {
	serviceName string
	peer        Peer
	ok          bool
}

// runResolve is the one-shot resolution pipeline for a discovered instance:
// resolve the service to (hostname, port), then look the hostname up to an
// address, taking the first one. Canceling ctx aborts whichever stage is
// pending, including the hostname lookup.
func runResolve(ctx context.Context, cfg Config, instance, service, domain string) (Peer, error) {
	resolveCtx, cancel := context.WithTimeout(ctx, cfg.ResolveTimeout)
	defer cancel()

	hostname, port, err := resolveService(resolveCtx, cfg, instance, service, domain)
	if err != nil {
		return Peer{}, err
	}

	addrs, err := cfg.addrLookupFn(resolveCtx, hostname)
	if err != nil {
		return Peer{}, fmt.Errorf("lookup %q: %w", hostname, err)
	}
	if len(addrs) == 0 {
		// A successful lookup never returns an empty list; treat it as a
		// failed attempt rather than trusting the result.
		return Peer{}, fmt.Errorf("lookup %q: empty address list", hostname)
	}

	return Peer{
		ServiceName: instance,
		Username:    UsernameOf(instance),
		Hostname:    hostname,
		Port:        port,
		Address:     addrs[0].IP.String(),
	}, nil
}

// resolveService issues the facility resolve query and waits for its first
// answer for the instance.
func resolveService(ctx context.Context, cfg Config, instance, service, domain string) (string, int, error) {
	entries := make(chan *zeroconf.ServiceEntry, 4)
	if err := cfg.lookupFn(ctx, instance, service, domain, entries); err != nil {
		return "", 0, fmt.Errorf("resolve %q: %w", instance, err)
	}

	for {
		select {
		case entry, open := <-entries:
			if !open {
				return "", 0, fmt.Errorf("resolve %q: query ended without answer", instance)
			}
			if entry == nil || entry.HostName == "" {
				continue
			}
			return entry.HostName, entry.Port, nil
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", 0, fmt.Errorf("resolve %q: no answer before timeout", instance)
			}
			return "", 0, ctx.Err()
		}
	}
}
