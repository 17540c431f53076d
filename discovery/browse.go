package discovery

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/sirupsen/logrus"
)

// browseNotification reports one change to the set of advertised instances.
// The instance name is the peer's service name; service and domain are
// carried along so a resolver can be issued for the same identity tuple.
type browseNotification struct {
	add      bool
	instance string
	service  string
	domain   string
}

// runBrowse is the browse query pump. The facility's long-running browse
// does not deliver goodbye packets dependably, so instead each refresh tick
// opens a bounded scan window, collects the instances answering for the
// service type, and diffs against the previous window to synthesize add and
// remove notifications. Runs until ctx is canceled; a facility error aborts
// the query and is returned.
func runBrowse(ctx context.Context, cfg Config, log *logrus.Entry, notify chan<- browseNotification) error {
	known := make(map[string]browseNotification)

	scan := func() error {
		current, err := scanOnce(ctx, cfg)
		if err != nil {
			return err
		}

		for _, name := range sortedKeys(current) {
			if _, seen := known[name]; !seen {
				n := current[name]
				n.add = true
				known[name] = n
				log.WithField("instance", name).Debug("instance appeared")
				if err := send(ctx, notify, n); err != nil {
					return err
				}
			}
		}
		for _, name := range sortedKeys(known) {
			if _, still := current[name]; !still {
				n := known[name]
				n.add = false
				delete(known, name)
				log.WithField("instance", name).Debug("instance disappeared")
				if err := send(ctx, notify, n); err != nil {
					return err
				}
			}
		}
		return nil
	}

	// Prime the peer list immediately, then keep scanning on the tick.
	if err := scan(); err != nil {
		return err
	}

	ticker := time.NewTicker(cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := scan(); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// scanOnce runs a single browse window and returns the instances seen.
func scanOnce(ctx context.Context, cfg Config) (map[string]browseNotification, error) {
	scanCtx, cancel := context.WithTimeout(ctx, cfg.ScanTimeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 32)
	seen := make(map[string]browseNotification)
	collectorDone := make(chan struct{})

	go func() {
		defer close(collectorDone)
		for {
			select {
			case <-scanCtx.Done():
				return
			case entry := <-entries:
				if entry == nil || entry.Instance == "" {
					continue
				}
				seen[entry.Instance] = browseNotification{
					instance: entry.Instance,
					service:  entry.Service,
					domain:   entry.Domain,
				}
			}
		}
	}()

	err := cfg.browseFn(scanCtx, cfg.Service, cfg.Domain, entries)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		cancel()
		<-collectorDone
		return nil, err
	}

	<-scanCtx.Done()
	<-collectorDone

	// The window ending by deadline is the normal case; only an outer
	// cancellation matters here.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return seen, nil
}

func send(ctx context.Context, notify chan<- browseNotification, n browseNotification) error {
	select {
	case notify <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sortedKeys(m map[string]browseNotification) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
