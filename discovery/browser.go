package discovery

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

type identityChange struct {
	previous string
	current  string
}

// Browser maintains the live set of remote peers for one service type. It
// owns the browse query, the peers it has announced, and every in-flight
// resolution pipeline; all of them die with it. One loop goroutine owns all
// browser state, so handlers never need locking.
type Browser struct {
	cfg      Config
	identity *LocalIdentity
	events   chan<- Event
	log      *logrus.Entry

	source          *eventSource
	notifications   chan browseNotification
	resolved        chan resolveOutcome
	identityChanges chan identityChange
	peersReq        chan chan []Peer

	peers      map[string]*Peer
	inflight   map[string]context.CancelFunc
	resolverWG sync.WaitGroup

	closed    chan struct{}
	closeOnce sync.Once
	loopDone  chan struct{}
}

// startBrowser issues the browse query and starts the browser loop. An
// unusable discovery facility is reported as a construction error; it is
// not retried.
func startBrowser(identity *LocalIdentity, cfg Config, events chan<- Event) (*Browser, error) {
	if err := cfg.ensureResolverFns(); err != nil {
		emitEvent(events, Event{Type: EventError, Message: "discovery facility unavailable: " + err.Error()})
		return nil, err
	}

	b := &Browser{
		cfg:             cfg,
		identity:        identity,
		events:          events,
		log:             logrus.WithField("component", "browser"),
		notifications:   make(chan browseNotification, 16),
		resolved:        make(chan resolveOutcome, 16),
		identityChanges: make(chan identityChange, 4),
		peersReq:        make(chan chan []Peer),
		peers:           make(map[string]*Peer),
		inflight:        make(map[string]context.CancelFunc),
		closed:          make(chan struct{}),
		loopDone:        make(chan struct{}),
	}

	b.source = newEventSource("browser", func(ctx context.Context) error {
		return runBrowse(ctx, b.cfg, b.log, b.notifications)
	})

	// A rename or shutdown of the local advertisement must be reflected in
	// the tracked set, or a stale self entry lingers in the peer list.
	identity.OnAcceptedNameChange(func(previous, current string) {
		select {
		case b.identityChanges <- identityChange{previous: previous, current: current}:
		case <-b.closed:
		}
	})

	go b.loop()
	return b, nil
}

// Peers returns a snapshot of the currently tracked remote peers, sorted by
// service name. Returns nil once the browser has shut down.
func (b *Browser) Peers() []Peer {
	req := make(chan []Peer, 1)
	select {
	case b.peersReq <- req:
		return <-req
	case <-b.loopDone:
		return nil
	}
}

// Close tears the browser down: the browse query is released, in-flight
// resolutions are aborted, and every tracked peer is dropped. Safe to call
// more than once.
func (b *Browser) Close() {
	b.closeOnce.Do(func() {
		close(b.closed)
	})
	<-b.loopDone
}

func (b *Browser) loop() {
	defer close(b.loopDone)

	for {
		select {
		case n := <-b.notifications:
			if n.add {
				b.spawnResolver(n)
			} else {
				b.handleRemoved(n.instance)
			}
		case out := <-b.resolved:
			b.handleResolved(out)
		case change := <-b.identityChanges:
			b.handleIdentityChange(change)
		case req := <-b.peersReq:
			req <- b.snapshot()
		case message := <-b.source.Done():
			if message != "" {
				b.log.WithField("error", message).Error("browse query failed")
				emitEvent(b.events, Event{Type: EventError, Message: "browse failed: " + message})
			}
			b.teardown()
			return
		case <-b.closed:
			b.teardown()
			return
		}
	}
}

// spawnResolver starts a resolution pipeline for an appeared instance. A
// pipeline already in flight for the same name makes the notification a
// duplicate; resolving twice in parallel buys nothing.
func (b *Browser) spawnResolver(n browseNotification) {
	if _, running := b.inflight[n.instance]; running {
		b.log.WithField("service_name", n.instance).Debug("resolution already in flight")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.inflight[n.instance] = cancel
	b.resolverWG.Add(1)

	go func() {
		defer b.resolverWG.Done()

		out := resolveOutcome{serviceName: n.instance}
		peer, err := runResolve(ctx, b.cfg, n.instance, n.service, n.domain)
		if err != nil {
			// Failed attempts stay contained here: one peer's resolution
			// trouble must not interrupt browsing for the others.
			if ctx.Err() == nil {
				b.log.WithField("service_name", n.instance).WithError(err).Warn("resolution failed")
			}
		} else {
			out.peer = peer
			out.ok = true
		}

		select {
		case b.resolved <- out:
		case <-ctx.Done():
		}
	}()
}

func (b *Browser) handleResolved(out resolveOutcome) {
	if cancel, running := b.inflight[out.serviceName]; running {
		cancel()
		delete(b.inflight, out.serviceName)
	}
	if !out.ok {
		return
	}

	if existing, tracked := b.peers[out.peer.ServiceName]; tracked {
		existing.Hostname = out.peer.Hostname
		existing.Port = out.peer.Port
		existing.Address = out.peer.Address
		b.log.WithField("service_name", out.peer.ServiceName).Debug("peer refreshed")
		return
	}

	if out.peer.ServiceName == b.identity.AcceptedServiceName() {
		b.log.WithField("service_name", out.peer.ServiceName).Debug("discarding self discovery")
		return
	}

	peer := out.peer
	b.peers[peer.ServiceName] = &peer
	b.log.WithFields(logrus.Fields{
		"service_name": peer.ServiceName,
		"address":      peer.Address,
		"port":         peer.Port,
	}).Info("peer added")
	emitEvent(b.events, Event{Type: EventPeerAdded, Peer: peer})
}

func (b *Browser) handleRemoved(serviceName string) {
	if serviceName == b.identity.AcceptedServiceName() {
		b.log.Debug("ignoring removal of own advertisement")
		return
	}

	peer, tracked := b.peers[serviceName]
	if !tracked {
		// Benign race: already removed, or its resolution was discarded.
		b.log.WithField("service_name", serviceName).Warn("remove for unknown peer")
		return
	}

	delete(b.peers, serviceName)
	b.log.WithField("service_name", serviceName).Info("peer removed")
	emitEvent(b.events, Event{Type: EventPeerRemoved, Username: peer.Username, Peer: *peer})
}

func (b *Browser) handleIdentityChange(change identityChange) {
	for _, name := range []string{change.previous, change.current} {
		if name == "" {
			continue
		}
		peer, tracked := b.peers[name]
		if !tracked {
			continue
		}
		delete(b.peers, name)
		b.log.WithField("service_name", name).Debug("dropping stale self entry")
		emitEvent(b.events, Event{Type: EventPeerRemoved, Username: peer.Username, Peer: *peer})
	}
}

func (b *Browser) teardown() {
	b.source.Close()
	for name, cancel := range b.inflight {
		cancel()
		delete(b.inflight, name)
	}
	b.resolverWG.Wait()
	b.peers = nil
}

func (b *Browser) snapshot() []Peer {
	out := make([]Peer, 0, len(b.peers))
	for _, peer := range b.peers {
		out = append(out, *peer)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ServiceName < out[j].ServiceName
	})
	return out
}
