package discovery

import (
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
)

// LocalIdentity is the running instance's own published presence. The
// advertiser writes the accepted service name once registration completes;
// the browser watches it to filter the local instance out of the peer list.
// The embedding application owns the identity; discovery components only
// read it or update the accepted name.
type LocalIdentity struct {
	mu                  sync.Mutex
	requestedUsername   string
	suffix              string
	port                int
	acceptedServiceName string
	listeners           []func(previous, current string)
}

// NewLocalIdentity builds an identity for the given username and port. The
// disambiguation suffix is derived once from the machine hostname, with a
// random numeric fallback when no hostname is available.
func NewLocalIdentity(username string, port int) *LocalIdentity {
	return &LocalIdentity{
		requestedUsername: username,
		suffix:            deriveSuffix(),
		port:              port,
	}
}

// RequestedUsername returns the user-chosen display name.
func (id *LocalIdentity) RequestedUsername() string {
	id.mu.Lock()
	defer id.mu.Unlock()
	return id.requestedUsername
}

// Suffix returns the per-host disambiguator, stable for the process lifetime.
func (id *LocalIdentity) Suffix() string {
	return id.suffix
}

// Port returns the advertised port, fixed for the process lifetime.
func (id *LocalIdentity) Port() int {
	return id.port
}

// AcceptedServiceName returns the identifier currently published on the
// network, or "" when no advertisement is live.
func (id *LocalIdentity) AcceptedServiceName() string {
	id.mu.Lock()
	defer id.mu.Unlock()
	return id.acceptedServiceName
}

// OnAcceptedNameChange registers a listener invoked whenever the accepted
// service name changes, including being cleared at advertiser teardown.
// Listeners run outside the identity lock and must not assume any ordering
// relative to other listeners.
func (id *LocalIdentity) OnAcceptedNameChange(fn func(previous, current string)) {
	id.mu.Lock()
	defer id.mu.Unlock()
	id.listeners = append(id.listeners, fn)
}

func (id *LocalIdentity) setAcceptedServiceName(name string) {
	id.mu.Lock()
	previous := id.acceptedServiceName
	if previous == name {
		id.mu.Unlock()
		return
	}
	id.acceptedServiceName = name
	listeners := make([]func(previous, current string), len(id.listeners))
	copy(listeners, id.listeners)
	id.mu.Unlock()

	for _, fn := range listeners {
		fn(previous, name)
	}
}

func deriveSuffix() string {
	if host, err := os.Hostname(); err == nil {
		host = strings.TrimSpace(host)
		if host != "" {
			return host
		}
	}
	return fmt.Sprintf("%06d", rand.Intn(1_000_000))
}
