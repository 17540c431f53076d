package discovery

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Advertiser publishes the local identity's service record and reports the
// name the facility actually accepted. Registration failures are terminal
// for the instance; there is no retry at this layer.
type Advertiser struct {
	identity  *LocalIdentity
	log       *logrus.Entry
	source    *eventSource
	closeOnce sync.Once
}

// startAdvertiser registers ServiceNameOf(requested username, suffix) for
// the configured service type. The accepted name, truncated by the facility
// when over its limit but otherwise unaltered, is written into the identity
// and announced through a registered event.
func startAdvertiser(identity *LocalIdentity, cfg Config, events chan<- Event) (*Advertiser, error) {
	requested := ServiceNameOf(identity.RequestedUsername(), identity.Suffix())
	accepted := truncateServiceName(requested)

	server, err := cfg.registerFn(accepted, cfg.Service, cfg.Domain, identity.Port(), []string{"v=1"}, nil)
	if err != nil {
		err = fmt.Errorf("register %q: %w", accepted, err)
		emitEvent(events, Event{Type: EventError, Message: err.Error()})
		return nil, err
	}

	a := &Advertiser{
		identity: identity,
		log: logrus.WithFields(logrus.Fields{
			"component":    "advertiser",
			"service_name": accepted,
		}),
	}

	// The registration handle lives exactly as long as this source: its
	// pump idles until teardown, then unregisters before the terminal
	// notification becomes observable.
	a.source = newEventSource("advertiser", func(ctx context.Context) error {
		<-ctx.Done()
		if server != nil {
			server.Shutdown()
		}
		return ctx.Err()
	})

	// The facility does not rename beyond truncation, but the contract
	// holds for arbitrary behavior: report a username change if the
	// accepted name no longer decomposes to the requested username.
	if username := UsernameOf(accepted); username != identity.RequestedUsername() {
		a.log.WithField("username", username).Warn("accepted name decomposes to a different username")
		emitEvent(events, Event{Type: EventUsernameChanged, Username: username})
	}

	identity.setAcceptedServiceName(accepted)
	emitEvent(events, Event{Type: EventRegistered, Name: accepted})
	a.log.Debug("advertisement registered")

	return a, nil
}

// Close unregisters the advertisement and clears the identity's accepted
// service name, notifying anything tracking whether the local name is live.
func (a *Advertiser) Close() {
	a.closeOnce.Do(func() {
		a.source.Close()
		a.identity.setAcceptedServiceName("")
		a.log.Debug("advertisement withdrawn")
	})
}
