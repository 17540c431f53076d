package discovery

import (
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIdentity(username string, port int) *LocalIdentity {
	identity := NewLocalIdentity(username, port)
	identity.suffix = "h2" // pin the suffix; tests must not depend on the host
	return identity
}

func recvEvent(t *testing.T, events <-chan Event, eventType EventType) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-events:
			if event.Type == eventType {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", eventType)
			return Event{}
		}
	}
}

func TestAdvertiserReportsAcceptedName(t *testing.T) {
	var (
		gotInstance string
		gotService  string
		gotDomain   string
		gotPort     int
	)
	cfg := Config{
		registerFn: func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error) {
			gotInstance = instance
			gotService = service
			gotDomain = domain
			gotPort = port
			return nil, nil
		},
	}.withDefaults()

	identity := testIdentity("bob", 4242)
	events := make(chan Event, 8)

	advertiser, err := startAdvertiser(identity, cfg, events)
	require.NoError(t, err)
	defer advertiser.Close()

	assert.Equal(t, "bob@h2", gotInstance)
	assert.Equal(t, DefaultService, gotService)
	assert.Equal(t, DefaultDomain, gotDomain)
	assert.Equal(t, 4242, gotPort)

	registered := recvEvent(t, events, EventRegistered)
	assert.Equal(t, "bob@h2", registered.Name)
	assert.Equal(t, "bob@h2", identity.AcceptedServiceName())
}

func TestAdvertiserTruncatesOverlongName(t *testing.T) {
	cfg := Config{
		registerFn: func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error) {
			return nil, nil
		},
	}.withDefaults()

	identity := testIdentity(strings.Repeat("x", 80), 4242)
	events := make(chan Event, 8)

	advertiser, err := startAdvertiser(identity, cfg, events)
	require.NoError(t, err)
	defer advertiser.Close()

	// Truncation ate the suffix here, so the accepted name no longer
	// decomposes to the requested username. That is announced before the
	// registration itself.
	changed := recvEvent(t, events, EventUsernameChanged)
	registered := recvEvent(t, events, EventRegistered)

	assert.Len(t, registered.Name, maxServiceNameBytes)
	assert.Equal(t, registered.Name, identity.AcceptedServiceName())
	assert.Equal(t, UsernameOf(registered.Name), changed.Username)
}

func TestAdvertiserRegistrationFailureIsTerminal(t *testing.T) {
	cfg := Config{
		registerFn: func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error) {
			return nil, errors.New("name conflict")
		},
	}.withDefaults()

	identity := testIdentity("bob", 4242)
	events := make(chan Event, 8)

	_, err := startAdvertiser(identity, cfg, events)
	require.ErrorContains(t, err, "name conflict")
	assert.Empty(t, identity.AcceptedServiceName())

	failure := recvEvent(t, events, EventError)
	assert.Contains(t, failure.Message, "name conflict")
}

func TestAdvertiserCloseClearsAcceptedName(t *testing.T) {
	cfg := Config{
		registerFn: func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error) {
			return nil, nil
		},
	}.withDefaults()

	identity := testIdentity("bob", 4242)

	var cleared bool
	identity.OnAcceptedNameChange(func(previous, current string) {
		if previous == "bob@h2" && current == "" {
			cleared = true
		}
	})

	events := make(chan Event, 8)
	advertiser, err := startAdvertiser(identity, cfg, events)
	require.NoError(t, err)

	advertiser.Close()
	advertiser.Close() // idempotent

	assert.Empty(t, identity.AcceptedServiceName())
	assert.True(t, cleared, "identity listeners must observe the clear")
}
