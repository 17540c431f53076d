package discovery

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry(instance, hostname string, port int) *zeroconf.ServiceEntry {
	return &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{
			Instance: instance,
			Service:  DefaultService,
			Domain:   DefaultDomain,
		},
		HostName: hostname,
		Port:     port,
	}
}

func recvNotification(t *testing.T, ch <-chan browseNotification) browseNotification {
	t.Helper()
	select {
	case n := <-ch:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for browse notification")
		return browseNotification{}
	}
}

func TestRunBrowseSynthesizesAddAndRemove(t *testing.T) {
	var window int32
	cfg := Config{
		RefreshInterval: 20 * time.Millisecond,
		ScanTimeout:     10 * time.Millisecond,
		browseFn: func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
			w := atomic.AddInt32(&window, 1)
			entries <- testEntry("alice@h1", "h1.local", 1111)
			if w == 1 {
				entries <- testEntry("bob@h2", "h2.local", 2222)
			}
			<-ctx.Done()
			return nil
		},
	}.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notify := make(chan browseNotification, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- runBrowse(ctx, cfg, logrus.WithField("component", "test"), notify)
	}()

	first := recvNotification(t, notify)
	second := recvNotification(t, notify)
	require.True(t, first.add)
	require.True(t, second.add)
	assert.Equal(t, "alice@h1", first.instance)
	assert.Equal(t, "bob@h2", second.instance)
	assert.Equal(t, DefaultService, first.service)
	assert.Equal(t, DefaultDomain, first.domain)

	// bob is absent from the second window onward.
	third := recvNotification(t, notify)
	assert.False(t, third.add)
	assert.Equal(t, "bob@h2", third.instance)

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
}

func TestRunBrowsePropagatesFacilityError(t *testing.T) {
	cfg := Config{
		RefreshInterval: 20 * time.Millisecond,
		ScanTimeout:     10 * time.Millisecond,
		browseFn: func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
			return errors.New("browse refused")
		},
	}.withDefaults()

	notify := make(chan browseNotification, 1)
	err := runBrowse(context.Background(), cfg, logrus.WithField("component", "test"), notify)
	require.EqualError(t, err, "browse refused")
}
