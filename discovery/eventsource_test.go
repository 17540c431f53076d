package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventSourceCleanCloseNotifiesWithEmptyMessage(t *testing.T) {
	released := make(chan struct{})
	src := newEventSource("test", func(ctx context.Context) error {
		<-ctx.Done()
		close(released)
		return ctx.Err()
	})

	src.Close()

	// Release happens no later than the terminal notification.
	select {
	case <-released:
	default:
		t.Fatal("query not released by the time Close returned")
	}

	select {
	case message := <-src.Done():
		assert.Empty(t, message)
	default:
		t.Fatal("terminal notification not pending after Close")
	}
}

func TestEventSourceFailureCarriesMessage(t *testing.T) {
	src := newEventSource("test", func(ctx context.Context) error {
		return errors.New("registration conflict")
	})

	select {
	case message := <-src.Done():
		require.Equal(t, "registration conflict", message)
	case <-time.After(time.Second):
		t.Fatal("no terminal notification for failed query")
	}

	src.Close()
}

func TestEventSourceCloseIsIdempotent(t *testing.T) {
	src := newEventSource("test", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	src.Close()
	src.Close()

	assert.Empty(t, <-src.Done())
}
