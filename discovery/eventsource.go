package discovery

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// eventSource owns the lifetime of exactly one discovery query. The query
// runs as a pump goroutine; when it exits, one terminal notification is
// delivered on Done: an empty string for a clean shutdown, the failure text
// otherwise. Never both, never more than one.
type eventSource struct {
	log       *logrus.Entry
	cancel    context.CancelFunc
	done      chan string
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// newEventSource starts run in its own goroutine. run must release every
// resource it acquired before returning; by the time the Done notification
// is observable the query is fully released.
func newEventSource(component string, run func(ctx context.Context) error) *eventSource {
	ctx, cancel := context.WithCancel(context.Background())
	src := &eventSource{
		log: logrus.WithFields(logrus.Fields{
			"component": component,
			"query_id":  uuid.NewString(),
		}),
		cancel: cancel,
		done:   make(chan string, 1),
	}

	src.wg.Add(1)
	go func() {
		defer src.wg.Done()
		err := run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			src.log.WithError(err).Warn("discovery query failed")
			src.done <- err.Error()
			return
		}
		src.log.Debug("discovery query finished")
		src.done <- ""
	}()

	return src
}

// Done yields the query's single terminal notification.
func (s *eventSource) Done() <-chan string {
	return s.done
}

// Close cancels the query and waits for the pump to exit. When Close
// returns, the query is released and its terminal notification is pending
// on Done. Safe to call more than once.
func (s *eventSource) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
	})
}
