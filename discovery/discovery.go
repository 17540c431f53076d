package discovery

import (
	"errors"
	"sync"
)

// Service bundles one advertiser and one browser sharing a single outbound
// event stream.
type Service struct {
	Advertiser *Advertiser
	Browser    *Browser

	events   chan Event
	stopOnce sync.Once
}

// Start advertises the identity and starts browsing for other instances of
// the configured service type.
func Start(identity *LocalIdentity, config Config) (*Service, error) {
	if identity == nil {
		return nil, errors.New("local identity is required")
	}
	if identity.Port() <= 0 {
		return nil, errors.New("identity port must be > 0")
	}

	cfg := config.withDefaults()
	events := make(chan Event, 128)

	advertiser, err := startAdvertiser(identity, cfg, events)
	if err != nil {
		return nil, err
	}

	browser, err := startBrowser(identity, cfg, events)
	if err != nil {
		advertiser.Close()
		return nil, err
	}

	return &Service{
		Advertiser: advertiser,
		Browser:    browser,
		events:     events,
	}, nil
}

// Events provides discovery updates for the embedding application. The
// channel is closed by Stop.
func (s *Service) Events() <-chan Event {
	return s.events
}

// Stop withdraws the advertisement and tears the browser down. The browser
// goes first so the identity clear performed by the advertiser is not
// observed as a rename by a live peer set.
func (s *Service) Stop() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		if s.Browser != nil {
			s.Browser.Close()
		}
		if s.Advertiser != nil {
			s.Advertiser.Close()
		}
		close(s.events)
	})
}
