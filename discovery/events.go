package discovery

const (
	// EventPeerAdded is emitted when a remote peer becomes reachable.
	EventPeerAdded EventType = "peer_added"
	// EventPeerRemoved is emitted when a previously announced peer is gone.
	EventPeerRemoved EventType = "peer_removed"
	// EventRegistered is emitted when the local advertisement is accepted,
	// carrying the final (possibly truncated) service name.
	EventRegistered EventType = "registered"
	// EventUsernameChanged is emitted when the accepted service name
	// decomposes to a different username than the requested one.
	EventUsernameChanged EventType = "username_changed"
	// EventError is emitted on a fatal advertiser or browser condition.
	EventError EventType = "error"
)

// EventType identifies discovery updates delivered to the embedding
// application.
type EventType string

// Event is a single discovery update. Which fields are populated depends on
// the type: Peer for peer_added and peer_removed, Username for peer_removed
// and username_changed, Name for registered, Message for error.
type Event struct {
	Type     EventType
	Peer     Peer
	Name     string
	Username string
	Message  string
}

// Peer is a remote instance visible on the network. ServiceName is its
// unique identifier and is immutable; Hostname, Port and Address are
// populated once resolution completes.
type Peer struct {
	ServiceName string
	Username    string
	Hostname    string
	Port        int
	Address     string
}

// emitEvent delivers an event without ever blocking a component loop. A
// consumer that stops draining the channel loses updates rather than
// stalling discovery.
func emitEvent(events chan<- Event, event Event) {
	select {
	case events <- event:
	default:
	}
}
