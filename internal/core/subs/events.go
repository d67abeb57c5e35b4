package subs

import "github.com/edirooss/selva-engine/internal/core/nodeid"

// Event is the payload handed to the publish callback when a marker
// fires. It carries enough to let the host serialize a client-visible
// notification without the core knowing anything about wire formats.
type Event struct {
	SubscriptionID string // hex form, for host-side serialization
	Node           nodeid.ID
	Flag           Flag
	Field          string // set only when Flag == FlagFields
}

// Publisher hands an Event onward to the host's async task channel. The
// core treats this call as non-blocking best-effort: a Publisher that
// drops under back-pressure (see internal/host/events) must do so
// silently from the core's perspective — Fire* never fails because of it.
type Publisher interface {
	Publish(Event)
}

// PublisherFunc adapts a plain function to Publisher.
type PublisherFunc func(Event)

func (f PublisherFunc) Publish(e Event) { f(e) }

type discardPublisher struct{}

func (discardPublisher) Publish(Event) {}
