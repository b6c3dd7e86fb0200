// Package transport owns the process-wide pub/sub connection: a Transport
// abstracts the underlying broker (MQTT, websocket hub, Kafka, in-memory)
// and the Manager layers connection lifecycle, status fan-out and
// topic-keyed message dispatch on top of it.
package transport

import "context"

// Status of the managed connection.
type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
)

func (s Status) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Message is one inbound payload from a subscribed topic.
type Message struct {
	Topic   string
	Payload []byte
}

// Transport is the minimal surface the Manager drives. Implementations
// deliver inbound messages on Messages() and link up/down transitions on
// Events(); both channels close when the transport is closed.
//
// Reconnection is the transport's job: after a drop it keeps retrying on a
// fixed interval and emits Connected again once the link is back. Broker
// state (such as subscriptions) may be lost across a drop; the Manager
// resubscribes on every Connected event.
type Transport interface {
	Connect(ctx context.Context) error
	Publish(topic string, payload []byte) error
	Subscribe(topic string) error
	Unsubscribe(topic string) error
	Messages() <-chan Message
	Events() <-chan Status
	Close() error
}
