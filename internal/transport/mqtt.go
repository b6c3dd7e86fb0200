package transport

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTT adapts an MQTT broker connection (tcp:// or ws://) to the Transport
// interface. QoS 0 matches the protocol's best-effort delivery model.
// Reconnection is delegated to the paho client, which retries on a fixed
// interval.
type MQTT struct {
	cli    mqtt.Client
	msgs   chan Message
	events chan Status
}

// NewMQTT prepares a client for brokerURL. clientID gets a random suffix so
// several processes can share a prefix without evicting each other.
func NewMQTT(brokerURL, clientID string) *MQTT {
	t := &MQTT{
		msgs:   make(chan Message, 256),
		events: make(chan Status, 8),
	}
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(fmt.Sprintf("%s_%08x", clientID, rand.Uint32())).
		SetKeepAlive(60 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Second).
		SetMaxReconnectInterval(time.Second)
	opts.OnConnect = func(mqtt.Client) {
		select {
		case t.events <- Connected:
		default:
		}
	}
	opts.OnConnectionLost = func(_ mqtt.Client, _ error) {
		select {
		case t.events <- Disconnected:
		default:
		}
	}
	t.cli = mqtt.NewClient(opts)
	return t
}

// Connect starts the connection attempt. Completion is signalled through
// Events; with connect-retry enabled the client keeps trying until Close.
func (t *MQTT) Connect(ctx context.Context) error {
	tok := t.cli.Connect()
	go tok.Wait()
	return nil
}

func (t *MQTT) Publish(topic string, payload []byte) error {
	tok := t.cli.Publish(topic, 0, false, payload)
	if tok.WaitTimeout(2*time.Second) && tok.Error() != nil {
		return tok.Error()
	}
	return nil
}

func (t *MQTT) Subscribe(topic string) error {
	tok := t.cli.Subscribe(topic, 0, func(_ mqtt.Client, m mqtt.Message) {
		select {
		case t.msgs <- Message{Topic: m.Topic(), Payload: m.Payload()}:
		default:
			// slow consumer, drop
		}
	})
	if tok.WaitTimeout(2*time.Second) && tok.Error() != nil {
		return tok.Error()
	}
	return nil
}

func (t *MQTT) Unsubscribe(topic string) error {
	tok := t.cli.Unsubscribe(topic)
	if tok.WaitTimeout(2*time.Second) && tok.Error() != nil {
		return tok.Error()
	}
	return nil
}

func (t *MQTT) Messages() <-chan Message { return t.msgs }
func (t *MQTT) Events() <-chan Status    { return t.events }

func (t *MQTT) Close() error {
	t.cli.Disconnect(250)
	return nil
}
