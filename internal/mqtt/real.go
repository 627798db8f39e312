package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// bufferCapacity bounds how many messages we hold while disconnected.
const bufferCapacity = 256

// RealPublisher publishes to an actual MQTT broker. While the broker is
// unreachable messages are queued and replayed on reconnect, so a flaky
// network does not lose charge-session history.
type RealPublisher struct {
	client paho.Client

	mu      sync.Mutex
	pending *ringBuffer
}

// NewRealPublisher creates a publisher connected to the given broker.
func NewRealPublisher(broker string) (*RealPublisher, error) {
	p := &RealPublisher{pending: newRingBuffer(bufferCapacity)}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("hydra-evse").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(p.onConnect)

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// onConnect replays anything queued while disconnected.
func (p *RealPublisher) onConnect(client paho.Client) {
	p.mu.Lock()
	queued := p.pending.drainAll()
	p.mu.Unlock()

	for _, msg := range queued {
		client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	}
}

func (p *RealPublisher) send(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnected() {
		p.mu.Lock()
		p.pending.push(queuedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Publish sends a charger event to the MQTT broker.
func (p *RealPublisher) Publish(event Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.send(Topic, 0, false, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events - we want delivery
	return p.send(TopicSystem, 1, event.Retained, payload)
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
