package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/pigenny/pigenny/internal/inverter"
)

const publishTimeout = 5 * time.Second

// RealPublisher publishes over a paho client with automatic reconnect.
// Messages produced while the broker is unreachable are held in a ring
// buffer and replayed on reconnect, so a broker restart does not punch
// holes in the telemetry history.
type RealPublisher struct {
	client paho.Client

	mu     sync.Mutex
	buffer *ringBuffer

	logf func(format string, v ...interface{})
}

// Connect dials the broker and returns a publisher. The connection is
// retried in the background; Connect itself only fails on a malformed
// broker URL or an immediate refusal.
func Connect(broker, clientID string) (*RealPublisher, error) {
	p := &RealPublisher{
		buffer: newRingBuffer(),
		logf:   log.Printf,
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(10 * time.Second).
		SetOnConnectHandler(func(paho.Client) {
			p.logf("mqtt connected to %s", broker)
			p.replay()
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.logf("mqtt connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	tok := p.client.Connect()
	if tok.WaitTimeout(publishTimeout) && tok.Error() != nil {
		return nil, fmt.Errorf("connect %s: %w", broker, tok.Error())
	}
	return p, nil
}

// PublishTelemetry publishes at QoS 0. A gap in telemetry is cheap, so
// delivery is best effort once connected.
func (p *RealPublisher) PublishTelemetry(tel inverter.Telemetry, at time.Time) error {
	payload, err := FormatTelemetry(tel, at)
	if err != nil {
		return err
	}
	return p.publish(TopicTelemetry, 0, payload)
}

// PublishEvent publishes at QoS 1. Transitions are rare and each one
// matters.
func (p *RealPublisher) PublishEvent(ev Event) error {
	payload, err := FormatEvent(ev)
	if err != nil {
		return err
	}
	return p.publish(TopicEvents, 1, payload)
}

func (p *RealPublisher) publish(topic string, qos byte, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buffer.push(bufferedMsg{topic: topic, qos: qos, payload: payload})
		n := p.buffer.len()
		p.mu.Unlock()
		p.logf("mqtt offline, buffered message for %s (%d queued)", topic, n)
		return nil
	}

	tok := p.client.Publish(topic, qos, false, payload)
	if !tok.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// replay flushes the offline buffer after a reconnect.
func (p *RealPublisher) replay() {
	p.mu.Lock()
	msgs := p.buffer.drainAll()
	p.mu.Unlock()
	if len(msgs) == 0 {
		return
	}
	p.logf("replaying %d buffered messages", len(msgs))
	for _, m := range msgs {
		tok := p.client.Publish(m.topic, m.qos, false, m.payload)
		tok.WaitTimeout(publishTimeout)
	}
}

// IsConnected reports broker reachability, for the status page.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
