package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/load-scale/internal/scale"
)

const publishTimeout = 5 * time.Second

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	BufferSize int // messages held while disconnected
}

type sendFunc func(topic string, qos byte, retained bool, payload []byte) error

// RealPublisher publishes to an MQTT broker. Messages published while the
// broker is unreachable are held in a ring buffer and replayed on connect.
type RealPublisher struct {
	client paho.Client
	send   sendFunc
	log    *zap.Logger

	mu            sync.Mutex
	connected     bool
	everConnected bool
	buffer        *ringBuffer
	now           func() time.Time
}

// NewRealPublisher starts connecting to the broker in the background and
// returns immediately. The broker holds a retained OFFLINE will on
// TopicSystem for unclean disconnects.
func NewRealPublisher(opts Options, log *zap.Logger) *RealPublisher {
	p := newPublisher(opts.BufferSize, log, nil)

	will, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: EventOffline})

	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(func(paho.Client) { p.handleConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) { p.handleConnectionLost(err) })

	p.client = paho.NewClient(co)
	p.send = p.clientSend
	p.client.Connect()
	log.Info("connecting to mqtt broker", zap.String("broker", opts.Broker))
	return p
}

func newPublisher(bufferSize int, log *zap.Logger, send sendFunc) *RealPublisher {
	return &RealPublisher{
		send:   send,
		log:    log,
		buffer: newRingBuffer(bufferSize),
		now:    time.Now,
	}
}

func (p *RealPublisher) clientSend(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("publish timeout")
	}
	return token.Error()
}

func (p *RealPublisher) handleConnect() {
	p.mu.Lock()
	reconnect := p.everConnected
	p.everConnected = true
	p.connected = true
	pending := p.buffer.drainAll()
	p.mu.Unlock()

	if reconnect {
		p.log.Info("mqtt reconnected", zap.Int("buffered", len(pending)))
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: EventReconnected})
		if err := p.send(TopicSystem, 1, false, payload); err != nil {
			p.log.Warn("failed to publish reconnect event", zap.Error(err))
		}
	} else {
		p.log.Info("mqtt connected", zap.Int("buffered", len(pending)))
	}

	for _, m := range pending {
		if err := p.send(m.topic, m.qos, m.retained, m.payload); err != nil {
			p.log.Warn("failed to replay buffered message", zap.String("topic", m.topic), zap.Error(err))
		}
	}
}

func (p *RealPublisher) handleConnectionLost(err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	p.log.Warn("mqtt connection lost", zap.Error(err))
}

// publish sends now when connected, otherwise buffers.
func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	p.mu.Lock()
	if !p.connected {
		first := p.buffer.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		if first {
			p.log.Warn("mqtt buffer full, dropping oldest", zap.Int("capacity", p.buffer.capacity))
		}
		return nil
	}
	p.mu.Unlock()
	return p.send(topic, qos, retained, payload)
}

// Publish sends a scale event at QoS 0, not retained.
func (p *RealPublisher) Publish(event scale.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	if err := p.publish(Topic, 0, false, payload); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// PublishSystem sends a system event at QoS 1.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	if err := p.publish(TopicSystem, 1, event.Retained, payload); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Buffered returns the number of messages awaiting a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	if p.client != nil {
		p.client.Disconnect(1000)
	}
	return nil
}
