// Package events publishes picture events to an MQTT broker.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Config contains MQTT connection settings
type Config struct {
	Broker   string // host:port
	ClientID string
	Topic    string // picture events are published to <Topic>/pictures
	QoS      byte
}

// Publisher sends an encoded event to a topic suffix
type Publisher interface {
	Publish(ctx context.Context, subtopic string, payload []byte) error
}

// MQTTEmitter publishes events to an MQTT broker
type MQTTEmitter struct {
	cfg    Config
	client mqtt.Client

	mu        sync.RWMutex
	published map[string]uint64 // count per topic
	errors    uint64
	connected bool
}

var _ Publisher = (*MQTTEmitter)(nil)

// NewMQTTEmitter creates a new MQTT emitter. Connect must be called before
// Publish succeeds.
func NewMQTTEmitter(cfg Config) (*MQTTEmitter, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("events: broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("events: topic is required")
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("events: invalid QoS %d (must be 0-2)", cfg.QoS)
	}
	return &MQTTEmitter{
		cfg:       cfg,
		published: make(map[string]uint64),
	}, nil
}

// Connect establishes connection to the MQTT broker
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.setConnected(true)
		slog.Info("events: mqtt connection established",
			"broker", e.cfg.Broker,
			"client_id", e.cfg.ClientID,
		)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.setConnected(false)
		slog.Warn("events: mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", e.cfg.Broker,
		)
	}

	e.client = mqtt.NewClient(opts)

	slog.Info("events: connecting to mqtt broker", "broker", e.cfg.Broker)

	token := e.client.Connect()
	select {
	case <-token.Done():
	case <-time.After(5 * time.Second):
		return fmt.Errorf("events: mqtt connection timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("events: mqtt connection failed: %w", err)
	}

	e.setConnected(true)
	return nil
}

// Publish publishes payload to <Topic>/<subtopic>
func (e *MQTTEmitter) Publish(ctx context.Context, subtopic string, payload []byte) error {
	if !e.isConnected() {
		e.countError()
		return fmt.Errorf("events: mqtt not connected")
	}

	topic := e.cfg.Topic + "/" + subtopic

	token := e.client.Publish(topic, e.cfg.QoS, false, payload)
	select {
	case <-token.Done():
	case <-time.After(2 * time.Second):
		e.countError()
		return fmt.Errorf("events: publish timeout")
	case <-ctx.Done():
		e.countError()
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("events: publish failed: %w", err)
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()

	slog.Debug("events: published", "topic", topic, "qos", e.cfg.QoS, "size", len(payload))
	return nil
}

// Disconnect closes the MQTT connection
func (e *MQTTEmitter) Disconnect() {
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250) // 250ms grace period
		slog.Info("events: mqtt disconnected")
	}
	e.setConnected(false)
}

// Stats contains emitter statistics
type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
}

// Stats returns emitter statistics
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}
	return Stats{
		Connected: e.connected,
		Published: published,
		Errors:    e.errors,
	}
}

func (e *MQTTEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
