// Package telemetry publishes capture session statistics to an MQTT broker.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/e7canasta/orion-care-sensor/modules/uvc-capture/internal/config"
)

// ErrNotConnected is returned by Publish before Connect succeeds or after Disconnect.
var ErrNotConnected = errors.New("mqtt not connected")

// Snapshot is the JSON payload published on the stats topic.
type Snapshot struct {
	InstanceID     string    `json:"instance_id"`
	Timestamp      time.Time `json:"timestamp"`
	Transport      string    `json:"transport"`
	Device         string    `json:"device"`
	State          string    `json:"state"`
	Format         string    `json:"format"`
	Width          int       `json:"width"`
	Height         int       `json:"height"`
	FPSTarget      int       `json:"fps_target"`
	FPSReal        float64   `json:"fps_real"`
	FramesCaptured uint64    `json:"frames_captured"`
	FramesPolled   uint64    `json:"frames_polled"`
	FramesDropped  uint64    `json:"frames_dropped"`
	FramesCleared  uint64    `json:"frames_cleared"`
	QueueDepth     int       `json:"queue_depth"`
	LatencyMS      int64     `json:"latency_ms"`
	FramesSaved    uint64    `json:"frames_saved,omitempty"`
	ErrorsDevice   uint64    `json:"errors_device"`
	ErrorsFormat   uint64    `json:"errors_format"`
	ErrorsResource uint64    `json:"errors_resource"`
	ErrorsUnknown  uint64    `json:"errors_unknown"`
}

// Emitter publishes Snapshots to MQTT
type Emitter struct {
	cfg        config.MQTTConfig
	instanceID string
	client     mqtt.Client

	// publish is set by Connect; tests replace it to run without a broker
	publish func(topic string, qos byte, payload []byte) error

	mu        sync.RWMutex
	published uint64
	errors    uint64
	connected bool
}

// Stats contains emitter statistics
type Stats struct {
	Connected bool
	Published uint64
	Errors    uint64
}

// NewEmitter creates a new MQTT emitter
func NewEmitter(instanceID string, cfg config.MQTTConfig) *Emitter {
	return &Emitter{
		cfg:        cfg,
		instanceID: instanceID,
	}
}

// Connect establishes connection to MQTT broker
func (e *Emitter) Connect(ctx context.Context) error {
	if e.cfg.Broker == "" {
		return fmt.Errorf("mqtt broker not configured")
	}

	broker := e.cfg.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.setConnected(true)
		slog.Info("telemetry: mqtt connection established",
			"broker", broker,
			"client_id", e.cfg.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.setConnected(false)
		slog.Warn("telemetry: mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", broker)
	}

	e.client = mqtt.NewClient(opts)

	slog.Info("telemetry: connecting to mqtt broker", "broker", broker)

	token := e.client.Connect()
	select {
	case <-token.Done():
	case <-time.After(5 * time.Second):
		return fmt.Errorf("mqtt connection timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.publish = func(topic string, qos byte, payload []byte) error {
		t := e.client.Publish(topic, qos, false, payload)
		if !t.WaitTimeout(2 * time.Second) {
			return fmt.Errorf("publish timeout")
		}
		return t.Error()
	}
	e.setConnected(true)

	return nil
}

// Publish sends one snapshot to the configured stats topic
func (e *Emitter) Publish(s Snapshot) error {
	if !e.isConnected() || e.publish == nil {
		e.addError()
		return ErrNotConnected
	}

	if s.InstanceID == "" {
		s.InstanceID = e.instanceID
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}

	payload, err := json.Marshal(s)
	if err != nil {
		e.addError()
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	if err := e.publish(e.cfg.Topic, e.cfg.QoS, payload); err != nil {
		e.addError()
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published++
	e.mu.Unlock()

	slog.Debug("telemetry: stats published",
		"topic", e.cfg.Topic,
		"qos", e.cfg.QoS,
		"size", len(payload),
	)
	return nil
}

// Run publishes source() every interval until ctx is cancelled.
// Publish failures are logged and do not stop the loop.
func (e *Emitter) Run(ctx context.Context, interval time.Duration, source func() Snapshot) {
	if interval <= 0 {
		interval = time.Duration(e.cfg.IntervalS) * time.Second
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Publish(source()); err != nil {
				slog.Warn("telemetry: publish failed", "error", err)
			}
		}
	}
}

// Disconnect closes the MQTT connection
func (e *Emitter) Disconnect() {
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
		slog.Info("telemetry: mqtt disconnected")
	}
	e.setConnected(false)
}

// Stats returns emitter statistics
func (e *Emitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{
		Connected: e.connected,
		Published: e.published,
		Errors:    e.errors,
	}
}

func (e *Emitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *Emitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *Emitter) addError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
