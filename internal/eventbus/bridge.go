package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-hub/internal/router"
)

// DefaultQueueSize is the event buffer used when New is given zero.
const DefaultQueueSize = 256

// MQTTClient is the subset of *mqtt.Client the bridge uses.
type MQTTClient interface {
	Topics() mqtt.Topics
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// NATSClient is the subset of *natsbus.Client the bridge uses.
type NATSClient interface {
	Subject(parts ...string) string
	PublishJSON(subject string, v any) error
}

// Commander executes device commands. *router.Router satisfies it.
type Commander interface {
	Command(ctx context.Context, id, action, params string) (router.Result, error)
}

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Bridge connects the registry to the message brokers.
type Bridge struct {
	mqtt      MQTTClient
	qos       byte
	nats      NATSClient
	commander Commander
	logger    Logger

	events  chan device.Event
	dropped int
	dropMu  sync.Mutex

	now func() time.Time
}

// New creates a bridge with a queue of queueSize events.
func New(queueSize int) *Bridge {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Bridge{
		logger: noopLogger{},
		events: make(chan device.Event, queueSize),
		now:    time.Now,
	}
}

// SetMQTT enables MQTT publishing at the given QoS.
func (b *Bridge) SetMQTT(c MQTTClient, qos byte) {
	b.mqtt = c
	b.qos = qos
}

// SetNATS enables NATS publishing.
func (b *Bridge) SetNATS(c NATSClient) {
	b.nats = c
}

// SetCommander enables the MQTT command subscription.
func (b *Bridge) SetCommander(c Commander) {
	b.commander = c
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.logger = logger
}

// Observe queues a registry event. It never blocks; when the queue is
// full the event is dropped and counted.
func (b *Bridge) Observe(e device.Event) {
	select {
	case b.events <- e:
	default:
		b.dropMu.Lock()
		b.dropped++
		b.dropMu.Unlock()
		b.logger.Warn("event queue full, dropping event", "event", e.Kind, "device_id", e.Record.ID)
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (b *Bridge) Dropped() int {
	b.dropMu.Lock()
	defer b.dropMu.Unlock()
	return b.dropped
}

// Run subscribes to device commands (when MQTT and a commander are set)
// and publishes queued events until ctx is cancelled. Events still queued
// at shutdown are flushed.
func (b *Bridge) Run(ctx context.Context) error {
	if b.mqtt != nil && b.commander != nil {
		if err := b.SubscribeCommands(ctx); err != nil {
			return err
		}
	}

	for {
		select {
		case e := <-b.events:
			b.Publish(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-b.events:
					b.Publish(e)
				default:
					return nil
				}
			}
		}
	}
}

// Publish sends one event to every configured broker. Failures are logged.
func (b *Bridge) Publish(e device.Event) {
	msg := NewMessage(e, b.now())

	if b.mqtt != nil {
		if err := b.publishMQTT(e, msg); err != nil {
			b.logger.Warn("mqtt event publish failed", "event", e.Kind, "device_id", msg.DeviceID, "error", err)
		}
	}
	if b.nats != nil {
		if err := b.nats.PublishJSON(b.nats.Subject(string(e.Kind)), msg); err != nil {
			b.logger.Warn("nats event publish failed", "event", e.Kind, "device_id", msg.DeviceID, "error", err)
		}
	}
}

func (b *Bridge) publishMQTT(e device.Event, msg Message) error {
	topics := b.mqtt.Topics()

	switch e.Kind {
	case device.EventCreated, device.EventUpdated:
		payload, err := json.Marshal(e.Record)
		if err != nil {
			return fmt.Errorf("encoding record: %w", err)
		}
		return b.mqtt.Publish(topics.DeviceState(e.Record.ID), payload, b.qos, true)

	case device.EventRemoved:
		payload, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encoding removal: %w", err)
		}
		if err := b.mqtt.Publish(topics.DeviceRemoved(e.Record.ID), payload, b.qos, false); err != nil {
			return err
		}
		// An empty retained message deletes the broker's retained state.
		return b.mqtt.Publish(topics.DeviceState(e.Record.ID), nil, b.qos, true)

	case device.EventCleared:
		payload, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encoding clear: %w", err)
		}
		var errs []error
		for _, rec := range e.Removed {
			if err := b.mqtt.Publish(topics.DeviceState(rec.ID), nil, b.qos, true); err != nil {
				errs = append(errs, fmt.Errorf("clearing %s: %w", rec.ID, err))
			}
		}
		if err := b.mqtt.Publish(topics.RegistryEvents(), payload, b.qos, false); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	}
	return nil
}

// SubscribeCommands subscribes to the MQTT command topics. Commands run
// under ctx.
func (b *Bridge) SubscribeCommands(ctx context.Context) error {
	if b.mqtt == nil || b.commander == nil {
		return ErrNoCommandPath
	}
	topic := b.mqtt.Topics().AllCommands()
	if err := b.mqtt.Subscribe(topic, b.qos, func(topic string, payload []byte) error {
		return b.HandleCommand(ctx, topic, payload)
	}); err != nil {
		return fmt.Errorf("subscribing %s: %w", topic, err)
	}
	b.logger.Info("subscribed to device commands", "topic", topic)
	return nil
}

// HandleCommand executes one MQTT command message and publishes the
// outcome on the device's result topic. Topics outside the command tree
// are ignored.
//
// Returns:
//   - error: Only when the result cannot be published; rejected commands
//     are reported on the result topic instead
func (b *Bridge) HandleCommand(ctx context.Context, topic string, payload []byte) error {
	topics := b.mqtt.Topics()
	id, ok := topics.ParseCommand(topic)
	if !ok {
		return nil
	}

	var res router.Result
	req, err := router.DecodeCommandRequest(payload)
	if err != nil {
		b.logger.Debug("mqtt command rejected", "device_id", id, "error", err)
		res = router.Result{Message: "Invalid command: " + err.Error()}
	} else {
		params, _ := req.ParamsJSON()
		res, err = b.commander.Command(ctx, id, req.Action, params)
		if err != nil {
			b.logger.Debug("mqtt command failed", "device_id", id, "action", req.Action, "error", err)
		}
	}

	out, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encoding command result: %w", err)
	}
	return b.mqtt.Publish(topics.CommandResult(id), out, b.qos, false)
}
