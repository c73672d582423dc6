package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Veraticus/dosewatch/internal/config"
	"github.com/Veraticus/dosewatch/internal/service"
)

// ErrPublishTimeout is returned when the broker does not acknowledge in time.
var ErrPublishTimeout = errors.New("timed out waiting for broker")

const publishTimeout = 5 * time.Second

// publisher is the part of mqtt.Client the notifier uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// message is the JSON payload published for each notification.
type message struct {
	SentAt time.Time `json:"sent_at"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
}

// MQTT publishes notifications to a broker topic.
type MQTT struct {
	client publisher
	clock  service.Clock
	close  func()
	topic  string
}

// DialMQTT connects to the configured broker.
func DialMQTT(cfg config.MQTTConfig, clock service.Clock) (*MQTT, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		slog.Debug("MQTT connection established", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("MQTT connection lost", "broker", cfg.Broker, "error", err)
	})
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(publishTimeout)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	slog.Info("Connected to MQTT broker", "broker", cfg.Broker, "topic", cfg.Topic)

	n := newMQTT(client, cfg.Topic, clock)
	n.close = func() { client.Disconnect(250) }
	return n, nil
}

func newMQTT(client publisher, topic string, clock service.Clock) *MQTT {
	return &MQTT{client: client, topic: topic, clock: clock}
}

// Notify publishes one message at QoS 1.
func (m *MQTT) Notify(ctx context.Context, title, body string) error {
	payload, err := json.Marshal(message{Title: title, Body: body, SentAt: m.clock.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	token := m.client.Publish(m.topic, 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return ErrPublishTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	if m.close != nil {
		m.close()
		slog.Debug("MQTT client disconnected")
	}
}
