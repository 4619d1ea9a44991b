// Package notify tells the dataset consumers that the inference table was replaced.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Event struct {
	RunID       string    `json:"run_id"`
	Table       string    `json:"table"`
	Rows        int       `json:"rows"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

type Notifier interface {
	Refreshed(ctx context.Context, e Event) error
}

// Nop is used when no broker is configured.
type Nop struct{}

func (Nop) Refreshed(context.Context, Event) error { return nil }

type Publisher struct {
	client  mqtt.Client
	topic   string
	logger  *slog.Logger
	timeout time.Duration
}

type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
}

func New(logger *slog.Logger, o Options) *Publisher {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetClientID(o.ClientID)
	opts.SetUsername(o.Username)
	opts.SetPassword(o.Password)
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(client mqtt.Client) {
		logger.Info("MQTT connected", slog.String("broker", o.Broker))
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", slog.Any("error", err))
	}

	mqttLogger := logger.With("module", "mqtt")
	mqtt.CRITICAL = newMqttLogger(mqttLogger, slog.LevelError)
	mqtt.ERROR = newMqttLogger(mqttLogger, slog.LevelError)
	mqtt.WARN = newMqttLogger(mqttLogger, slog.LevelWarn)

	return newPublisher(logger, mqtt.NewClient(opts), o.Topic)
}

func newPublisher(logger *slog.Logger, client mqtt.Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic, logger: logger, timeout: 10 * time.Second}
}

func (p *Publisher) Connect() error {
	p.logger.Debug("connecting MQTT client")
	if token := p.client.Connect(); token.WaitTimeout(p.timeout) && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return nil
}

func (p *Publisher) Disconnect() {
	p.client.Disconnect(250)
}

// Refreshed publishes e as a retained message, so late subscribers see the last refresh.
func (p *Publisher) Refreshed(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding refresh event: %w", err)
	}

	token := p.client.Publish(p.topic, 1, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.timeout):
		return fmt.Errorf("publishing to %s: timed out after %s", p.topic, p.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", p.topic, err)
	}

	p.logger.Debug("refresh published", slog.String("topic", p.topic), slog.String("run_id", e.RunID))
	return nil
}
