// Package mqtt bridges bin hardware publishing over MQTT into the engine.
// Payloads are the same JSON documents the HTTP hardware routes accept.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/ecobins/binwatch/config"
	"github.com/ecobins/binwatch/engine"
	"github.com/ecobins/binwatch/metrics"
)

const (
	connectTimeout = 30 * time.Second
	subscribeQoS   = 1
)

// Bridge subscribes to the waste-levels and waste-logs topics and feeds the
// engine. Delivery is at-least-once; the store's monotonic guard and the
// append-only log make duplicate deliveries harmless.
type Bridge struct {
	cfg    config.Config
	eng    *engine.Engine
	log    *slog.Logger
	client paho.Client
}

// NewBridge constructs a bridge; Start connects it.
func NewBridge(cfg config.Config, eng *engine.Engine, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{cfg: cfg, eng: eng, log: log}
}

// Start connects to the broker and subscribes. Subscriptions are installed
// from the OnConnect handler so they survive automatic reconnects.
func (b *Bridge) Start(ctx context.Context) error {
	opts := paho.NewClientOptions()
	opts.AddBroker(b.cfg.MQTTBroker)
	opts.SetClientID(b.cfg.MQTTClientID)
	opts.SetUsername(b.cfg.MQTTUsername)
	opts.SetPassword(b.cfg.MQTTPassword)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOnConnectHandler(b.onConnect)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		b.log.Warn("mqtt connection lost", "error", err)
	})

	b.client = paho.NewClient(opts)

	token := b.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt connect timeout to %s", b.cfg.MQTTBroker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	go func() {
		<-ctx.Done()
		b.Close()
	}()
	return nil
}

// Close disconnects from the broker.
func (b *Bridge) Close() {
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(250)
	}
}

func (b *Bridge) onConnect(client paho.Client) {
	levelTopic := b.cfg.MQTTTopicPrefix + "/waste-levels"
	logTopic := b.cfg.MQTTTopicPrefix + "/waste-logs"

	client.Subscribe(levelTopic, subscribeQoS, func(_ paho.Client, msg paho.Message) {
		if err := b.handleLevelPayload(context.Background(), msg.Payload()); err != nil {
			b.log.Error("dropped waste-level message", "topic", msg.Topic(), "error", err)
		}
	})
	client.Subscribe(logTopic, subscribeQoS, func(_ paho.Client, msg paho.Message) {
		if err := b.handleLogPayload(context.Background(), msg.Payload()); err != nil {
			b.log.Error("dropped waste-log message", "topic", msg.Topic(), "error", err)
		}
	})

	b.log.Info("mqtt ingest subscribed", "topics", []string{levelTopic, logTopic})
}

type levelPayload struct {
	BinType             string   `json:"bin_type"`
	UltrasonicConnected *bool    `json:"ultrasonic_connected"`
	DistanceCM          *float64 `json:"distance_cm"`
	BinHeightCM         *float64 `json:"bin_height_cm"`
	MeasuredAt          string   `json:"measured_at"`
}

func (b *Bridge) handleLevelPayload(ctx context.Context, payload []byte) error {
	var p levelPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if p.UltrasonicConnected == nil {
		return fmt.Errorf("ultrasonic_connected is required")
	}

	m := engine.Measurement{
		Category:    engine.BinCategory(p.BinType),
		Connected:   *p.UltrasonicConnected,
		BinHeightCM: p.BinHeightCM,
	}
	if m.Connected {
		if p.DistanceCM == nil {
			return fmt.Errorf("distance_cm is required when the sensor is connected")
		}
		m.DistanceCM = *p.DistanceCM

		measuredAt, err := time.Parse(time.RFC3339, p.MeasuredAt)
		if err != nil {
			return fmt.Errorf("measured_at: %w", err)
		}
		m.MeasuredAt = measuredAt
	}

	result, err := b.eng.ReportMeasurement(ctx, m)
	if err != nil {
		return err
	}

	metrics.MeasurementsTotal.WithLabelValues(string(result.Category), result.Status).Inc()
	if result.Percentage != nil {
		metrics.FillLevel.WithLabelValues(string(result.Category)).Set(float64(*result.Percentage))
	}
	b.log.Debug("measurement ingested", "category", result.Category, "status", result.Status)
	return nil
}

type logPayload struct {
	BinType         string   `json:"bin_type"`
	Label           string   `json:"label"`
	ConfidenceScore *float64 `json:"confidence_score"`
	Count           *int64   `json:"count"`
	LoggedAt        string   `json:"logged_at"`
}

func (b *Bridge) handleLogPayload(ctx context.Context, payload []byte) error {
	var p logPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if p.ConfidenceScore == nil {
		return fmt.Errorf("confidence_score is required")
	}
	loggedAt, err := time.Parse(time.RFC3339, p.LoggedAt)
	if err != nil {
		return fmt.Errorf("logged_at: %w", err)
	}

	ev := engine.ClassificationEvent{
		Category:        engine.BinCategory(p.BinType),
		Label:           p.Label,
		ConfidenceScore: *p.ConfidenceScore,
		LoggedAt:        loggedAt,
	}
	if p.Count != nil {
		ev.Count = *p.Count
	}

	if err := b.eng.ReportClassification(ctx, ev); err != nil {
		return err
	}

	metrics.ClassificationsTotal.WithLabelValues(string(ev.Category)).Inc()
	b.log.Debug("classification ingested", "category", ev.Category, "label", ev.Label)
	return nil
}
