// Package mqtt publishes alert events and segment status to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/cwbudde/lfnwatch/capture"
	"github.com/cwbudde/lfnwatch/config"
	"github.com/cwbudde/lfnwatch/internal/logging"
	"github.com/cwbudde/lfnwatch/measure/alert"
)

const (
	qos            = 1
	publishTimeout = 5 * time.Second
)

// AlertPayload is the JSON body of an alert message.
type AlertPayload struct {
	Band        string    `json:"band"`
	LevelDB     float64   `json:"level_db"`
	ThresholdDB float64   `json:"threshold_db"`
	FrequencyHz float64   `json:"frequency_hz"`
	Channel     int       `json:"channel"`
	Timestamp   time.Time `json:"timestamp"`
	Source      string    `json:"source"`
	BlockIndex  int       `json:"block_index"`
}

// SegmentPayload is the JSON body of a segment message.
type SegmentPayload struct {
	Index           int       `json:"index"`
	Path            string    `json:"path"`
	Status          string    `json:"status"`
	StartTime       time.Time `json:"start_time"`
	DurationSeconds float64   `json:"duration_seconds"`
	Error           string    `json:"error,omitempty"`
}

// publisher is the part of paho.Client the notifier uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Notifier implements pipeline.AlertSink and capture.SegmentSink.
//
// Alerts go to <topic>/<band>, segments to <topic>/segments, with band names
// in lower case.
type Notifier struct {
	client publisher
	topic  string
	logger logging.Logger
}

var _ capture.SegmentSink = (*Notifier)(nil)

// Connect opens a client for cfg and waits for the connection.
func Connect(cfg config.MQTT, logger logging.Logger) (*Notifier, error) {
	n := newNotifier(nil, cfg.Topic, logger)

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		n.logger.Warn("connection lost", logging.Fields{"error": err.Error()})
	})
	opts.SetOnConnectHandler(func(paho.Client) {
		n.logger.Info("connected", logging.Fields{"broker": cfg.Broker})
	})

	client := paho.NewClient(opts)
	if tok := client.Connect(); tok.Wait() && tok.Error() != nil {
		return nil, fmt.Errorf("mqtt: connect %s: %w", cfg.Broker, tok.Error())
	}
	n.client = client
	return n, nil
}

func newNotifier(client publisher, topic string, logger logging.Logger) *Notifier {
	return &Notifier{
		client: client,
		topic:  strings.TrimSuffix(topic, "/"),
		logger: logging.OrGlobal(logger).WithFields(logging.Fields{"component": "mqtt"}),
	}
}

// HandleAlert publishes e.
func (n *Notifier) HandleAlert(ctx context.Context, e alert.Event) error {
	band := e.Band.String()
	return n.publish(ctx, n.topic+"/"+strings.ToLower(band), AlertPayload{
		Band:        band,
		LevelDB:     e.LevelDB,
		ThresholdDB: e.ThresholdDB,
		FrequencyHz: e.FrequencyHz,
		Channel:     e.Channel,
		Timestamp:   e.Timestamp,
		Source:      e.Source,
		BlockIndex:  e.BlockIndex,
	})
}

// HandleSegment publishes segment status.
func (n *Notifier) HandleSegment(ctx context.Context, s capture.Segment) error {
	p := SegmentPayload{
		Index:           s.Index,
		Path:            s.Path,
		Status:          s.Status.String(),
		StartTime:       s.StartTime,
		DurationSeconds: s.Duration.Seconds(),
	}
	if s.Err != nil {
		p.Error = s.Err.Error()
	}
	return n.publish(ctx, n.topic+"/segments", p)
}

func (n *Notifier) publish(ctx context.Context, topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("mqtt: encode: %w", err)
	}
	tok := n.client.Publish(topic, qos, false, payload)

	timeout := publishTimeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(dl))
	}
	select {
	case <-tok.Done():
	case <-ctx.Done():
		return fmt.Errorf("mqtt: publish %s: %w", topic, ctx.Err())
	case <-time.After(timeout):
		return fmt.Errorf("mqtt: publish %s: timed out after %v", topic, timeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt: publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects after letting pending work finish.
func (n *Notifier) Close() {
	n.client.Disconnect(250)
}
