// Package tele publishes handled link events to telemetry broker.
// Publishing is best effort, failures never change protocol responses.
package tele

import (
	"context"
	"encoding/json"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/lightlink/log2"
)

const (
	DefaultTopicPrefix    = "lightlink"
	DefaultNetworkTimeout = 5 * time.Second
	topicMotion           = "motion"
)

type Config struct {
	MqttBroker        string `hcl:"mqtt_broker"`
	MqttClientID      string `hcl:"mqtt_client_id"`
	MqttUsername      string `hcl:"mqtt_username"`
	MqttPassword      string `hcl:"mqtt_password"`
	MqttLogDebug      bool   `hcl:"mqtt_log_debug"`
	TopicPrefix       string `hcl:"topic_prefix"`
	NetworkTimeoutSec int    `hcl:"network_timeout_sec"`
}

func (c *Config) Enabled() bool { return c.MqttBroker != "" }

// Event is one handled MOTION or DATA message.
type Event struct {
	Type      string    `json:"type"`
	Addr      string    `json:"addr"`
	NumBlinks int       `json:"num_blinks"`
	Duration  float64   `json:"duration"`
	Time      time.Time `json:"time"`
}

func (e *Event) Marshal() ([]byte, error) {
	b, err := json.Marshal(e)
	return b, errors.Annotate(err, "tele event marshal")
}

type Publisher interface {
	Publish(context.Context, Event) error
	Close() error
}

type Noop struct{}

var _ Publisher = Noop{} // compile-time interface test

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// New returns MQTT publisher when broker is configured, Noop otherwise.
func New(c Config, log *log2.Log) (Publisher, error) {
	if !c.Enabled() {
		log.Debugf("tele disabled")
		return Noop{}, nil
	}
	return NewMqtt(c, log)
}
