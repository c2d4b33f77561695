package tele

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/lightlink/log2"
)

// mqtt.CRITICAL/ERROR/WARN are package globals, tests here are not parallel.

func TestNewDisabled(t *testing.T) {
	p, err := New(Config{}, log2.NewTest(t, log2.LDebug))
	require.NoError(t, err)
	assert.Equal(t, Noop{}, p)
	assert.NoError(t, p.Publish(context.Background(), Event{Type: "MOTION"}))
	assert.NoError(t, p.Close())
}

func TestMqttPublish(t *testing.T) {
	m := newMqttMock()
	m.pubToken = mockToken{ok: true}
	defer m.install()()

	p, err := New(Config{MqttBroker: "tcp://127.0.0.1:1883", MqttClientID: "test", TopicPrefix: "lab"}, log2.NewTest(t, log2.LDebug))
	require.NoError(t, err)
	assert.Eventually(t, m.IsConnected, time.Second, time.Millisecond)
	assert.Equal(t, "test", m.opt.ClientID)

	at := time.Date(2024, 11, 9, 13, 14, 15, 0, time.UTC)
	require.NoError(t, p.Publish(context.Background(), Event{Type: "MOTION", Addr: "10.0.0.2:4000", NumBlinks: 5, Duration: 0.5, Time: at}))
	msg := <-m.pub
	assert.Equal(t, "lab/motion", msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.False(t, msg.retained)
	var e map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.payload, &e))
	assert.Equal(t, "MOTION", e["type"])
	assert.Equal(t, "10.0.0.2:4000", e["addr"])
	assert.Equal(t, float64(5), e["num_blinks"])
	assert.Equal(t, 0.5, e["duration"])
	assert.Equal(t, "2024-11-09T13:14:15Z", e["time"])

	require.NoError(t, p.Close())
	assert.False(t, m.IsConnected())
	assert.Equal(t, ErrClosed, p.Publish(context.Background(), Event{}))
	assert.NoError(t, p.Close())
}

func TestMqttPublishError(t *testing.T) {
	m := newMqttMock()
	m.pubToken = mockToken{ok: true, err: fmt.Errorf("not connected")}
	defer m.install()()

	p, err := NewMqtt(Config{MqttBroker: "tcp://127.0.0.1:1883"}, nil)
	require.NoError(t, err)
	defer p.Close()
	err = p.Publish(context.Background(), Event{Type: "DATA"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
	<-m.pub

	m.Lock()
	m.pubToken = mockToken{ok: false}
	m.Unlock()
	err = p.Publish(context.Background(), Event{Type: "DATA"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestNewMqttInvalid(t *testing.T) {
	_, err := NewMqtt(Config{}, nil)
	assert.True(t, errors.IsNotValid(errors.Cause(err)))
}
