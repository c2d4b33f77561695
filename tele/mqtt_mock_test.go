package tele

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type mqttMock struct {
	sync.Mutex
	opt       *mqtt.ClientOptions
	pub       chan mockMsg
	connects  int
	connected bool
	pubToken  mockToken
}

func newMqttMock() *mqttMock {
	return &mqttMock{pub: make(chan mockMsg, 32)}
}

// install replaces client constructor, returns restore func
func (m *mqttMock) install() func() {
	prev := newMqttClient
	newMqttClient = func(opt *mqtt.ClientOptions) mqtt.Client {
		m.Lock()
		m.opt = opt
		m.Unlock()
		return m
	}
	return func() { newMqttClient = prev }
}

func (m *mqttMock) Disconnect(uint) {
	m.Lock()
	m.connected = false
	m.Unlock()
}

func (m *mqttMock) IsConnected() bool {
	m.Lock()
	defer m.Unlock()
	return m.connected
}
func (m *mqttMock) IsConnectionOpen() bool { return m.IsConnected() }

func (m *mqttMock) Connect() mqtt.Token {
	m.Lock()
	defer m.Unlock()
	m.connects++
	m.connected = true
	return mockToken{ok: true}
}

func (m *mqttMock) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	m.pub <- mockMsg{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)}
	m.Lock()
	defer m.Unlock()
	return m.pubToken
}

func (m *mqttMock) Subscribe(string, byte, mqtt.MessageHandler) mqtt.Token {
	panic("not implemented")
}
func (m *mqttMock) SubscribeMultiple(map[string]byte, mqtt.MessageHandler) mqtt.Token {
	panic("not implemented")
}
func (m *mqttMock) Unsubscribe(...string) mqtt.Token        { panic("not implemented") }
func (m *mqttMock) AddRoute(string, mqtt.MessageHandler)    { panic("not implemented") }
func (m *mqttMock) OptionsReader() mqtt.ClientOptionsReader { panic("not implemented") }

type mockToken struct {
	ok  bool
	err error
}

func (t mockToken) Wait() bool                     { return t.ok }
func (t mockToken) WaitTimeout(time.Duration) bool { return t.ok }
func (t mockToken) Error() error                   { return t.err }

type mockMsg struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}
