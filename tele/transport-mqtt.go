package tele

import (
	"context"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"github.com/temoto/lightlink/helpers"
	"github.com/temoto/lightlink/log2"
)

var ErrClosed = fmt.Errorf("tele closed")

// replaced in tests
var newMqttClient = mqtt.NewClient

type MqttPublisher struct {
	log            *log2.Log
	m              mqtt.Client
	mopt           *mqtt.ClientOptions
	stopCh         chan struct{}
	doneCh         chan struct{}
	networkTimeout time.Duration
	topicMotion    string
}

var _ Publisher = &MqttPublisher{}

// NewMqtt returns only configuration errors, connect is retried in background until Close.
func NewMqtt(c Config, log *log2.Log) (*MqttPublisher, error) {
	if c.MqttBroker == "" {
		return nil, errors.NotValidf("tele mqtt_broker empty")
	}
	mqttLog := log.Clone(log2.LDebug)
	mqttLog.SetPrefix("tele.mqtt ")
	mqtt.CRITICAL = mqttLog
	mqtt.ERROR = mqttLog
	mqtt.WARN = mqttLog
	if c.MqttLogDebug {
		mqtt.DEBUG = mqttLog
	}

	clientID := c.MqttClientID
	if clientID == "" {
		host, _ := os.Hostname()
		clientID = fmt.Sprintf("lightlink-%s-%d", host, os.Getpid())
	}
	prefix := c.TopicPrefix
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	networkTimeout := helpers.IntSecondDefault(c.NetworkTimeoutSec, DefaultNetworkTimeout)
	if networkTimeout < time.Second {
		networkTimeout = time.Second
	}

	p := &MqttPublisher{
		log:            log,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
		networkTimeout: networkTimeout,
		topicMotion:    fmt.Sprintf("%s/%s", prefix, topicMotion),
	}
	p.mopt = mqtt.NewClientOptions().
		AddBroker(c.MqttBroker).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetClientID(clientID).
		SetConnectTimeout(networkTimeout * 3).
		SetKeepAlive(networkTimeout * 6).
		SetMaxReconnectInterval(networkTimeout * 3).
		SetPingTimeout(networkTimeout).
		SetWriteTimeout(networkTimeout)
	if c.MqttUsername != "" {
		p.mopt.SetUsername(c.MqttUsername).SetPassword(c.MqttPassword)
	}
	p.m = newMqttClient(p.mopt)

	go p.online()
	return p, nil
}

func (p *MqttPublisher) Publish(ctx context.Context, e Event) error {
	select {
	case <-p.stopCh:
		return ErrClosed
	default:
	}
	b, err := e.Marshal()
	if err != nil {
		return err
	}
	t := p.m.Publish(p.topicMotion, 1, false, b)
	return p.tokenWait(ctx, t, "publish "+p.topicMotion)
}

func (p *MqttPublisher) Close() error {
	select {
	case <-p.stopCh:
		return nil
	default:
	}
	close(p.stopCh)
	<-p.doneCh
	p.m.Disconnect(uint(p.networkTimeout / time.Millisecond))
	return nil
}

func (p *MqttPublisher) online() {
	defer close(p.doneCh)
	for {
		p.log.Debugf("tele connect broker=%v", p.mopt.Servers)
		t := p.m.Connect()
		if p.tokenWait(context.Background(), t, "connect") == nil {
			return
		}
		select {
		case <-p.stopCh:
			return
		case <-time.After(time.Second):
		}
	}
}

func (p *MqttPublisher) tokenWait(ctx context.Context, t mqtt.Token, tag string) error {
	timeout := p.networkTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	if !t.WaitTimeout(timeout) {
		return errors.Errorf("tele %s timeout", tag)
	}
	return errors.Annotatef(t.Error(), "tele %s", tag)
}
