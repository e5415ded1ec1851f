package telemetry

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/matt-g-everett/frametx/config"
	"github.com/matt-g-everett/frametx/stream"
)

const queueSize = 64

// Delivery describes one frame handed to the consumer.
type Delivery struct {
	Timestamp     int64  `msgpack:"timestamp"`
	SendTimestamp int64  `msgpack:"send_timestamp"`
	WaitMillis    int64  `msgpack:"wait_ms"`
	Width         uint32 `msgpack:"width"`
	Height        uint32 `msgpack:"height"`
}

// MqttPublisher sends Delivery records to an MQTT topic from its own
// goroutine. Records that arrive while the queue is full are dropped.
type MqttPublisher struct {
	client  mqtt.Client
	topic   string
	records chan Delivery
	send    func(payload []byte) error
	logger  *logrus.Entry
}

// NewMqttPublisher creates a publisher for the configured broker. It does not
// connect until Start.
func NewMqttPublisher(cfg config.Mqtt) *MqttPublisher {
	p := &MqttPublisher{
		topic:   cfg.Topics.Telemetry,
		records: make(chan Delivery, queueSize),
		logger:  config.Logger("telemetry"),
	}

	options := mqtt.NewClientOptions().
		AddBroker(cfg.URL).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(5 * time.Second).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(mqtt.Client) {
			p.logger.WithField("broker", cfg.URL).Info("Connected")
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			p.logger.WithError(err).Warn("Connection lost")
		})
	p.client = mqtt.NewClient(options)
	p.send = p.publish

	return p
}

// Start connects to the broker and publishes queued records until ctx is done.
func (p *MqttPublisher) Start(ctx context.Context) error {
	if token := p.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect to broker: %w", token.Error())
	}
	go func() {
		p.run(ctx)
		p.client.Disconnect(250)
	}()
	return nil
}

// Delivered queues a record for w without blocking.
func (p *MqttPublisher) Delivered(w *stream.WireFrame, wait time.Duration) {
	d := Delivery{
		Timestamp:     w.Timestamp,
		SendTimestamp: w.SendTimestamp,
		WaitMillis:    wait.Milliseconds(),
		Width:         w.Width,
		Height:        w.Height,
	}
	select {
	case p.records <- d:
	default:
		p.logger.WithField("timestamp", d.Timestamp).Trace("Telemetry queue full, record dropped")
	}
}

func (p *MqttPublisher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-p.records:
			payload, err := msgpack.Marshal(&d)
			if err != nil {
				p.logger.WithError(err).Error("Failed to encode delivery")
				continue
			}
			if err := p.send(payload); err != nil {
				p.logger.WithError(err).Debug("Failed to publish delivery")
			}
		}
	}
}

func (p *MqttPublisher) publish(payload []byte) error {
	token := p.client.Publish(p.topic, 0, false, payload)
	token.Wait()
	return token.Error()
}
