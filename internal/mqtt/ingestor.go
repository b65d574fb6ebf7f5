package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"drainsentry-backend/internal/config"
	"drainsentry-backend/internal/ingest"
	"drainsentry-backend/internal/logging"
	"drainsentry-backend/internal/models"
)

// Ingestor bridges readings published over MQTT into the ingestion pipeline.
// Topic layout: drainsentry/{deviceID}/readings with a JSON payload; the
// topic segment wins over any device_id in the body.
type Ingestor struct {
	cfg    config.Config
	client mqtt.Client
	ingest *ingest.Service
	logger *logging.Logger
	ctx    context.Context
}

func New(cfg config.Config, svc *ingest.Service, logger *logging.Logger) *Ingestor {
	return &Ingestor{cfg: cfg, ingest: svc, logger: logger}
}

// Start connects to the broker and subscribes. The subscription is renewed
// on every reconnect via OnConnect.
func (i *Ingestor) Start(ctx context.Context) error {
	i.ctx = ctx

	opts := mqtt.NewClientOptions().
		AddBroker(i.cfg.MQTT.Broker).
		SetClientID(i.cfg.MQTT.ClientID).
		SetOrderMatters(false).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCleanSession(false)

	if i.cfg.MQTT.Username != "" {
		opts.SetUsername(i.cfg.MQTT.Username)
		opts.SetPassword(i.cfg.MQTT.Password)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		i.logger.Errorf("MQTT connection lost: %v", err)
	}
	opts.OnConnect = func(c mqtt.Client) {
		topic := i.cfg.MQTT.Topic
		i.logger.Infof("MQTT connected, subscribing to %s", topic)
		if token := c.Subscribe(topic, 1, i.onMessage); token.Wait() && token.Error() != nil {
			i.logger.Errorf("Failed to subscribe to %s: %v", topic, token.Error())
		}
	}

	i.client = mqtt.NewClient(opts)
	if tk := i.client.Connect(); tk.Wait() && tk.Error() != nil {
		return tk.Error()
	}
	return nil
}

func (i *Ingestor) Stop() {
	if i.client != nil && i.client.IsConnected() {
		i.client.Disconnect(500)
	}
}

func (i *Ingestor) onMessage(_ mqtt.Client, m mqtt.Message) {
	parts := strings.Split(m.Topic(), "/")
	if len(parts) < 3 {
		i.logger.Errorf("Invalid topic %s, expected drainsentry/{deviceID}/readings", m.Topic())
		return
	}
	deviceID := parts[1]

	var reading models.SensorReading
	if err := json.Unmarshal(m.Payload(), &reading); err != nil {
		i.logger.Errorf("Unmarshal payload on %s failed: %v", m.Topic(), err)
		return
	}
	reading.DeviceID = deviceID

	if err := i.ingest.Ingest(i.ctx, reading); err != nil {
		i.logger.Errorf("Ingest failed for device %s: %v", deviceID, err)
		return
	}
	i.logger.Infof("Processed MQTT reading for device %s", deviceID)
}
