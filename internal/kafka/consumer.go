package kafka

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/segmentio/kafka-go"

	"drainsentry-backend/internal/ingest"
	"drainsentry-backend/internal/logging"
	"drainsentry-backend/internal/models"
)

// Consumer bridges a readings topic into the ingestion pipeline. Sensors
// that report through a broker instead of HTTP land here.
type Consumer struct {
	reader *kafka.Reader
	ingest *ingest.Service
	logger *logging.Logger
}

func NewConsumer(brokers []string, topic, groupID string, svc *ingest.Service, logger *logging.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader, ingest: svc, logger: logger}
}

// Start consumes until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Infof("Kafka consumer started on topic %s", c.reader.Config().Topic)

		for {
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.Infof("Kafka consumer stopped")
					return
				}
				c.logger.Errorf("Read message failed: %v", err)
				continue
			}

			var reading models.SensorReading
			if err := json.Unmarshal(msg.Value, &reading); err != nil {
				c.logger.Errorf("Unmarshal message failed: %v", err)
				continue
			}
			if reading.DeviceID == "" {
				c.logger.Errorf("Invalid message: missing device_id")
				continue
			}

			if err := c.ingest.Ingest(ctx, reading); err != nil {
				c.logger.Errorf("Ingest failed for device %s: %v", reading.DeviceID, err)
				continue
			}
			c.logger.Infof("Processed Kafka reading for device %s", reading.DeviceID)
		}
	}()
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Errorf("Kafka reader close failed: %v", err)
	}
}
