package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"drainsentry-backend/internal/logging"
	"drainsentry-backend/internal/models"
	"drainsentry-backend/internal/rtdb"
)

// lastReadingTTL bounds how long cached current values stay queryable after
// a device goes silent.
const lastReadingTTL = 24 * time.Hour

// ErrUnknownDevice marks readings from device ids no user has registered.
var ErrUnknownDevice = errors.New("device not registered")

// Queue accepts notification work. Satisfied by notification.Service.
type Queue interface {
	QueueTask(task models.Task)
}

// Service is the shared ingestion path behind the HTTP endpoint and the
// kafka/mqtt bridges: it appends history entries, refreshes the device's
// current values, caches the latest reading, and queues threshold checks.
type Service struct {
	store  rtdb.Store
	logger *logging.Logger
	redis  *redis.Client
	queue  Queue
}

// New constructs the ingestion Service. redis and queue may be nil; caching
// and notification checks are skipped respectively.
func New(store rtdb.Store, logger *logging.Logger, rdb *redis.Client, queue Queue) *Service {
	return &Service{store: store, logger: logger, redis: rdb, queue: queue}
}

// ownerRecord is the slice of the user tree ingestion needs to locate devices.
type ownerRecord struct {
	Devices map[string]models.Device `json:"devices"`
}

// FindDevice locates a device by id across all users and returns the owning
// user id, the device's key under devices, and the device itself.
func (s *Service) FindDevice(ctx context.Context, deviceID string) (uid, key string, dev models.Device, err error) {
	snap, err := s.store.Get(ctx, rtdb.UsersPath())
	if err != nil {
		return "", "", models.Device{}, fmt.Errorf("failed to read users: %w", err)
	}
	if !snap.Exists() {
		return "", "", models.Device{}, fmt.Errorf("device %s: %w", deviceID, ErrUnknownDevice)
	}

	var users map[string]ownerRecord
	if err := snap.Decode(&users); err != nil {
		return "", "", models.Device{}, fmt.Errorf("failed to decode users: %w", err)
	}
	for uid, rec := range users {
		for key, dev := range rec.Devices {
			if dev.ID == deviceID || (dev.ID == "" && key == deviceID) {
				if dev.ID == "" {
					dev.ID = key
				}
				return uid, key, dev, nil
			}
		}
	}
	return "", "", models.Device{}, fmt.Errorf("device %s: %w", deviceID, ErrUnknownDevice)
}

// Ingest processes one sensor reading end to end.
func (s *Service) Ingest(ctx context.Context, reading models.SensorReading) error {
	if reading.DeviceID == "" {
		return fmt.Errorf("reading is missing device_id")
	}
	if reading.WaterLevel == nil && reading.BinFullness == nil && reading.BinWeight == nil {
		return fmt.Errorf("reading for %s carries no measurements", reading.DeviceID)
	}

	uid, key, dev, err := s.FindDevice(ctx, reading.DeviceID)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)

	if reading.WaterLevel != nil {
		entry := models.WaterLevelEntry{Level: *reading.WaterLevel, Timestamp: now}
		if _, err := s.store.Push(ctx, rtdb.WaterLevelHistoryPath(uid, key), entry); err != nil {
			return fmt.Errorf("failed to append water level for %s: %w", reading.DeviceID, err)
		}
		if err := s.store.Set(ctx, rtdb.DevicePath(uid, key)+"/waterLevel", *reading.WaterLevel); err != nil {
			return fmt.Errorf("failed to update water level for %s: %w", reading.DeviceID, err)
		}
		s.cacheLast(ctx, reading.DeviceID, models.MetricWaterLevel, *reading.WaterLevel)
		s.check(uid, dev, models.MetricWaterLevel, *reading.WaterLevel, dev.WaterThreshold())
	}

	if reading.BinFullness != nil {
		weight := 0.0
		if reading.BinWeight != nil {
			weight = *reading.BinWeight
		}
		entry := models.WasteBinEntry{Fullness: *reading.BinFullness, Weight: weight, Timestamp: now}
		if _, err := s.store.Push(ctx, rtdb.WasteBinHistoryPath(uid, key), entry); err != nil {
			return fmt.Errorf("failed to append waste bin entry for %s: %w", reading.DeviceID, err)
		}
		if err := s.store.Set(ctx, rtdb.DevicePath(uid, key)+"/binFullness", *reading.BinFullness); err != nil {
			return fmt.Errorf("failed to update bin fullness for %s: %w", reading.DeviceID, err)
		}
		if reading.BinWeight != nil {
			if err := s.store.Set(ctx, rtdb.DevicePath(uid, key)+"/binWeight", *reading.BinWeight); err != nil {
				return fmt.Errorf("failed to update bin weight for %s: %w", reading.DeviceID, err)
			}
		}
		s.cacheLast(ctx, reading.DeviceID, models.MetricWasteBin, *reading.BinFullness)
		s.check(uid, dev, models.MetricWasteBin, *reading.BinFullness, dev.BinThreshold())
	}

	if err := s.store.Set(ctx, rtdb.DevicePath(uid, key)+"/lastSeen", now); err != nil {
		return fmt.Errorf("failed to update lastSeen for %s: %w", reading.DeviceID, err)
	}

	return nil
}

// cacheLast mirrors the latest value into redis for cheap dashboard reads.
func (s *Service) cacheLast(ctx context.Context, deviceID, metric string, value float64) {
	if s.redis == nil {
		return
	}
	cacheKey := fmt.Sprintf("sensor:last:%s:%s", deviceID, metric)
	if err := s.redis.Set(ctx, cacheKey, value, lastReadingTTL).Err(); err != nil {
		s.logger.Errorf("Failed to cache %s: %v", cacheKey, err)
	}
}

func (s *Service) check(uid string, dev models.Device, metric string, value, threshold float64) {
	if s.queue == nil {
		return
	}
	s.queue.QueueTask(models.Task{
		RequestID:  uuid.NewString(),
		UserID:     uid,
		DeviceID:   dev.ID,
		DeviceName: dev.DisplayName(),
		Metric:     metric,
		Value:      value,
		Threshold:  threshold,
		Timestamp:  time.Now(),
	})
}
