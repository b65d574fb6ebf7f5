package config

import (
	"testing"
	"time"
)

func TestLoadRequiresDSN(t *testing.T) {
	t.Setenv("DB_DSN", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when DB_DSN is missing")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/drainsentry")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.API.Port != ":8080" || cfg.API.BasePath != "/api/v0" {
		t.Fatalf("unexpected API defaults %+v", cfg.API)
	}
	if cfg.Notification.QueueSize != 500 || cfg.Notification.MaxWorkers != 10 {
		t.Fatalf("unexpected notification defaults %+v", cfg.Notification)
	}
	if cfg.Notification.Cooldown != 30*time.Minute {
		t.Fatalf("unexpected cooldown %v", cfg.Notification.Cooldown)
	}
	if cfg.Monitor.Interval != 60*time.Second {
		t.Fatalf("unexpected monitor interval %v", cfg.Monitor.Interval)
	}
	if cfg.MQTT.Topic != "drainsentry/+/readings" {
		t.Fatalf("unexpected mqtt topic %q", cfg.MQTT.Topic)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/drainsentry")
	t.Setenv("QUEUE_SIZE", "32")
	t.Setenv("NOTIFICATION_COOLDOWN", "5m")
	t.Setenv("MONITOR_INTERVAL", "10s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Notification.QueueSize != 32 {
		t.Fatalf("unexpected queue size %d", cfg.Notification.QueueSize)
	}
	if cfg.Notification.Cooldown != 5*time.Minute {
		t.Fatalf("unexpected cooldown %v", cfg.Notification.Cooldown)
	}
	if cfg.Monitor.Interval != 10*time.Second {
		t.Fatalf("unexpected interval %v", cfg.Monitor.Interval)
	}
}
