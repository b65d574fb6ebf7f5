package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"drainsentry-backend/internal/config"
	"drainsentry-backend/internal/logging"
	"drainsentry-backend/internal/models"
	"drainsentry-backend/internal/utils"
)

// FCM delivers push notifications through the Firebase Cloud Messaging
// legacy HTTP endpoint. Constructed once and injected wherever pushes are
// dispatched; there is no package-level instance.
type FCM struct {
	cfg    config.Config
	logger *logging.Logger
	client *http.Client
}

func NewFCM(cfg config.Config, logger *logging.Logger) *FCM {
	return &FCM{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type fcmMessage struct {
	To           string          `json:"to"`
	Notification fcmNotification `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Send pushes the notification to the contact's registered device token.
func (f *FCM) Send(ctx context.Context, notif models.Notification, contact models.Contact) error {
	if contact.FCMToken == "" {
		return fmt.Errorf("no FCM token registered")
	}
	if f.cfg.FCM.ServerKey == "" {
		return fmt.Errorf("missing FCM configuration: ServerKey is empty")
	}

	msg := fcmMessage{
		To: contact.FCMToken,
		Notification: fcmNotification{
			Title: notif.Title,
			Body:  notif.Body,
		},
		Data: map[string]string{
			"type":      notif.Type,
			"severity":  notif.Severity,
			"device_id": notif.DeviceID,
		},
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode FCM payload: %w", err)
	}

	return utils.Retry(f.logger, 3, time.Second, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.FCM.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create FCM request: %w", err)
		}
		req.Header.Set("Authorization", "key="+f.cfg.FCM.ServerKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send FCM push: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("FCM returned status %d", resp.StatusCode)
		}
		return nil
	})
}
