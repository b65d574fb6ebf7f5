package models

import "time"

// Task is one unit of notification work queued for the worker pool.
type Task struct {
	RequestID  string
	UserID     string
	DeviceID   string
	DeviceName string
	Metric     string
	Value      float64
	Threshold  float64
	Timestamp  time.Time
}

// Contact holds a user's delivery settings, read from
// users/{uid}/settings/contact. Empty fields disable that channel.
type Contact struct {
	FCMToken       string `json:"fcmToken,omitempty"`
	Email          string `json:"email,omitempty"`
	TelegramChatID int64  `json:"telegramChatId,omitempty"`
}

// Notification is a persisted record of one dispatched (or failed) delivery,
// pushed under users/{uid}/notifications.
type Notification struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Severity  string    `json:"severity"`
	DeviceID  string    `json:"device_id"`
	Channel   string    `json:"channel"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
}
