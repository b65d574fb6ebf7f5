package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"drainsentry-backend/internal/config"
	"drainsentry-backend/internal/logging"
	"drainsentry-backend/internal/models"
	"drainsentry-backend/internal/rtdb"
)

// Sender delivers one notification over one channel.
type Sender interface {
	Send(ctx context.Context, notif models.Notification, contact models.Contact) error
}

// Providers groups the delivery channels injected into the Service. A nil
// entry disables that channel.
type Providers struct {
	Push     Sender
	Telegram Sender
	Email    Sender
}

// Service processes sensor Tasks and dispatches Notifications through the
// configured providers.
type Service struct {
	store     rtdb.Store
	logger    *logging.Logger
	config    config.Config
	cooldown  Cooldown
	providers Providers
	tasks     chan models.Task
	ctx       context.Context
	cancel    context.CancelFunc
	wg        *sync.WaitGroup
}

// New constructs a notification Service. cooldown may be nil, in which case
// every task that crosses its threshold notifies.
func New(store rtdb.Store, logger *logging.Logger, cfg config.Config, cooldown Cooldown, providers Providers) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:     store,
		logger:    logger,
		config:    cfg,
		cooldown:  cooldown,
		providers: providers,
		tasks:     make(chan models.Task, cfg.Notification.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Logger exposes the Service's logger to the ingestion bridges.
func (s *Service) Logger() *logging.Logger {
	return s.logger
}

// Start launches the worker pool.
func (s *Service) Start(wg *sync.WaitGroup) {
	s.wg = wg
	for i := 0; i < s.config.Notification.MaxWorkers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

// Stop cancels the workers. Start's WaitGroup reports when they exit.
func (s *Service) Stop() {
	s.cancel()
}

// QueueTask enqueues a Task for processing.
func (s *Service) QueueTask(task models.Task) {
	select {
	case s.tasks <- task:
		s.logger.Infof("Queued task: request_id=%s", task.RequestID)
	default:
		s.logger.Errorf("Queue full, dropping task: request_id=%s", task.RequestID)
	}
}

// worker processes Tasks until context is cancelled.
func (s *Service) worker(id int) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Infof("Worker %d stopped", id)
			return
		case task := <-s.tasks:
			s.handleTask(task)
		}
	}
}

// handleTask grades the reading, checks the cooldown window, and dispatches
// through every channel the user has configured.
func (s *Service) handleTask(task models.Task) {
	severity := severityFor(task.Value, task.Threshold)
	if severity == "" {
		s.logger.Debugf("Task %s below threshold (%.1f <= %.1f), skipping", task.RequestID, task.Value, task.Threshold)
		return
	}

	if s.cooldown != nil {
		allowed, err := s.cooldown.Allow(s.ctx, CooldownKey(task.UserID, task.DeviceID, task.Metric))
		if err != nil {
			s.logger.Errorf("Cooldown check failed for task %s: %v", task.RequestID, err)
			return
		}
		if !allowed {
			s.logger.Debugf("Task %s suppressed by cooldown", task.RequestID)
			return
		}
	}

	snap, err := s.store.Get(s.ctx, rtdb.UserContactPath(task.UserID))
	if err != nil {
		s.logger.Errorf("Failed to load contact for user %s: %v", task.UserID, err)
		return
	}
	var contact models.Contact
	if snap.Exists() {
		if err := snap.Decode(&contact); err != nil {
			s.logger.Errorf("Invalid contact settings for user %s: %v", task.UserID, err)
			return
		}
	}

	title, body := composeMessage(task, severity)
	dispatched := 0
	for _, ch := range []struct {
		name    string
		sender  Sender
		enabled bool
	}{
		{"push", s.providers.Push, contact.FCMToken != ""},
		{"telegram", s.providers.Telegram, contact.TelegramChatID != 0},
		{"email", s.providers.Email, contact.Email != ""},
	} {
		if ch.sender == nil || !ch.enabled {
			continue
		}
		dispatched++

		notif := models.Notification{
			ID:        uuid.NewString(),
			CreatedAt: time.Now(),
			Type:      "alert",
			Title:     title,
			Body:      body,
			Severity:  severity,
			DeviceID:  task.DeviceID,
			Channel:   ch.name,
			Status:    "success",
		}
		if err := ch.sender.Send(s.ctx, notif, contact); err != nil {
			notif.Status = "failed"
			notif.Error = err.Error()
			s.logger.Errorf("Dispatch error via %s for task %s: %v", ch.name, task.RequestID, err)
		}

		if _, err := s.store.Push(s.ctx, rtdb.UserNotificationsPath(task.UserID), notif); err != nil {
			s.logger.Errorf("Failed to record notification for user %s: %v", task.UserID, err)
			continue
		}
		s.logger.Infof("Task %s dispatched %s via %s", task.RequestID, notif.Status, ch.name)
	}

	if dispatched == 0 {
		s.logger.Infof("Task %s has no configured channels for user %s", task.RequestID, task.UserID)
	}
}

// severityFor grades a reading against the device's configured threshold.
// Values at or below the threshold produce no notification at all.
func severityFor(value, threshold float64) string {
	if value <= threshold {
		return ""
	}
	switch {
	case value > 95:
		return models.SeverityCritical
	case value > 85:
		return models.SeverityHigh
	default:
		return models.SeverityMedium
	}
}

func composeMessage(task models.Task, severity string) (title, body string) {
	label := "Water level"
	if task.Metric == models.MetricWasteBin {
		label = "Waste bin"
	}
	title = fmt.Sprintf("%s alert: %s", label, task.DeviceName)
	body = fmt.Sprintf("%s at %s reached %.1f%% (threshold %.1f%%, severity %s)",
		label, task.DeviceName, task.Value, task.Threshold, severity)
	return title, body
}
