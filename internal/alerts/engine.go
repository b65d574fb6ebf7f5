package alerts

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"drainsentry-backend/internal/logging"
	"drainsentry-backend/internal/models"
	"drainsentry-backend/internal/rtdb"
)

// criticalThreshold is the strict cutoff for both metrics. A reading of
// exactly 85 is normal; 86 is critical.
const criticalThreshold = 85.0

// Engine derives the current critical-alert set for one user. It keeps a
// single subscription on the user's device list and, per device, one
// subscription on the most recent entry of each history stream. Every metric
// fire overwrites or deletes exactly one key of the alert map and republishes
// the full collection, so the published set is eventually consistent: right
// after a device-list change it may be a strict subset of steady state.
//
// A device that has never reported any history contributes nothing; the
// engine does not distinguish "no data" from "confirmed normal".
type Engine struct {
	store  rtdb.Store
	logger *logging.Logger

	// onUpdate receives a snapshot of the alert collection after every
	// change. It is invoked with the engine lock held and must not call back
	// into the engine.
	onUpdate func([]models.Alert)
	// onError receives the terminal error of the device-list subscription.
	onError func(error)

	mu           sync.Mutex
	gen          uint64
	alerts       map[string]models.Alert
	metricUnsubs []rtdb.UnsubscribeFunc
	devicesUnsub rtdb.UnsubscribeFunc
	loading      bool
}

// NewEngine constructs an engine. onUpdate is required; onError may be nil,
// in which case device-list failures are only logged.
func NewEngine(store rtdb.Store, logger *logging.Logger, onUpdate func([]models.Alert), onError func(error)) *Engine {
	return &Engine{
		store:    store,
		logger:   logger,
		onUpdate: onUpdate,
		onError:  onError,
		alerts:   map[string]models.Alert{},
	}
}

// Start begins tracking the user's devices. An empty userID publishes an
// empty collection and opens no subscriptions.
func (e *Engine) Start(userID string) {
	if userID == "" {
		e.mu.Lock()
		e.loading = false
		e.publishLocked()
		e.mu.Unlock()
		return
	}

	e.mu.Lock()
	e.loading = true
	e.mu.Unlock()

	unsub, err := e.store.Subscribe(
		rtdb.UserDevicesPath(userID),
		rtdb.Query{},
		func(snap rtdb.Snapshot) { e.handleDevices(userID, snap) },
		e.failDevices,
	)
	if err != nil {
		e.failDevices(err)
		return
	}

	e.mu.Lock()
	e.devicesUnsub = unsub
	e.mu.Unlock()
}

// Stop tears down the device-list subscription and every metric
// subscription. Idempotent; safe when nothing is open.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.gen++
	devUnsub := e.devicesUnsub
	e.devicesUnsub = nil
	old := e.metricUnsubs
	e.metricUnsubs = nil
	e.alerts = map[string]models.Alert{}
	e.loading = false
	e.mu.Unlock()

	if devUnsub != nil {
		devUnsub()
	}
	for _, u := range old {
		u()
	}
}

// Alerts returns a copy of the currently published collection.
func (e *Engine) Alerts() []models.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Loading reports whether the initial device-list snapshot is still pending.
func (e *Engine) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

// handleDevices runs on every device-list snapshot, including the first.
// It unconditionally tears down all metric subscriptions and rebuilds from
// scratch; diffing individual devices is how stale-subscription leaks happen.
func (e *Engine) handleDevices(userID string, snap rtdb.Snapshot) {
	var devices map[string]models.Device
	if err := snap.Decode(&devices); err != nil {
		e.logger.Warnf("Malformed device list for user %s: %v", userID, err)
		devices = nil
	}

	e.mu.Lock()
	e.gen++
	gen := e.gen
	old := e.metricUnsubs
	e.metricUnsubs = nil
	e.alerts = map[string]models.Alert{}
	e.mu.Unlock()

	for _, u := range old {
		u()
	}

	if len(devices) == 0 {
		e.mu.Lock()
		e.loading = false
		e.publishLocked()
		e.mu.Unlock()
		return
	}

	keys := make([]string, 0, len(devices))
	for k := range devices {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	latest := rtdb.Query{OrderByKey: true, LimitToLast: 1}
	unsubs := make([]rtdb.UnsubscribeFunc, 0, 2*len(keys))
	for _, key := range keys {
		dev := devices[key]
		if dev.ID == "" {
			dev.ID = key
		}
		d := dev

		wu, err := e.store.Subscribe(
			rtdb.WaterLevelHistoryPath(userID, key),
			latest,
			func(s rtdb.Snapshot) { e.handleMetric(gen, d, models.MetricWaterLevel, s) },
			e.metricErrFunc(d.ID, models.MetricWaterLevel),
		)
		if err != nil {
			e.logger.Errorf("Water-level subscription failed for device %s: %v", d.ID, err)
		} else {
			unsubs = append(unsubs, wu)
		}

		bu, err := e.store.Subscribe(
			rtdb.WasteBinHistoryPath(userID, key),
			latest,
			func(s rtdb.Snapshot) { e.handleMetric(gen, d, models.MetricWasteBin, s) },
			e.metricErrFunc(d.ID, models.MetricWasteBin),
		)
		if err != nil {
			e.logger.Errorf("Waste-bin subscription failed for device %s: %v", d.ID, err)
		} else {
			unsubs = append(unsubs, bu)
		}
	}

	e.mu.Lock()
	if e.gen != gen {
		// superseded while subscribing; the new generation owns the engine
		e.mu.Unlock()
		for _, u := range unsubs {
			u()
		}
		return
	}
	e.metricUnsubs = unsubs
	e.loading = false
	e.mu.Unlock()
}

// handleMetric runs on every fire of a per-device history subscription.
// Stale fires from a torn-down generation are dropped.
func (e *Engine) handleMetric(gen uint64, dev models.Device, metric string, snap rtdb.Snapshot) {
	value, ok := latestMetricValue(snap, metric)
	key := models.AlertKey(dev.ID, metric)

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		return
	}

	if ok && value > criticalThreshold {
		e.alerts[key] = models.Alert{
			Type:     metric,
			Message:  alertMessage(metric, dev.DisplayName()),
			Severity: models.SeverityCritical,
			DeviceID: dev.ID,
		}
	} else {
		delete(e.alerts, key)
	}
	e.publishLocked()
}

// latestMetricValue extracts the numeric value from the entry with the
// greatest key. Missing snapshots and malformed entries read as "no value",
// which downstream resolves to alert deletion, never an error.
func latestMetricValue(snap rtdb.Snapshot, metric string) (float64, bool) {
	if !snap.Exists() {
		return 0, false
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(snap.Value, &entries); err != nil || len(entries) == 0 {
		return 0, false
	}

	latestKey := ""
	for k := range entries {
		if latestKey == "" || k > latestKey {
			latestKey = k
		}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(entries[latestKey], &fields); err != nil {
		return 0, false
	}
	field := "level"
	if metric == models.MetricWasteBin {
		field = "fullness"
	}
	raw, exists := fields[field]
	if !exists {
		return 0, false
	}
	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, false
	}
	return value, true
}

func alertMessage(metric, name string) string {
	if metric == models.MetricWasteBin {
		return fmt.Sprintf("Waste bin full at %s.", name)
	}
	return fmt.Sprintf("Critical water level at %s.", name)
}

func (e *Engine) metricErrFunc(deviceID, metric string) func(error) {
	return func(err error) {
		// per-metric failures are absorbed; there is no per-alert error state
		e.logger.Errorf("History subscription error for device %s (%s): %v", deviceID, metric, err)
	}
}

// failDevices handles a terminal device-list subscription error: surfaced to
// the caller, loading cleared, no retry, no partial publish.
func (e *Engine) failDevices(err error) {
	e.mu.Lock()
	e.loading = false
	e.mu.Unlock()

	if e.onError != nil {
		e.onError(err)
		return
	}
	e.logger.Errorf("Device-list subscription failed: %v", err)
}

func (e *Engine) snapshotLocked() []models.Alert {
	out := make([]models.Alert, 0, len(e.alerts))
	keys := make([]string, 0, len(e.alerts))
	for k := range e.alerts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, e.alerts[k])
	}
	return out
}

func (e *Engine) publishLocked() {
	if e.onUpdate != nil {
		e.onUpdate(e.snapshotLocked())
	}
}
