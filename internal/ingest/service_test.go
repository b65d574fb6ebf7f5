package ingest

import (
	"context"
	"sync"
	"testing"

	"drainsentry-backend/internal/logging"
	"drainsentry-backend/internal/models"
	"drainsentry-backend/internal/rtdb"
)

type recordingQueue struct {
	mu    sync.Mutex
	tasks []models.Task
}

func (q *recordingQueue) QueueTask(task models.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
}

func (q *recordingQueue) all() []models.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]models.Task(nil), q.tasks...)
}

func newTestIngest(t *testing.T) (*Service, *rtdb.TreeStore, *recordingQueue) {
	t.Helper()
	store, err := rtdb.NewTreeStore(context.Background(), nil)
	if err != nil {
		t.Fatalf("NewTreeStore: %v", err)
	}
	q := &recordingQueue{}
	return New(store, logging.NewDiscard(), nil, q), store, q
}

func registerDevice(t *testing.T, store *rtdb.TreeStore, uid string, dev models.Device) {
	t.Helper()
	if err := store.Set(context.Background(), rtdb.DevicePath(uid, dev.ID), dev); err != nil {
		t.Fatalf("register device: %v", err)
	}
}

func f(v float64) *float64 { return &v }

func TestIngestAppendsHistoryAndUpdatesDevice(t *testing.T) {
	svc, store, _ := newTestIngest(t)
	ctx := context.Background()
	registerDevice(t, store, "u1", models.Device{ID: "devA", Name: "Alpha"})

	reading := models.SensorReading{DeviceID: "devA", WaterLevel: f(42), BinFullness: f(61), BinWeight: f(3.4)}
	if err := svc.Ingest(ctx, reading); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	snap, err := store.Get(ctx, rtdb.WaterLevelHistoryPath("u1", "devA"))
	if err != nil {
		t.Fatalf("Get history: %v", err)
	}
	var water map[string]models.WaterLevelEntry
	if err := snap.Decode(&water); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(water) != 1 {
		t.Fatalf("expected 1 water entry, got %d", len(water))
	}
	for _, e := range water {
		if e.Level != 42 || e.Timestamp == "" {
			t.Fatalf("unexpected entry %+v", e)
		}
	}

	snap, err = store.Get(ctx, rtdb.DevicePath("u1", "devA"))
	if err != nil {
		t.Fatalf("Get device: %v", err)
	}
	var dev models.Device
	if err := snap.Decode(&dev); err != nil {
		t.Fatalf("Decode device: %v", err)
	}
	if dev.WaterLevel != 42 || dev.BinFullness != 61 || dev.BinWeight != 3.4 {
		t.Fatalf("device current values not updated: %+v", dev)
	}
	if dev.LastSeen == "" {
		t.Fatal("lastSeen not updated")
	}
}

func TestIngestQueuesTaskPerMetric(t *testing.T) {
	svc, store, q := newTestIngest(t)
	registerDevice(t, store, "u1", models.Device{ID: "devA", Name: "Alpha"})

	if err := svc.Ingest(context.Background(), models.SensorReading{DeviceID: "devA", WaterLevel: f(92), BinFullness: f(30)}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	tasks := q.all()
	if len(tasks) != 2 {
		t.Fatalf("expected a task per metric, got %d", len(tasks))
	}
	byMetric := map[string]models.Task{}
	for _, task := range tasks {
		byMetric[task.Metric] = task
	}
	water := byMetric[models.MetricWaterLevel]
	if water.Value != 92 || water.Threshold != models.DefaultThreshold || water.UserID != "u1" || water.DeviceName != "Alpha" {
		t.Fatalf("unexpected water task %+v", water)
	}
	if byMetric[models.MetricWasteBin].Value != 30 {
		t.Fatalf("unexpected waste task %+v", byMetric[models.MetricWasteBin])
	}
}

func TestIngestHonorsConfiguredThreshold(t *testing.T) {
	svc, store, q := newTestIngest(t)
	registerDevice(t, store, "u1", models.Device{
		ID:         "devA",
		Thresholds: models.Thresholds{WaterLevel: 90},
	})

	if err := svc.Ingest(context.Background(), models.SensorReading{DeviceID: "devA", WaterLevel: f(88)}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	tasks := q.all()
	if len(tasks) != 1 || tasks[0].Threshold != 90 {
		t.Fatalf("expected task carrying the device threshold, got %+v", tasks)
	}
}

func TestIngestUnknownDevice(t *testing.T) {
	svc, _, _ := newTestIngest(t)
	err := svc.Ingest(context.Background(), models.SensorReading{DeviceID: "ghost", WaterLevel: f(50)})
	if err == nil {
		t.Fatal("expected error for unregistered device")
	}
}

func TestIngestRejectsEmptyReading(t *testing.T) {
	svc, store, _ := newTestIngest(t)
	registerDevice(t, store, "u1", models.Device{ID: "devA"})

	if err := svc.Ingest(context.Background(), models.SensorReading{DeviceID: "devA"}); err == nil {
		t.Fatal("expected error for reading with no measurements")
	}
	if err := svc.Ingest(context.Background(), models.SensorReading{WaterLevel: f(50)}); err == nil {
		t.Fatal("expected error for missing device_id")
	}
}

func TestFindDeviceFallsBackToKey(t *testing.T) {
	svc, store, _ := newTestIngest(t)
	// registered with no id field; the key under devices identifies it
	if err := store.Set(context.Background(), rtdb.DevicePath("u1", "devB"), map[string]interface{}{"name": "Beta"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	uid, key, dev, err := svc.FindDevice(context.Background(), "devB")
	if err != nil {
		t.Fatalf("FindDevice: %v", err)
	}
	if uid != "u1" || key != "devB" || dev.ID != "devB" || dev.DisplayName() != "Beta" {
		t.Fatalf("unexpected result uid=%s key=%s dev=%+v", uid, key, dev)
	}
}
