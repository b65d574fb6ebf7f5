package alerts

import (
	"testing"

	"drainsentry-backend/internal/logging"
	"drainsentry-backend/internal/models"
)

func TestManagerAttachDeliversCurrentSet(t *testing.T) {
	store := newTestStore(t)
	seedDevice(t, store, "u1", "devA", models.Device{ID: "A", Name: "Alpha"})
	pushWater(t, store, "u1", "devA", 92)

	m := NewManager(store, logging.NewDiscard())
	defer m.Close()

	rec := &recorder{}
	detach := m.Attach("u1", rec.sink)
	defer detach()

	got := rec.last()
	if len(got) != 1 || got[0].DeviceID != "A" {
		t.Fatalf("attach must deliver the current set, got %v", got)
	}
}

func TestManagerFansOutChanges(t *testing.T) {
	store := newTestStore(t)
	seedDevice(t, store, "u1", "devA", models.Device{ID: "A", Name: "Alpha"})

	m := NewManager(store, logging.NewDiscard())
	defer m.Close()

	a, b := &recorder{}, &recorder{}
	detachA := m.Attach("u1", a.sink)
	defer detachA()
	detachB := m.Attach("u1", b.sink)
	defer detachB()

	pushWater(t, store, "u1", "devA", 95)

	for _, rec := range []*recorder{a, b} {
		if got := rec.last(); len(got) != 1 {
			t.Fatalf("sink missed the update, got %v", got)
		}
	}
}

func TestManagerDetachStopsDelivery(t *testing.T) {
	store := newTestStore(t)
	seedDevice(t, store, "u1", "devA", models.Device{ID: "A", Name: "Alpha"})

	m := NewManager(store, logging.NewDiscard())
	defer m.Close()

	rec := &recorder{}
	detach := m.Attach("u1", rec.sink)
	detach()
	before := rec.count()

	pushWater(t, store, "u1", "devA", 95)
	if rec.count() != before {
		t.Fatal("detached sink still receiving")
	}
}

func TestManagerCurrentPerUser(t *testing.T) {
	store := newTestStore(t)
	seedDevice(t, store, "u1", "devA", models.Device{ID: "A", Name: "Alpha"})
	seedDevice(t, store, "u2", "devX", models.Device{ID: "X", Name: "Xray"})
	pushWater(t, store, "u1", "devA", 92)

	m := NewManager(store, logging.NewDiscard())
	defer m.Close()

	if got := m.Current("u1"); len(got) != 1 {
		t.Fatalf("u1 expected one alert, got %v", got)
	}
	if got := m.Current("u2"); len(got) != 0 {
		t.Fatalf("u2 expected no alerts, got %v", got)
	}
}
