package rtdb

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
)

func newStore(t *testing.T) *TreeStore {
	t.Helper()
	s, err := NewTreeStore(context.Background(), nil)
	if err != nil {
		t.Fatalf("NewTreeStore: %v", err)
	}
	return s
}

func TestSetGetNested(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "users/u1/devices/devA", map[string]interface{}{"id": "A", "name": "Alpha"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	snap, err := s.Get(ctx, "users/u1/devices/devA/name")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var name string
	if err := snap.Decode(&name); err != nil || name != "Alpha" {
		t.Fatalf("got %q (%v), want Alpha", name, err)
	}

	// intermediate paths assemble their subtree
	snap, err = s.Get(ctx, "users/u1/devices")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var devices map[string]struct {
		ID string `json:"id"`
	}
	if err := snap.Decode(&devices); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if devices["devA"].ID != "A" {
		t.Fatalf("unexpected devices %v", devices)
	}
}

func TestGetMissingPath(t *testing.T) {
	s := newStore(t)
	snap, err := s.Get(context.Background(), "users/nobody")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.Exists() {
		t.Fatalf("missing path must not exist, got %s", snap.Value)
	}
}

func TestDeleteRemovesSubtree(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "users/u1/devices/devA", map[string]interface{}{"id": "A"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Delete(ctx, "users/u1/devices/devA"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	snap, _ := s.Get(ctx, "users/u1/devices/devA")
	if snap.Exists() {
		t.Fatal("deleted subtree still readable")
	}
}

func TestSubscribeDeliversInitialAndChanges(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	var mu sync.Mutex
	var fired []Snapshot
	unsub, err := s.Subscribe("users/u1/devices", Query{}, func(snap Snapshot) {
		mu.Lock()
		fired = append(fired, snap)
		mu.Unlock()
	}, nil)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsub()

	mu.Lock()
	if len(fired) != 1 || fired[0].Exists() {
		t.Fatalf("expected one empty initial snapshot, got %v", fired)
	}
	mu.Unlock()

	// a write under the subscribed path fires the listener
	if err := s.Set(ctx, "users/u1/devices/devA/name", "Alpha"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mu.Lock()
	if len(fired) != 2 || !fired[1].Exists() {
		t.Fatalf("expected change delivery, got %v", fired)
	}
	mu.Unlock()

	// an unrelated write does not
	if err := s.Set(ctx, "users/u2/devices/devX/name", "Other"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mu.Lock()
	if len(fired) != 2 {
		t.Fatalf("unrelated write fired listener: %v", fired)
	}
	mu.Unlock()
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	count := 0
	unsub, err := s.Subscribe("users/u1", Query{}, func(Snapshot) { count++ }, nil)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	unsub()
	unsub() // idempotent

	if err := s.Set(ctx, "users/u1/devices/devA", map[string]interface{}{"id": "A"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only the initial delivery, got %d", count)
	}
}

func TestLimitToLastReturnsLatestEntry(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for _, level := range []float64{40, 60, 92} {
		if _, err := s.Push(ctx, "users/u1/devices/devA/waterLevelHistory", map[string]interface{}{"level": level}); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}

	var last Snapshot
	unsub, err := s.Subscribe("users/u1/devices/devA/waterLevelHistory", Query{OrderByKey: true, LimitToLast: 1}, func(snap Snapshot) {
		last = snap
	}, nil)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsub()

	var entries map[string]struct {
		Level float64 `json:"level"`
	}
	if err := last.Decode(&entries); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("limit-to-last 1 returned %d entries", len(entries))
	}
	for _, e := range entries {
		if e.Level != 92 {
			t.Fatalf("expected latest entry 92, got %v", e.Level)
		}
	}
}

func TestPushKeysAreOrdered(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	keys := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		k, err := s.Push(ctx, "stream", map[string]interface{}{"n": i})
		if err != nil {
			t.Fatalf("Push: %v", err)
		}
		keys = append(keys, k)
	}
	if !sort.StringsAreSorted(keys) {
		t.Fatal("push keys are not lexicographically increasing")
	}
}

func TestPersistedRowsReplay(t *testing.T) {
	p := &memPersister{rows: map[string]json.RawMessage{}}
	ctx := context.Background()

	s1, err := NewTreeStore(ctx, p)
	if err != nil {
		t.Fatalf("NewTreeStore: %v", err)
	}
	if err := s1.Set(ctx, "users/u1/devices/devA", map[string]interface{}{"id": "A", "name": "Alpha"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s1.Set(ctx, "users/u1/devices/devA/name", "Renamed"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// a second store built over the same rows sees the same tree
	s2, err := NewTreeStore(ctx, p)
	if err != nil {
		t.Fatalf("NewTreeStore replay: %v", err)
	}
	snap, err := s2.Get(ctx, "users/u1/devices/devA/name")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var name string
	if err := snap.Decode(&name); err != nil || name != "Renamed" {
		t.Fatalf("replayed tree got %q (%v), want Renamed", name, err)
	}
}

// memPersister is an in-memory Persister used to exercise write-through.
type memPersister struct {
	mu   sync.Mutex
	rows map[string]json.RawMessage
}

func (p *memPersister) LoadAll(ctx context.Context) (map[string]json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]json.RawMessage, len(p.rows))
	for k, v := range p.rows {
		out[k] = v
	}
	return out, nil
}

func (p *memPersister) SaveNode(ctx context.Context, path string, value json.RawMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows[path] = value
	return nil
}

func (p *memPersister) DeleteSubtree(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k := range p.rows {
		if k == path || (len(k) > len(path) && k[:len(path)] == path && k[len(path)] == '/') {
			delete(p.rows, k)
		}
	}
	return nil
}
