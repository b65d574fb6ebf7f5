package rtdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// TreeStore is the in-process Store implementation: a mutex-guarded path
// tree with a listener registry, persisted write-through so the tree can be
// rebuilt on startup. A listener at path P fires for any write at or under P.
type TreeStore struct {
	mu        sync.Mutex
	root      *node
	listeners map[int]*listener
	nextID    int
	persister Persister
	pushCtr   uint64
}

type node struct {
	children map[string]*node
	leaf     json.RawMessage
}

type listener struct {
	parts []string
	q     Query
	fn    func(Snapshot)
}

type pendingFire struct {
	fn   func(Snapshot)
	snap Snapshot
}

// NewTreeStore builds a store, replaying persisted rows when a Persister is
// supplied. A nil persister keeps everything in memory (tests use this).
func NewTreeStore(ctx context.Context, p Persister) (*TreeStore, error) {
	s := &TreeStore{
		root:      &node{children: map[string]*node{}},
		listeners: map[int]*listener{},
		persister: p,
	}
	if p != nil {
		rows, err := p.LoadAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load persisted tree: %w", err)
		}
		// ancestors sort before descendants, so deeper rows win on replay
		paths := make([]string, 0, len(rows))
		for path := range rows {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			s.apply(splitPath(path), rows[path])
		}
	}
	return s, nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Get returns the value at path assembled from the tree.
func (s *TreeStore) Get(ctx context.Context, path string) (Snapshot, error) {
	parts := splitPath(path)
	if parts == nil {
		return Snapshot{}, fmt.Errorf("empty path")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotAt(path, parts, Query{}), nil
}

// Set replaces the subtree at path with value. A nil value deletes.
func (s *TreeStore) Set(ctx context.Context, path string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for %s: %w", path, err)
	}
	return s.setRaw(ctx, path, raw)
}

// Push appends value under path with a generated key that sorts after every
// previously generated key, so order-by-key equals chronological order.
func (s *TreeStore) Push(ctx context.Context, path string, value interface{}) (string, error) {
	key := s.pushKey()
	if err := s.Set(ctx, path+"/"+key, value); err != nil {
		return "", err
	}
	return key, nil
}

// Delete removes the subtree at path.
func (s *TreeStore) Delete(ctx context.Context, path string) error {
	return s.setRaw(ctx, path, json.RawMessage("null"))
}

// Subscribe registers fn for path and delivers the initial snapshot before
// returning. TreeStore has no transport, so errFn is never invoked here.
func (s *TreeStore) Subscribe(path string, q Query, fn func(Snapshot), errFn func(error)) (UnsubscribeFunc, error) {
	parts := splitPath(path)
	if parts == nil {
		return nil, fmt.Errorf("empty path")
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = &listener{parts: parts, q: q, fn: fn}
	initial := s.snapshotAt(path, parts, q)
	s.mu.Unlock()

	fn(initial)

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}, nil
}

func (s *TreeStore) setRaw(ctx context.Context, path string, raw json.RawMessage) error {
	parts := splitPath(path)
	if parts == nil {
		return fmt.Errorf("empty path")
	}

	if s.persister != nil {
		if err := s.persister.DeleteSubtree(ctx, path); err != nil {
			return fmt.Errorf("failed to persist delete at %s: %w", path, err)
		}
		if string(raw) != "null" {
			if err := s.persister.SaveNode(ctx, path, raw); err != nil {
				return fmt.Errorf("failed to persist write at %s: %w", path, err)
			}
		}
	}

	s.mu.Lock()
	s.apply(parts, raw)
	fires := s.collectFires(parts)
	s.mu.Unlock()

	for _, f := range fires {
		f.fn(f.snap)
	}
	return nil
}

// apply mutates the tree. Caller holds the lock (or is still single-owner).
func (s *TreeStore) apply(parts []string, raw json.RawMessage) {
	parent := s.root
	for _, part := range parts[:len(parts)-1] {
		if parent.children == nil {
			// overwrite a scalar with a branch
			parent.leaf = nil
			parent.children = map[string]*node{}
		}
		child, ok := parent.children[part]
		if !ok {
			child = &node{children: map[string]*node{}}
			parent.children[part] = child
		}
		parent = child
	}
	last := parts[len(parts)-1]
	if parent.children == nil {
		parent.leaf = nil
		parent.children = map[string]*node{}
	}
	if string(raw) == "null" {
		delete(parent.children, last)
		return
	}
	parent.children[last] = decompose(raw)
}

// decompose splits a JSON object into child nodes; anything else is a leaf.
func decompose(raw json.RawMessage) *node {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil && len(raw) > 0 && raw[0] == '{' {
		n := &node{children: make(map[string]*node, len(obj))}
		for k, v := range obj {
			if string(v) == "null" {
				continue
			}
			n.children[k] = decompose(v)
		}
		return n
	}
	return &node{leaf: raw}
}

func (s *TreeStore) lookup(parts []string) *node {
	n := s.root
	for _, part := range parts {
		if n.children == nil {
			return nil
		}
		child, ok := n.children[part]
		if !ok {
			return nil
		}
		n = child
	}
	return n
}

func (s *TreeStore) snapshotAt(path string, parts []string, q Query) Snapshot {
	n := s.lookup(parts)
	if n == nil {
		return Snapshot{Path: path}
	}
	return Snapshot{Path: path, Value: assemble(n, q)}
}

func assemble(n *node, q Query) json.RawMessage {
	if n.children == nil {
		return n.leaf
	}
	if len(n.children) == 0 {
		return nil
	}
	keys := make([]string, 0, len(n.children))
	for k := range n.children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if q.LimitToLast > 0 && len(keys) > q.LimitToLast {
		keys = keys[len(keys)-q.LimitToLast:]
	}
	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		out[k] = assemble(n.children[k], Query{})
	}
	raw, _ := json.Marshal(out)
	return raw
}

// collectFires gathers listener callbacks affected by a write at parts,
// snapshotting their views while the lock is still held so every delivery is
// a consistent view of the tree. Caller holds the lock.
func (s *TreeStore) collectFires(parts []string) []pendingFire {
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var fires []pendingFire
	for _, id := range ids {
		l := s.listeners[id]
		if !overlaps(l.parts, parts) {
			continue
		}
		path := strings.Join(l.parts, "/")
		fires = append(fires, pendingFire{fn: l.fn, snap: s.snapshotAt(path, l.parts, l.q)})
	}
	return fires
}

// overlaps reports whether one path is an ancestor of (or equal to) the other.
func overlaps(a, b []string) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// pushKey generates a lexicographically increasing child key: a fixed-width
// millisecond prefix, a process-local counter for same-millisecond writes,
// and a short random suffix.
func (s *TreeStore) pushKey() string {
	ms := time.Now().UnixMilli()
	c := atomic.AddUint64(&s.pushCtr, 1)
	return fmt.Sprintf("%012x%06x-%s", ms, c&0xffffff, uuid.NewString()[:8])
}
