package rtdb

import (
	"context"
	"encoding/json"
)

// Snapshot is the value observed at a path at one point in time. A missing
// or deleted path yields a Snapshot that does not Exist.
type Snapshot struct {
	Path  string
	Value json.RawMessage
}

// Exists reports whether the path held any value when the snapshot was taken.
func (s Snapshot) Exists() bool {
	return len(s.Value) > 0 && string(s.Value) != "null"
}

// Decode unmarshals the snapshot value into v.
func (s Snapshot) Decode(v interface{}) error {
	if !s.Exists() {
		return nil
	}
	return json.Unmarshal(s.Value, v)
}

// Query narrows a subscription or read over a collection node. Children are
// always considered in key order; LimitToLast keeps only the last N keys.
type Query struct {
	OrderByKey  bool
	LimitToLast int
}

// UnsubscribeFunc cancels a subscription. Safe to call more than once.
type UnsubscribeFunc func()

// Store is the hierarchical key-value contract the rest of the service
// consumes: one-shot reads and writes plus standing path subscriptions that
// deliver an initial snapshot and fire again on every change at or under the
// path until torn down.
type Store interface {
	Get(ctx context.Context, path string) (Snapshot, error)
	Set(ctx context.Context, path string, value interface{}) error
	Push(ctx context.Context, path string, value interface{}) (string, error)
	Delete(ctx context.Context, path string) error

	// Subscribe registers fn for the path. The initial snapshot is delivered
	// before Subscribe returns. errFn receives transport failures; the
	// subscription is dead once errFn has fired.
	Subscribe(path string, q Query, fn func(Snapshot), errFn func(error)) (UnsubscribeFunc, error)
}

// Persister is the durable backing behind an in-process Store. Rows are
// (path, raw JSON) pairs with no overlap between ancestors and descendants.
type Persister interface {
	LoadAll(ctx context.Context) (map[string]json.RawMessage, error)
	SaveNode(ctx context.Context, path string, value json.RawMessage) error
	DeleteSubtree(ctx context.Context, path string) error
}
