package db

import (
	"context"
	"encoding/json"
	"fmt"
)

// The store tree is persisted as non-overlapping (path, value) rows: a row's
// path is never an ancestor of another row's path, which is maintained by
// deleting the subtree before every write.

// CreateSchema creates the backing table if it does not exist.
func (d *DB) CreateSchema(ctx context.Context) error {
	query := `
        CREATE TABLE IF NOT EXISTS rtdb_nodes (
            path  TEXT PRIMARY KEY,
            value JSONB NOT NULL
        )`
	if _, err := d.Pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create rtdb_nodes table: %w", err)
	}
	return nil
}

// LoadAll returns every persisted row for tree replay at startup.
func (d *DB) LoadAll(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := d.Pool.Query(ctx, `SELECT path, value FROM rtdb_nodes`)
	if err != nil {
		return nil, fmt.Errorf("failed to load rtdb nodes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var path string
		var value json.RawMessage
		if err := rows.Scan(&path, &value); err != nil {
			return nil, fmt.Errorf("failed to scan rtdb node: %w", err)
		}
		out[path] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rtdb nodes: %w", err)
	}
	return out, nil
}

// SaveNode upserts the value at path.
func (d *DB) SaveNode(ctx context.Context, path string, value json.RawMessage) error {
	query := `
        INSERT INTO rtdb_nodes (path, value)
        VALUES ($1, $2)
        ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value`
	if _, err := d.Pool.Exec(ctx, query, path, value); err != nil {
		return fmt.Errorf("failed to save node %s: %w", path, err)
	}
	return nil
}

// DeleteSubtree removes the row at path and every row beneath it.
func (d *DB) DeleteSubtree(ctx context.Context, path string) error {
	query := `DELETE FROM rtdb_nodes WHERE path = $1 OR path LIKE $1 || '/%'`
	if _, err := d.Pool.Exec(ctx, query, path); err != nil {
		return fmt.Errorf("failed to delete subtree %s: %w", path, err)
	}
	return nil
}
