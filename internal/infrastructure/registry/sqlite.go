package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/specht/specht-client/internal/domain/model"
	"github.com/specht/specht-client/internal/domain/port"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS tunnel_definitions(
	name_key TEXT PRIMARY KEY,
	id TEXT NOT NULL,
	name TEXT NOT NULL,
	payload TEXT NOT NULL,
	provider_bundle_id TEXT NOT NULL,
	server_address TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteRegistry persists definitions in a local SQLite database,
// so they survive process restarts.
type SQLiteRegistry struct {
	db *sql.DB
}

// OpenSQLiteRegistry opens or creates the registry database at path
func OpenSQLiteRegistry(path string) (*SQLiteRegistry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open registry database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to registry database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply registry schema: %w", err)
	}
	return &SQLiteRegistry{db: db}, nil
}

func (r *SQLiteRegistry) List(ctx context.Context) ([]model.TunnelDefinition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, payload, provider_bundle_id, server_address, updated_at
		 FROM tunnel_definitions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	defer rows.Close()

	var out []model.TunnelDefinition
	for rows.Next() {
		var (
			def     model.TunnelDefinition
			payload string
			updated int64
		)
		if err := rows.Scan(&def.ID, &def.Name, &payload, &def.ProviderBundleID, &def.ServerAddress, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &def.Payload); err != nil {
			return nil, fmt.Errorf("corrupt payload for %s: %w", def.Name, err)
		}
		def.UpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, def)
	}
	return out, rows.Err()
}

func (r *SQLiteRegistry) Remove(ctx context.Context, def model.TunnelDefinition) error {
	query := `DELETE FROM tunnel_definitions WHERE name_key = ?`
	args := []interface{}{def.Key()}
	if def.ID != "" {
		query += ` AND id = ?`
		args = append(args, def.ID)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to remove %s: %w", def.Name, err)
	}
	return nil
}

func (r *SQLiteRegistry) Put(ctx context.Context, def model.TunnelDefinition) error {
	payload, err := json.Marshal(def.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload for %s: %w", def.Name, err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO tunnel_definitions(name_key, id, name, payload, provider_bundle_id, server_address, updated_at)
		 VALUES(?,?,?,?,?,?,?)
		 ON CONFLICT(name_key) DO UPDATE SET
			id = excluded.id,
			name = excluded.name,
			payload = excluded.payload,
			provider_bundle_id = excluded.provider_bundle_id,
			server_address = excluded.server_address,
			updated_at = excluded.updated_at`,
		def.Key(), def.ID, def.Name, string(payload), def.ProviderBundleID, def.ServerAddress, def.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", def.Name, err)
	}
	return nil
}

func (r *SQLiteRegistry) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Ensure SQLiteRegistry implements port.TunnelRegistry
var _ port.TunnelRegistry = (*SQLiteRegistry)(nil)
