package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver

	"menagerie/server/internal/telemetry"
	"menagerie/server/internal/world"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS worlds (
	name TEXT PRIMARY KEY,
	version INTEGER NOT NULL,
	width INTEGER NOT NULL,
	height INTEGER NOT NULL,
	snapshot JSONB NOT NULL,
	created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
	updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
`

// PostgresStore keeps snapshots as JSONB rows.
type PostgresStore struct {
	db     *sql.DB
	logger telemetry.Logger
}

// NewPostgresStore connects and initialises the schema.
func NewPostgresStore(connectionString string, logger telemetry.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = telemetry.Discard()
	}
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &PostgresStore{db: db, logger: logger}, nil
}

func (s *PostgresStore) SaveWorld(ctx context.Context, name string, snapshot *world.Snapshot) error {
	if err := validateName(name); err != nil {
		return err
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal world %s: %w", name, err)
	}
	query := `
	INSERT INTO worlds (name, version, width, height, snapshot)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (name)
	DO UPDATE SET
		version = $2, width = $3, height = $4, snapshot = $5,
		updated_at = NOW()
	`
	if _, err := s.db.ExecContext(ctx, query, name, snapshot.Version, snapshot.Width, snapshot.Height, string(data)); err != nil {
		return fmt.Errorf("failed to save world %s: %w", name, err)
	}
	return nil
}

func (s *PostgresStore) LoadWorld(ctx context.Context, name string) (*world.Snapshot, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT snapshot FROM worlds WHERE name = $1`, name).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to load world %s: %w", name, err)
	}
	snapshot := new(world.Snapshot)
	if err := json.Unmarshal([]byte(data), snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal world %s: %w", name, err)
	}
	return snapshot, nil
}

func (s *PostgresStore) Close() error {
	s.logger.Printf("persistence: closing database connection")
	return s.db.Close()
}
