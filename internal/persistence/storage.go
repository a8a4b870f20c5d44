// Package persistence saves and loads world snapshots by name.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"menagerie/server/internal/telemetry"
	"menagerie/server/internal/world"
)

var (
	ErrNotFound    = errors.New("persistence: world not found")
	ErrInvalidName = errors.New("persistence: invalid world name")
	ErrUnsupported = errors.New("persistence: unsupported storage url")
)

// Storage defines the interface for world persistence.
type Storage interface {
	SaveWorld(ctx context.Context, name string, snapshot *world.Snapshot) error
	LoadWorld(ctx context.Context, name string) (*world.Snapshot, error)
	Close() error
}

// Open picks a store by url scheme:
//
//	file://dir      JSON files
//	msgpack://dir   msgpack files
//	sqlite://path   gorm over sqlite
//	mysql://dsn     gorm over mysql
//	postgres://...  database/sql over lib/pq
func Open(url string, logger telemetry.Logger) (Storage, error) {
	if logger == nil {
		logger = telemetry.Discard()
	}
	switch Driver(url) {
	case "file":
		return NewFileStore(strings.TrimPrefix(url, "file://"), FormatJSON)
	case "msgpack":
		return NewFileStore(strings.TrimPrefix(url, "msgpack://"), FormatMsgpack)
	case "sqlite", "mysql":
		return NewGormStore(url, logger)
	case "postgres":
		return NewPostgresStore(url, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, url)
	}
}

// Driver names the backend Open would use for url.
func Driver(url string) string {
	switch {
	case strings.HasPrefix(url, "file://"):
		return "file"
	case strings.HasPrefix(url, "msgpack://"):
		return "msgpack"
	case strings.HasPrefix(url, "sqlite://"):
		return "sqlite"
	case strings.HasPrefix(url, "mysql://"):
		return "mysql"
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "postgres"
	default:
		return ""
	}
}

func validateName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\:`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
