package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"menagerie/server/internal/world"
)

// Format selects the on-disk encoding of a FileStore.
type Format int

const (
	FormatJSON Format = iota
	FormatMsgpack
)

func (f Format) ext() string {
	if f == FormatMsgpack {
		return ".msgpack"
	}
	return ".json"
}

// FileStore keeps one file per world under a directory.
type FileStore struct {
	dir    string
	format Format
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string, format Format) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty directory", ErrUnsupported)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStore{dir: dir, format: format}, nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+s.format.ext())
}

// SaveWorld writes the snapshot through a temporary file so a crash never
// leaves a truncated world behind.
func (s *FileStore) SaveWorld(ctx context.Context, name string, snapshot *world.Snapshot) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := s.encode(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode world %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to save world %s: %w", name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to save world %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to save world %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), s.path(name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to save world %s: %w", name, err)
	}
	return nil
}

// LoadWorld reads a world saved under name.
func (s *FileStore) LoadWorld(ctx context.Context, name string) (*world.Snapshot, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to load world %s: %w", name, err)
	}
	snapshot := new(world.Snapshot)
	if err := s.decode(data, snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode world %s: %w", name, err)
	}
	return snapshot, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) encode(snapshot *world.Snapshot) ([]byte, error) {
	if s.format == FormatMsgpack {
		return msgpack.Marshal(snapshot)
	}
	return json.MarshalIndent(snapshot, "", "  ")
}

func (s *FileStore) decode(data []byte, snapshot *world.Snapshot) error {
	if s.format == FormatMsgpack {
		return msgpack.Unmarshal(data, snapshot)
	}
	return json.Unmarshal(data, snapshot)
}
