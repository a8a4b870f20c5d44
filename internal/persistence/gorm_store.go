package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/vmihailenco/msgpack/v5"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"menagerie/server/internal/telemetry"
	"menagerie/server/internal/world"
)

// WorldGorm is one saved world. Data holds the msgpack encoded snapshot.
type WorldGorm struct {
	Name      string    `gorm:"column:name;primaryKey;size:128"`
	Version   int       `gorm:"column:version"`
	Width     int       `gorm:"column:width"`
	Height    int       `gorm:"column:height"`
	Data      []byte    `gorm:"column:data"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (WorldGorm) TableName() string {
	return "world"
}

// GormStore persists worlds through gorm over sqlite or mysql.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens a sqlite:// or mysql:// url and migrates the schema.
func NewGormStore(url string, logger telemetry.Logger) (*GormStore, error) {
	if logger == nil {
		logger = telemetry.Discard()
	}
	cfg := &gorm.Config{
		Logger: gormlogger.New(logger, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}
	var (
		db  *gorm.DB
		err error
	)
	switch {
	case strings.HasPrefix(url, "mysql://"):
		db, err = gorm.Open(mysql.Open(strings.TrimPrefix(url, "mysql://")), cfg)
		if err != nil {
			return nil, fmt.Errorf("gorm open error: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("sql db open error: %w", err)
		}
		sqlDB.SetMaxIdleConns(4)
		sqlDB.SetMaxOpenConns(16)
		sqlDB.SetConnMaxLifetime(time.Hour)
	case strings.HasPrefix(url, "sqlite://"):
		db, err = gorm.Open(sqlite.Open(strings.TrimPrefix(url, "sqlite://")), cfg)
		if err != nil {
			return nil, fmt.Errorf("gorm open error: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, url)
	}
	if err := db.AutoMigrate(new(WorldGorm)); err != nil {
		return nil, fmt.Errorf("auto migrate error: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) SaveWorld(ctx context.Context, name string, snapshot *world.Snapshot) error {
	if err := validateName(name); err != nil {
		return err
	}
	data, err := msgpack.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode world %s: %w", name, err)
	}
	row := &WorldGorm{
		Name:      name,
		Version:   snapshot.Version,
		Width:     snapshot.Width,
		Height:    snapshot.Height,
		Data:      data,
		UpdatedAt: time.Now(),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to save world %s: %w", name, err)
	}
	return nil
}

func (s *GormStore) LoadWorld(ctx context.Context, name string) (*world.Snapshot, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	row := new(WorldGorm)
	err := s.db.WithContext(ctx).Where("name = ?", name).First(row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to load world %s: %w", name, err)
	}
	snapshot := new(world.Snapshot)
	if err := msgpack.Unmarshal(row.Data, snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode world %s: %w", name, err)
	}
	return snapshot, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
