package db

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	_ "github.com/lib/pq" // database/sql driver for database.driver=pq
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/TravBots/hammer-tracker/config"
	"github.com/TravBots/hammer-tracker/models"
)

// Sentinel errors.
var (
	ErrInvalidGuild   = errors.New("invalid guild id")
	ErrUnknownDialect = errors.New("unknown database dialect")
	ErrClosed         = errors.New("registry closed")
)

var guildPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

// ValidGuildID reports whether id can name a partition.
func ValidGuildID(id string) bool {
	return guildPattern.MatchString(id)
}

// Open opens a GORM connection for the configured dialect and migrates the
// snapshot table. For sqlite, path is the database file.
func Open(cfg config.DatabaseConfig, path string) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Dialect {
	case config.DialectSQLite:
		dialector = sqlite.Open(path + "?_busy_timeout=5000")
	case config.DialectPostgres:
		if cfg.Driver == config.DriverPQ {
			dialector = postgres.New(postgres.Config{DriverName: "postgres", DSN: cfg.DSN})
		} else {
			dialector = postgres.Open(cfg.DSN)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, cfg.Dialect)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(gdb); err != nil {
		return nil, err
	}

	return gdb, nil
}

// Migrate creates or updates the snapshot table and its indexes.
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(&models.Snapshot{}); err != nil {
		return fmt.Errorf("failed to migrate snapshots: %w", err)
	}

	return nil
}

// Close closes the underlying sql.DB of gdb.
func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// Registry hands out one snapshot store per guild. With sqlite every guild
// gets its own database file under the data directory; with postgres all
// guilds share one connection and every query is scoped by guild id.
type Registry struct {
	cfg    config.DatabaseConfig
	logger *slog.Logger

	mu      sync.Mutex
	handles map[string]*gorm.DB
	shared  *gorm.DB
	closed  bool
}

// NewRegistry prepares the storage backend described by cfg.
func NewRegistry(cfg config.DatabaseConfig, logger *slog.Logger) (*Registry, error) {
	r := &Registry{
		cfg:     cfg,
		logger:  logger.With("component", "db"),
		handles: map[string]*gorm.DB{},
	}

	switch cfg.Dialect {
	case config.DialectSQLite:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	case config.DialectPostgres:
		gdb, err := Open(cfg, "")
		if err != nil {
			return nil, err
		}

		r.shared = gdb
		r.logger.Info("connected to postgres", "driver", cfg.Driver)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, cfg.Dialect)
	}

	return r, nil
}

// Store returns the snapshot store of guildID, opening its database on first use.
func (r *Registry) Store(guildID string) (*SnapshotStore, error) {
	if !ValidGuildID(guildID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGuild, guildID)
	}

	gdb, err := r.handle(guildID)
	if err != nil {
		return nil, err
	}

	return NewSnapshotStore(gdb, guildID), nil
}

func (r *Registry) handle(guildID string) (*gorm.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}

	if r.shared != nil {
		return r.shared, nil
	}

	if gdb, ok := r.handles[guildID]; ok {
		return gdb, nil
	}

	path := filepath.Join(r.cfg.DataDir, guildID+".db")

	gdb, err := Open(r.cfg, path)
	if err != nil {
		return nil, fmt.Errorf("guild %s: %w", guildID, err)
	}

	r.handles[guildID] = gdb
	r.logger.Info("opened guild database", "guild_id", guildID, "path", path)

	return gdb, nil
}

// Close closes every open handle.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true

	var errs []error
	for id, gdb := range r.handles {
		if err := Close(gdb); err != nil {
			errs = append(errs, fmt.Errorf("guild %s: %w", id, err))
		}
	}

	if err := Close(r.shared); err != nil {
		errs = append(errs, err)
	}

	r.handles = map[string]*gorm.DB{}
	r.shared = nil

	return errors.Join(errs...)
}
