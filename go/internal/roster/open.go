package roster

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/mcdev12/fieldofplay/go/internal/dbconfig"
	"github.com/mcdev12/fieldofplay/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Store is what the server needs from group storage.
type Store interface {
	Migrate(ctx context.Context) error
	SaveGroup(ctx context.Context, g *models.Group) error
	LoadGroup(ctx context.Context, id uuid.UUID) (*models.Group, error)
	ListGroups(ctx context.Context) ([]*models.Group, error)
	PersistAttemptResult(ctx context.Context, a *models.Athlete) error
}

// Open connects the configured store and applies the schema. The returned
// close function releases the connection pool.
func Open(ctx context.Context, cfg dbconfig.Config, clk clockwork.Clock) (Store, func() error, error) {
	if cfg.Driver == dbconfig.DriverMemory {
		log.Info().Msg("using in-memory group store")
		return NewMemory(), func() error { return nil }, nil
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	if cfg.Driver == dbconfig.DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := NewRepository(db, cfg.Driver, clk)
	if err := repo.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	ev := log.Info().Str("driver", cfg.Driver)
	if cfg.Driver == dbconfig.DriverSQLite {
		ev = ev.Str("path", cfg.SQLitePath)
	} else {
		ev = ev.Str("host", cfg.Host).Int("port", cfg.Port).Str("database", cfg.Database)
	}
	ev.Msg("connected to database")
	return repo, db.Close, nil
}
