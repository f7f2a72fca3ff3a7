package postgres

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect opens a PostgreSQL connection via GORM and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres DSN is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "open gorm")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}
	return db, nil
}

// NewPool opens the pgx pool the outbox relay locks batches through.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse postgres dsn")
	}
	cfg.MaxConns = 4
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "open pgx pool")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping pgx pool")
	}
	return pool, nil
}

// Handles bundles both client styles over one database.
type Handles struct {
	DB   *gorm.DB
	Pool *pgxpool.Pool
}

// Open connects GORM and the pgx pool. An empty dsn selects the in-memory
// stores and returns nil handles; a dsn that cannot be reached is an error.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Handles, func(), error) {
	if strings.TrimSpace(dsn) == "" {
		if logger != nil {
			logger.Warn("postgres DSN not set, using in-memory stores")
		}
		return nil, func() {}, nil
	}
	db, err := Connect(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	pool, err := NewPool(ctx, dsn)
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, nil, err
	}
	if logger != nil {
		logger.Info("postgres connection established")
	}
	cleanup := func() {
		pool.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return &Handles{DB: db, Pool: pool}, cleanup, nil
}
