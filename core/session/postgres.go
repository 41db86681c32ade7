package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	coreconfig "github.com/MLokatsiun/tg-bot-volunteer/core/config"
	"github.com/MLokatsiun/tg-bot-volunteer/core/logger"
	"log/slog"
)

type postgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore connects to Postgres, applies pending migrations from the
// migrations directory, and returns a Store backed by the sessions table.
func NewPostgresStore(cfg coreconfig.SessionConfig) (Store, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode,
	)

	if err := runMigrations(dsn); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		logger.Error(ctx, "session", "db.connect",
			slog.String("host", cfg.DBHost),
			slog.String("db", cfg.DBName),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("session: db connect: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)

	logger.Info(ctx, "session", "db.connect",
		slog.String("host", cfg.DBHost),
		slog.String("db", cfg.DBName),
		slog.Duration("duration", logger.Took(start)),
	)
	return &postgresStore{db: db}, nil
}

func runMigrations(dsn string) error {
	m, err := migrate.New("file://migrations", dsn)
	if err != nil {
		return fmt.Errorf("session: init migrations: %w", err)
	}
	start := time.Now()
	upErr := m.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		logger.Error(logger.Background(), "session", "db.migrate",
			slog.String("err", upErr.Error()),
		)
		return fmt.Errorf("session: migrations failed: %w", upErr)
	}
	ver, _, _ := m.Version()
	logger.Info(logger.Background(), "session", "db.migrate",
		slog.Uint64("version", uint64(ver)),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

func (p *postgresStore) Get(ctx context.Context, userID int64) (*Session, error) {
	var data []byte
	err := p.db.GetContext(ctx, &data,
		`SELECT data FROM sessions WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return New(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: select: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session: decode stored session: %w", err)
	}
	if s.State == "" {
		s.State = StateIdle
	}
	return &s, nil
}

func (p *postgresStore) Put(ctx context.Context, s *Session) error {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: encode session: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO sessions (user_id, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET data = $2, updated_at = now()`,
		s.UserID, data)
	if err != nil {
		return fmt.Errorf("session: upsert: %w", err)
	}
	return nil
}

func (p *postgresStore) Delete(ctx context.Context, userID int64) error {
	if _, err := p.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}
