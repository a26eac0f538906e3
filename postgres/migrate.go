package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

// Migrate applies every pending migration embedded in this package.
func Migrate(ctx context.Context, dsn string, logger *zap.Logger) error {
	return runGoose(ctx, dsn, logger, func(ctx context.Context, db *sql.DB) error {
		return goose.UpContext(ctx, db, migrationsDir)
	})
}

// Rollback reverts the most recent migration.
func Rollback(ctx context.Context, dsn string, logger *zap.Logger) error {
	return runGoose(ctx, dsn, logger, func(ctx context.Context, db *sql.DB) error {
		return goose.DownContext(ctx, db, migrationsDir)
	})
}

// Status logs the applied state of every migration.
func Status(ctx context.Context, dsn string, logger *zap.Logger) error {
	return runGoose(ctx, dsn, logger, func(ctx context.Context, db *sql.DB) error {
		return goose.StatusContext(ctx, db, migrationsDir)
	})
}

// goose keeps its settings in package globals; callers run one command at a
// time.
func runGoose(ctx context.Context, dsn string, logger *zap.Logger, fn func(context.Context, *sql.DB) error) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{logger.With(zap.String("component", "migrate")).Sugar()})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	return fn(ctx, db)
}

type gooseLogger struct {
	s *zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...interface{}) { l.s.Infof(format, v...) }
func (l gooseLogger) Fatalf(format string, v ...interface{}) { l.s.Fatalf(format, v...) }
