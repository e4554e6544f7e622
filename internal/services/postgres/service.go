// Package postgres provides database readiness, creation, and restore
// operations against the stack's database container.
package postgres

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/example/bootstack/internal/models"
	"github.com/example/bootstack/internal/retry"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"
)

// Service defines the interface for PostgreSQL operations.
type Service interface {
	WaitReady(ctx context.Context, cfg models.PostgresConfig, container string) (*models.WaitResult, error)
	EnsureDatabase(ctx context.Context, cfg models.PostgresConfig, container, name string) (bool, error)
	Restore(ctx context.Context, cfg models.PostgresConfig, container, dumpPath, database string) (*models.RestoreResult, error)
	Verify(ctx context.Context, cfg models.PostgresConfig, database string) (int, error)
}

// CommandExecutor allows mocking exec.Command in tests.
type CommandExecutor interface {
	Execute(ctx context.Context, name string, args ...string) ([]byte, error)
	ExecuteWithStdin(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error)
}

// DefaultExecutor is the default command executor using os/exec.
type DefaultExecutor struct{}

// Execute runs a command and returns its combined output.
func (e *DefaultExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// ExecuteWithStdin runs a command with stdin attached and returns its
// combined output.
func (e *DefaultExecutor) ExecuteWithStdin(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	return cmd.CombinedOutput()
}

// Querier is the slice of a pgx pool used by the verify step.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// ConnectFunc opens a connection pool for a DSN.
type ConnectFunc func(ctx context.Context, dsn string) (Querier, error)

func defaultConnect(ctx context.Context, dsn string) (Querier, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// Impl implements the postgres Service interface.
type Impl struct {
	executor CommandExecutor
	connect  ConnectFunc
	logger   zerolog.Logger
}

// New creates a new postgres service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		executor: &DefaultExecutor{},
		connect:  defaultConnect,
		logger:   logger,
	}
}

// NewWithExecutor creates a new postgres service with custom plumbing (for testing).
func NewWithExecutor(logger zerolog.Logger, executor CommandExecutor, connect ConnectFunc) *Impl {
	return &Impl{
		executor: executor,
		connect:  connect,
		logger:   logger,
	}
}

// execArgs prefixes args for running a client tool inside the db container.
func execArgs(container string, tool string, toolArgs ...string) []string {
	args := []string{"exec", container, tool}
	return append(args, toolArgs...)
}

// WaitReady polls pg_isready inside the container until the server accepts
// connections, bounded by the configured attempt count.
func (s *Impl) WaitReady(ctx context.Context, cfg models.PostgresConfig, container string) (*models.WaitResult, error) {
	start := time.Now()
	result := &models.WaitResult{Target: container}

	s.logger.Info().
		Str("container", container).
		Int("max_attempts", cfg.ReadyAttempts).
		Msg("waiting for PostgreSQL to accept connections")

	err := retry.Poll(ctx, cfg.ReadyInterval, cfg.ReadyAttempts, func(ctx context.Context) error {
		result.Attempts++
		output, err := s.executor.Execute(ctx, "docker", execArgs(container, "pg_isready", "-U", cfg.Superuser)...)
		if err != nil {
			return fmt.Errorf("pg_isready: %w, output: %s", err, string(output))
		}
		return nil
	})

	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err
		return result, nil //nolint:nilerr // error is stored in result struct
	}

	result.Ready = true
	s.logger.Info().
		Int("attempts", result.Attempts).
		Dur("duration", result.Duration).
		Msg("PostgreSQL is ready")

	return result, nil
}

// EnsureDatabase creates the database unless it already exists. Returns true
// when this call created it.
func (s *Impl) EnsureDatabase(ctx context.Context, cfg models.PostgresConfig, container, name string) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM pg_database WHERE datname = '%s'", name)
	output, err := s.executor.Execute(ctx, "docker", execArgs(container, "psql", "-U", cfg.Superuser, "-tAc", query)...)
	if err != nil {
		return false, fmt.Errorf("checking database %s: %w, output: %s", name, err, string(output))
	}

	if strings.TrimSpace(string(output)) == "1" {
		s.logger.Info().Str("database", name).Msg("database already exists")
		return false, nil
	}

	s.logger.Info().Str("database", name).Msg("creating database")

	output, err = s.executor.Execute(ctx, "docker", execArgs(container, "createdb", "-U", cfg.Superuser, name)...)
	if err != nil {
		return false, fmt.Errorf("createdb %s: %w, output: %s", name, err, string(output))
	}

	return true, nil
}

// Restore streams the dump file into pg_restore inside the container. The
// dump is an opaque pg_dump archive; --clean --if-exists makes a re-restore
// over a populated database converge instead of erroring on every object.
func (s *Impl) Restore(ctx context.Context, cfg models.PostgresConfig, container, dumpPath, database string) (*models.RestoreResult, error) {
	start := time.Now()
	result := &models.RestoreResult{
		Database:   database,
		DumpPath:   dumpPath,
		TableCount: -1,
	}

	dump, err := os.Open(dumpPath) //nolint:gosec // path is derived from config
	if err != nil {
		result.Error = fmt.Errorf("opening dump %s: %w", dumpPath, err)
		return result, nil
	}
	defer func() { _ = dump.Close() }()

	// -i keeps stdin open for the streamed archive.
	args := []string{"exec", "-i", container, "pg_restore",
		"--no-owner", "--clean", "--if-exists",
		"-U", cfg.Superuser,
		"-d", database,
	}

	s.logger.Info().
		Str("database", database).
		Str("dump", dumpPath).
		Msg("restoring dump")
	s.logger.Debug().Msg(">> " + shellquote.Join(append([]string{"docker"}, args...)...))

	output, err := s.executor.ExecuteWithStdin(ctx, dump, "docker", args...)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = fmt.Errorf("pg_restore into %s: %w, output: %s", database, err, string(output))
		return result, nil //nolint:nilerr // error is stored in result struct
	}

	result.Restored = true
	s.logger.Info().
		Str("database", database).
		Dur("duration", result.Duration).
		Msg("dump restored")

	return result, nil
}

// Verify connects from the host and counts the public-schema tables the
// restore left behind.
func (s *Impl) Verify(ctx context.Context, cfg models.PostgresConfig, database string) (int, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		url.QueryEscape(cfg.Superuser),
		url.QueryEscape(cfg.Password),
		cfg.Host, cfg.Port, database,
	)

	pool, err := s.connect(ctx, dsn)
	if err != nil {
		return 0, fmt.Errorf("connecting to %s: %w", database, err)
	}
	defer pool.Close()

	var count int
	row := pool.QueryRow(ctx, "SELECT count(*) FROM pg_tables WHERE schemaname = 'public'")
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("counting tables in %s: %w", database, err)
	}

	s.logger.Info().Str("database", database).Int("tables", count).Msg("restore verified")
	return count, nil
}
