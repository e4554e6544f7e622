// Package uplink wraps the Storj uplink CLI for bucket access.
package uplink

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/example/bootstack/internal/models"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"
)

// Service defines the interface for object-storage operations.
type Service interface {
	VerifyAccess(ctx context.Context, cfg models.StorageConfig) error
	ListObjects(ctx context.Context, cfg models.StorageConfig) ([]models.RemoteObject, error)
	Download(ctx context.Context, cfg models.StorageConfig, object, destPath string) (*models.DownloadResult, error)
}

// CommandExecutor allows mocking exec.Command in tests.
type CommandExecutor interface {
	Execute(ctx context.Context, name string, args ...string) ([]byte, error)
}

// DefaultExecutor is the default command executor using os/exec.
type DefaultExecutor struct{}

// Execute runs a command and returns its combined output.
func (e *DefaultExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// Impl implements the uplink Service interface.
type Impl struct {
	executor CommandExecutor
	logger   zerolog.Logger
}

// New creates a new uplink service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		executor: &DefaultExecutor{},
		logger:   logger,
	}
}

// NewWithExecutor creates a new uplink service with a custom executor (for testing).
func NewWithExecutor(logger zerolog.Logger, executor CommandExecutor) *Impl {
	return &Impl{
		executor: executor,
		logger:   logger,
	}
}

// remotePrefix builds the sj:// URL of the configured bucket prefix.
func remotePrefix(cfg models.StorageConfig) string {
	if cfg.Prefix == "" {
		return fmt.Sprintf("sj://%s", cfg.Bucket)
	}
	return fmt.Sprintf("sj://%s/%s", cfg.Bucket, strings.Trim(cfg.Prefix, "/"))
}

// VerifyAccess lists the bucket prefix to prove the access grant works before
// anything depends on it.
func (s *Impl) VerifyAccess(ctx context.Context, cfg models.StorageConfig) error {
	remote := remotePrefix(cfg)
	s.logger.Info().Str("remote", remote).Msg("verifying object-storage access")

	output, err := s.executor.Execute(ctx, "uplink", "ls", "--access", cfg.AccessGrant, remote)
	if err != nil {
		return fmt.Errorf("uplink access to %s could not be verified: %w, output: %s", remote, err, string(output))
	}

	s.logger.Info().Str("remote", remote).Msg("object-storage access verified")
	return nil
}

// ListObjects returns the objects under the configured bucket prefix.
func (s *Impl) ListObjects(ctx context.Context, cfg models.StorageConfig) ([]models.RemoteObject, error) {
	remote := remotePrefix(cfg)
	s.logger.Debug().Msg(">> " + shellquote.Join("uplink", "ls", remote))

	output, err := s.executor.Execute(ctx, "uplink", "ls", "--access", cfg.AccessGrant, remote)
	if err != nil {
		return nil, fmt.Errorf("uplink ls %s: %w, output: %s", remote, err, string(output))
	}

	return parseList(output), nil
}

// parseList parses `uplink ls` output. Object lines look like:
//
//	OBJ 2024-03-01 10:12:33 52428800 app.dump
func parseList(output []byte) []models.RemoteObject {
	var objects []models.RemoteObject

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 || fields[0] != "OBJ" {
			continue
		}

		size, err := strconv.ParseInt(fields[3], 10, 64)
		if err != nil {
			size = 0
		}

		objects = append(objects, models.RemoteObject{
			Key:       strings.Join(fields[4:], " "),
			SizeBytes: size,
		})
	}

	return objects
}

// Download copies one object to destPath. An existing non-empty destination
// is kept as-is so repeat runs do not re-transfer dumps.
func (s *Impl) Download(ctx context.Context, cfg models.StorageConfig, object, destPath string) (*models.DownloadResult, error) {
	start := time.Now()
	result := &models.DownloadResult{
		Object: object,
		Path:   destPath,
	}

	if info, err := os.Stat(destPath); err == nil && info.Size() > 0 {
		s.logger.Info().Str("object", object).Str("path", destPath).Msg("dump already downloaded, skipping")
		result.Skipped = true
		result.SizeBytes = info.Size()
		return result, nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
		result.Error = fmt.Errorf("creating download directory: %w", err)
		return result, nil
	}

	source := remotePrefix(cfg) + "/" + object
	s.logger.Info().Str("source", source).Str("dest", destPath).Msg("downloading dump")

	output, err := s.executor.Execute(ctx, "uplink", "cp", "--access", cfg.AccessGrant, source, destPath)
	if err != nil {
		_ = os.Remove(destPath)
		result.Error = fmt.Errorf("uplink cp %s: %w, output: %s", source, err, string(output))
		result.Duration = time.Since(start)
		return result, nil //nolint:nilerr // error is stored in result struct
	}

	if info, err := os.Stat(destPath); err == nil {
		result.SizeBytes = info.Size()
	}
	result.Duration = time.Since(start)

	s.logger.Info().
		Str("object", object).
		Int64("size_bytes", result.SizeBytes).
		Dur("duration", result.Duration).
		Msg("dump downloaded")

	return result, nil
}
