// Package docker provides container runtime and compose operations.
package docker

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/example/bootstack/internal/models"
	"github.com/example/bootstack/internal/retry"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"
)

// Service defines the interface for container runtime operations.
type Service interface {
	EnsureNetwork(ctx context.Context, name string) (*models.NetworkResult, error)
	ContainerRunning(ctx context.Context, name string) (bool, error)
	ContainerEnv(ctx context.Context, name, key string) (string, error)
	WaitForContainer(ctx context.Context, cfg models.DockerConfig) (*models.WaitResult, error)
	ComposeUp(ctx context.Context, composeDir string, services ...string) error
}

// ContainerAPI is the subset of the Docker SDK client used here, split out
// for mocking.
type ContainerAPI interface {
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	NetworkCreate(ctx context.Context, name string, options network.CreateOptions) (network.CreateResponse, error)
}

// CommandExecutor allows mocking exec.Command in tests.
type CommandExecutor interface {
	ExecuteInDir(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

// DefaultExecutor is the default command executor using os/exec.
type DefaultExecutor struct{}

// ExecuteInDir runs a command in dir and returns its combined output.
func (e *DefaultExecutor) ExecuteInDir(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Impl implements the docker Service interface.
type Impl struct {
	api      ContainerAPI
	executor CommandExecutor
	logger   zerolog.Logger
}

// New creates a new docker service talking to the local daemon.
func New(logger zerolog.Logger) (*Impl, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}

	return &Impl{
		api:      cli,
		executor: &DefaultExecutor{},
		logger:   logger,
	}, nil
}

// NewWithClients creates a new docker service with custom clients (for testing).
func NewWithClients(logger zerolog.Logger, api ContainerAPI, executor CommandExecutor) *Impl {
	return &Impl{
		api:      api,
		executor: executor,
		logger:   logger,
	}
}

// EnsureNetwork creates the named bridge network. An already-existing network
// is reported as a non-fatal conflict so repeat runs pass through.
func (s *Impl) EnsureNetwork(ctx context.Context, name string) (*models.NetworkResult, error) {
	result := &models.NetworkResult{Name: name}

	_, err := s.api.NetworkCreate(ctx, name, network.CreateOptions{Driver: "bridge"})
	if err != nil {
		if errdefs.IsConflict(err) || strings.Contains(err.Error(), "already exists") {
			s.logger.Warn().Str("network", name).Msg("network already exists, continuing")
			return result, nil
		}
		result.Error = fmt.Errorf("creating network %s: %w", name, err)
		return result, nil //nolint:nilerr // error is stored in result struct
	}

	result.Created = true
	s.logger.Info().Str("network", name).Msg("network created")
	return result, nil
}

// ContainerRunning reports whether the named container exists and is running.
func (s *Impl) ContainerRunning(ctx context.Context, name string) (bool, error) {
	info, err := s.api.ContainerInspect(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("inspecting container %s: %w", name, err)
	}

	return info.State != nil && info.State.Running, nil
}

// ContainerEnv reads one environment variable from the container's config.
func (s *Impl) ContainerEnv(ctx context.Context, name, key string) (string, error) {
	info, err := s.api.ContainerInspect(ctx, name)
	if err != nil {
		return "", fmt.Errorf("inspecting container %s: %w", name, err)
	}

	if info.Config != nil {
		prefix := key + "="
		for _, kv := range info.Config.Env {
			if strings.HasPrefix(kv, prefix) {
				return strings.TrimPrefix(kv, prefix), nil
			}
		}
	}

	return "", fmt.Errorf("container %s has no env var %s", name, key)
}

// WaitForContainer polls until the database container is running, bounded by
// the configured attempt count.
func (s *Impl) WaitForContainer(ctx context.Context, cfg models.DockerConfig) (*models.WaitResult, error) {
	start := time.Now()
	result := &models.WaitResult{Target: cfg.DBContainer}

	s.logger.Info().
		Str("container", cfg.DBContainer).
		Int("max_attempts", cfg.WaitAttempts).
		Msg("waiting for container")

	err := retry.Poll(ctx, cfg.WaitInterval, cfg.WaitAttempts, func(ctx context.Context) error {
		result.Attempts++
		running, err := s.ContainerRunning(ctx, cfg.DBContainer)
		if err != nil {
			return err
		}
		if !running {
			return fmt.Errorf("container %s not running", cfg.DBContainer)
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
		Str("container", cfg.DBContainer).
		Int("attempts", result.Attempts).
		Dur("duration", result.Duration).
		Msg("container is running")

	return result, nil
}

// ComposeUp starts the given compose services detached; with no services it
// brings up the whole manifest. Compose itself is idempotent for services
// that are already up.
func (s *Impl) ComposeUp(ctx context.Context, composeDir string, services ...string) error {
	args := append([]string{"compose", "up", "-d"}, services...)
	s.logger.Debug().Msg(">> " + shellquote.Join(append([]string{"docker"}, args...)...))

	output, err := s.executor.ExecuteInDir(ctx, composeDir, "docker", args...)
	if err != nil {
		return fmt.Errorf("docker compose up: %w, output: %s", err, string(output))
	}

	s.logger.Info().Strs("services", services).Str("dir", composeDir).Msg("compose services started")
	return nil
}
