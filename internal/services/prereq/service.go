// Package prereq verifies and installs the system tools the bootstrap needs.
package prereq

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/rs/zerolog"
)

// Tools required on the PATH before the workflow can run.
var RequiredTools = []string{"git", "docker", "uplink"}

// aptPackages maps a binary name to the package providing it. Binaries absent
// from this map cannot be installed automatically.
var aptPackages = map[string]string{
	"git":    "git",
	"docker": "docker.io",
}

// Service defines the interface for prerequisite checks.
type Service interface {
	CheckRoot() error
	EnsureTools(ctx context.Context, tools []string) error
}

// CommandExecutor allows mocking exec.Command in tests.
type CommandExecutor interface {
	Execute(ctx context.Context, name string, args ...string) ([]byte, error)
	LookPath(name string) (string, error)
}

// DefaultExecutor is the default command executor using os/exec.
type DefaultExecutor struct{}

// Execute runs a command and returns its combined output.
func (e *DefaultExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// LookPath searches for a binary on the PATH.
func (e *DefaultExecutor) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Impl implements the prereq Service interface.
type Impl struct {
	executor CommandExecutor
	logger   zerolog.Logger
	uid      func() int
}

// New creates a new prereq service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		executor: &DefaultExecutor{},
		logger:   logger,
		uid:      os.Getuid,
	}
}

// NewWithExecutor creates a new prereq service with a custom executor (for testing).
func NewWithExecutor(logger zerolog.Logger, executor CommandExecutor, uid func() int) *Impl {
	return &Impl{
		executor: executor,
		logger:   logger,
		uid:      uid,
	}
}

// CheckRoot fails unless the process runs as uid 0. Installing packages and
// talking to the Docker socket both need it.
func (s *Impl) CheckRoot() error {
	if uid := s.uid(); uid != 0 {
		return fmt.Errorf("must run as root, running as uid %d", uid)
	}
	return nil
}

// EnsureTools checks each binary on the PATH and installs missing ones via
// apt-get. Already-present tools are skipped, so repeat runs are no-ops.
func (s *Impl) EnsureTools(ctx context.Context, tools []string) error {
	for _, tool := range tools {
		if path, err := s.executor.LookPath(tool); err == nil {
			s.logger.Debug().Str("tool", tool).Str("path", path).Msg("tool already present")
			continue
		}

		pkg, ok := aptPackages[tool]
		if !ok {
			return fmt.Errorf("%s is not installed and has no package; install it manually", tool)
		}

		s.logger.Info().Str("tool", tool).Str("package", pkg).Msg("installing missing tool")

		output, err := s.executor.Execute(ctx, "apt-get", "install", "-y", pkg)
		if err != nil {
			return fmt.Errorf("installing %s: %w, output: %s", pkg, err, string(output))
		}

		s.logger.Info().Str("tool", tool).Msg("tool installed")
	}

	return nil
}
