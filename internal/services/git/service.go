// Package git provides repository clone and update operations.
package git

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/example/bootstack/internal/models"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"
)

// Service defines the interface for repository sync operations.
type Service interface {
	Sync(ctx context.Context, cfg models.GitConfig, repo models.RepoSpec, destDir string) (*models.CloneResult, error)
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

// Impl implements the git Service interface.
type Impl struct {
	executor CommandExecutor
	logger   zerolog.Logger
}

// New creates a new git service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		executor: &DefaultExecutor{},
		logger:   logger,
	}
}

// NewWithExecutor creates a new git service with a custom executor (for testing).
func NewWithExecutor(logger zerolog.Logger, executor CommandExecutor) *Impl {
	return &Impl{
		executor: executor,
		logger:   logger,
	}
}

// Sync clones the repository into destDir, or updates it when a clone is
// already there. Repeat runs against an existing clone fetch and fast-forward
// instead of failing.
func (s *Impl) Sync(ctx context.Context, cfg models.GitConfig, repo models.RepoSpec, destDir string) (*models.CloneResult, error) {
	start := time.Now()
	result := &models.CloneResult{
		Repo: repo.Name,
		Path: destDir,
	}

	branch := repo.Branch
	if branch == "" {
		branch = cfg.Branch
	}

	s.logger.Info().
		Str("repo", repo.Name).
		Str("branch", branch).
		Str("dest", destDir).
		Msg("syncing repository")

	if _, err := os.Stat(filepath.Join(destDir, ".git")); err == nil {
		result.Error = s.update(ctx, destDir, branch)
	} else {
		result.Cloned = true
		result.Error = s.clone(ctx, cfg, repo, branch, destDir)
	}

	result.Duration = time.Since(start)

	if result.Error == nil {
		s.logger.Info().
			Str("repo", repo.Name).
			Bool("cloned", result.Cloned).
			Dur("duration", result.Duration).
			Msg("repository synced")
	}

	return result, nil
}

func (s *Impl) clone(ctx context.Context, cfg models.GitConfig, repo models.RepoSpec, branch, destDir string) error {
	cloneURL, err := authURL(repo.URL, cfg.Token)
	if err != nil {
		return fmt.Errorf("bad repository URL %s: %w", repo.URL, err)
	}

	if err := os.MkdirAll(filepath.Dir(destDir), 0o750); err != nil {
		return fmt.Errorf("creating clone parent directory: %w", err)
	}

	// Log the args with the credential placeholder, never the real URL.
	s.logger.Debug().Msg(">> " + shellquote.Join("git", "clone", "--branch", branch, repo.URL, destDir))

	output, err := s.executor.ExecuteInDir(ctx, "", "git", "clone", "--branch", branch, cloneURL, destDir)
	if err != nil {
		return fmt.Errorf("git clone %s: %w, output: %s", repo.Name, err, string(output))
	}

	return nil
}

func (s *Impl) update(ctx context.Context, destDir, branch string) error {
	steps := [][]string{
		{"fetch", "origin"},
		{"checkout", branch},
		{"pull", "--ff-only", "origin", branch},
	}

	for _, args := range steps {
		s.logger.Debug().Msg(">> " + shellquote.Join(append([]string{"git"}, args...)...))

		output, err := s.executor.ExecuteInDir(ctx, destDir, "git", args...)
		if err != nil {
			return fmt.Errorf("git %s: %w, output: %s", args[0], err, string(output))
		}
	}

	return nil
}

// authURL injects the access token into an https clone URL. Returns the URL
// unchanged when no token is configured.
func authURL(rawURL, token string) (string, error) {
	if token == "" {
		return rawURL, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	u.User = url.UserPassword("oauth2", token)
	return u.String(), nil
}
