// Package config loads bootstrap configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/example/bootstack/internal/models"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Default filesystem and service layout. Overridable via environment.
const (
	defaultBaseDir   = "/srv/appstack"
	defaultBranch    = "main"
	defaultNetwork   = "appstack"
	defaultDBService = "db"
	defaultPGHost    = "localhost"
	defaultPGPort    = 5432
)

// Parser reads configuration from environment variables, optionally seeded
// from an env file.
type Parser struct {
	v *viper.Viper
}

// NewParser creates a new configuration parser.
func NewParser() *Parser {
	v := viper.New()
	v.AutomaticEnv()
	return &Parser{v: v}
}

// Load builds the configuration from the process environment. When envFile is
// non-empty it is loaded first; variables already present in the environment
// win over file values.
func (p *Parser) Load(envFile string) (*models.BootstrapConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
		}
	}

	return p.parse()
}

func (p *Parser) parse() (*models.BootstrapConfig, error) {
	cfg := &models.BootstrapConfig{}

	cfg.Dirs = models.DirConfig{
		BaseDir: p.getString("BASE_DIR", defaultBaseDir),
		WorkDir: p.v.GetString("WORKDIR"),
	}
	if cfg.Dirs.WorkDir == "" {
		cfg.Dirs.WorkDir = filepath.Join(cfg.Dirs.BaseDir, "work")
	}

	cfg.Git = models.GitConfig{
		Token:   p.v.GetString("GIT_TOKEN"),
		BaseURL: p.v.GetString("GIT_BASE_URL"),
		Branch:  p.getString("GIT_BRANCH", defaultBranch),
	}
	if cfg.Git.BaseURL == "" {
		return nil, fmt.Errorf("GIT_BASE_URL is required")
	}
	cfg.Git.Repos = defaultRepos(cfg.Git.BaseURL)

	cfg.Storage = models.StorageConfig{
		Bucket:      p.v.GetString("STORJ_BUCKET"),
		Prefix:      p.v.GetString("STORJ_PREFIX"),
		AccessGrant: p.v.GetString("STORJ_ACCESS_GRANT"),
		Dumps: []models.DumpSpec{
			{Object: "app.dump", Database: "app"},
			{Object: "analytics.dump", Database: "analytics"},
		},
	}
	if cfg.Storage.Bucket == "" {
		return nil, fmt.Errorf("STORJ_BUCKET is required")
	}
	if cfg.Storage.AccessGrant == "" {
		return nil, fmt.Errorf("STORJ_ACCESS_GRANT is required")
	}

	cfg.Docker = models.DockerConfig{
		Network:      p.getString("DOCKER_NETWORK", defaultNetwork),
		ComposeDir:   p.getString("COMPOSE_DIR", filepath.Join(cfg.Dirs.BaseDir, "infra")),
		DBService:    p.getString("DB_SERVICE", defaultDBService),
		DBContainer:  p.v.GetString("DB_CONTAINER"),
		WaitAttempts: 30,
		WaitInterval: time.Second,
	}
	if cfg.Docker.DBContainer == "" {
		// Compose v2 default container naming: <project>-<service>-1.
		cfg.Docker.DBContainer = fmt.Sprintf("%s-%s-1", filepath.Base(cfg.Docker.ComposeDir), cfg.Docker.DBService)
	}

	pgPort := defaultPGPort
	if s := p.v.GetString("PG_PORT"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("PG_PORT must be numeric, got %q", s)
		}
		pgPort = n
	}

	cfg.Postgres = models.PostgresConfig{
		Host:          p.getString("PG_HOST", defaultPGHost),
		Port:          pgPort,
		ReadyAttempts: 60,
		ReadyInterval: time.Second,
	}

	return cfg, nil
}

// defaultRepos is the fixed repository set of the stack. The infra repo holds
// the compose manifest and must be present before anything can start; the
// frontend and worker are optional components.
func defaultRepos(baseURL string) []models.RepoSpec {
	specs := []struct {
		name     string
		required bool
	}{
		{"infra", true},
		{"api", true},
		{"frontend", false},
		{"worker", false},
	}

	repos := make([]models.RepoSpec, 0, len(specs))
	for _, s := range specs {
		repos = append(repos, models.RepoSpec{
			Name:     s.name,
			URL:      fmt.Sprintf("%s/%s.git", baseURL, s.name),
			Required: s.required,
		})
	}
	return repos
}

func (p *Parser) getString(key, fallback string) string {
	if s := p.v.GetString(key); s != "" {
		return s
	}
	return fallback
}

// Validate performs validation on a loaded configuration.
func Validate(cfg *models.BootstrapConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if cfg.Storage.Bucket == "" {
		return fmt.Errorf("STORJ_BUCKET is required")
	}
	if cfg.Storage.AccessGrant == "" {
		return fmt.Errorf("STORJ_ACCESS_GRANT is required")
	}
	if cfg.Git.BaseURL == "" {
		return fmt.Errorf("GIT_BASE_URL is required")
	}
	if len(cfg.Git.Repos) == 0 {
		return fmt.Errorf("repository set is empty")
	}
	if len(cfg.Storage.Dumps) == 0 {
		return fmt.Errorf("dump set is empty")
	}

	for _, d := range cfg.Storage.Dumps {
		if d.Database == "" {
			return fmt.Errorf("dump %s has no target database", d.Object)
		}
	}

	if _, err := os.Stat(filepath.Dir(cfg.Dirs.BaseDir)); err != nil {
		return fmt.Errorf("parent of BASE_DIR does not exist: %w", err)
	}

	return nil
}
