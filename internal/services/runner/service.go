// Package runner orchestrates the bootstrap workflow.
package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/example/bootstack/internal/models"
	"github.com/example/bootstack/internal/services/docker"
	"github.com/example/bootstack/internal/services/git"
	"github.com/example/bootstack/internal/services/postgres"
	"github.com/example/bootstack/internal/services/prereq"
	"github.com/example/bootstack/internal/services/uplink"
	"github.com/rs/zerolog"
)

// Service defines the interface for the bootstrap runner.
type Service interface {
	Run(ctx context.Context, cfg models.BootstrapConfig) error
}

// Impl implements the runner Service interface.
type Impl struct {
	prereqSvc   prereq.Service
	gitSvc      git.Service
	storageSvc  uplink.Service
	dockerSvc   docker.Service
	postgresSvc postgres.Service
	logger      zerolog.Logger

	// serviceNames reads the compose manifest; swapped in tests.
	serviceNames func(composeDir string) ([]string, error)
}

// New creates a new runner service.
func New(logger zerolog.Logger) (*Impl, error) {
	dockerSvc, err := docker.New(logger)
	if err != nil {
		return nil, err
	}

	return &Impl{
		prereqSvc:    prereq.New(logger),
		gitSvc:       git.New(logger),
		storageSvc:   uplink.New(logger),
		dockerSvc:    dockerSvc,
		postgresSvc:  postgres.New(logger),
		logger:       logger,
		serviceNames: docker.ServiceNames,
	}, nil
}

// NewWithServices creates a new runner service with custom services (for testing).
func NewWithServices(
	logger zerolog.Logger,
	prereqSvc prereq.Service,
	gitSvc git.Service,
	storageSvc uplink.Service,
	dockerSvc docker.Service,
	postgresSvc postgres.Service,
	serviceNames func(composeDir string) ([]string, error),
) *Impl {
	return &Impl{
		prereqSvc:    prereqSvc,
		gitSvc:       gitSvc,
		storageSvc:   storageSvc,
		dockerSvc:    dockerSvc,
		postgresSvc:  postgresSvc,
		logger:       logger,
		serviceNames: serviceNames,
	}
}

// Run executes the complete bootstrap workflow. Every step is idempotent, so
// a second run over a provisioned host passes straight through.
//
//nolint:gocognit,gocyclo // the bootstrap workflow has multiple steps by design
func (s *Impl) Run(ctx context.Context, cfg models.BootstrapConfig) error {
	startTime := time.Now()

	s.logger.Info().
		Str("base_dir", cfg.Dirs.BaseDir).
		Str("bucket", cfg.Storage.Bucket).
		Msg("starting bootstrap run")

	// Step 1: prerequisites.
	if err := s.prereqSvc.CheckRoot(); err != nil {
		return fmt.Errorf("prereq failed: %w", err)
	}
	if err := s.prereqSvc.EnsureTools(ctx, prereq.RequiredTools); err != nil {
		return fmt.Errorf("prereq failed: %w", err)
	}

	// Step 2: repository sync.
	if err := s.syncRepos(ctx, cfg); err != nil {
		return err
	}

	// Step 3: object-storage access must be proven before anything depends
	// on the dumps.
	if err := s.storageSvc.VerifyAccess(ctx, cfg.Storage); err != nil {
		return fmt.Errorf("storage access failed: %w", err)
	}

	// Step 4: dump download.
	available, err := s.downloadDumps(ctx, cfg)
	if err != nil {
		return err
	}

	// Step 5: network and database service.
	netResult, err := s.dockerSvc.EnsureNetwork(ctx, cfg.Docker.Network)
	if err != nil {
		return fmt.Errorf("network failed: %w", err)
	}
	if netResult.Error != nil {
		return fmt.Errorf("network failed: %w", netResult.Error)
	}

	if err := s.dockerSvc.ComposeUp(ctx, cfg.Docker.ComposeDir, cfg.Docker.DBService); err != nil {
		return fmt.Errorf("compose up %s failed: %w", cfg.Docker.DBService, err)
	}

	// Step 6: readiness.
	waitResult, err := s.dockerSvc.WaitForContainer(ctx, cfg.Docker)
	if err != nil {
		return fmt.Errorf("container wait failed: %w", err)
	}
	if waitResult.Error != nil {
		return fmt.Errorf("container %s never became ready: %w", cfg.Docker.DBContainer, waitResult.Error)
	}

	s.discoverCredentials(ctx, &cfg)

	readyResult, err := s.postgresSvc.WaitReady(ctx, cfg.Postgres, cfg.Docker.DBContainer)
	if err != nil {
		return fmt.Errorf("postgres wait failed: %w", err)
	}
	if readyResult.Error != nil {
		return fmt.Errorf("postgres never became ready: %w", readyResult.Error)
	}

	// Step 7: create and restore databases.
	if err := s.restoreDumps(ctx, cfg, available); err != nil {
		return err
	}

	// Step 8: bring up the rest of the stack.
	if err := s.startRemaining(ctx, cfg); err != nil {
		return err
	}

	s.logger.Info().
		Dur("duration", time.Since(startTime)).
		Msg("bootstrap completed successfully")

	return nil
}

// syncRepos clones or updates every configured repository. A failed required
// repo aborts the run; a failed optional repo is skipped with a warning.
func (s *Impl) syncRepos(ctx context.Context, cfg models.BootstrapConfig) error {
	for _, repo := range cfg.Git.Repos {
		destDir := filepath.Join(cfg.Dirs.BaseDir, repo.Name)

		result, err := s.gitSvc.Sync(ctx, cfg.Git, repo, destDir)
		if err != nil {
			return fmt.Errorf("repo sync failed: %w", err)
		}
		if result.Error != nil {
			if repo.Required {
				return fmt.Errorf("required repo %s: %w", repo.Name, result.Error)
			}
			s.logger.Warn().
				Err(result.Error).
				Str("repo", repo.Name).
				Msg("optional repo failed, skipping")
		}
	}

	return nil
}

// downloadDumps fetches every configured dump that exists in the bucket and
// returns the specs whose files are present locally afterwards.
func (s *Impl) downloadDumps(ctx context.Context, cfg models.BootstrapConfig) ([]models.DumpSpec, error) {
	objects, err := s.storageSvc.ListObjects(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("listing dumps failed: %w", err)
	}

	remote := make(map[string]bool, len(objects))
	for _, obj := range objects {
		remote[obj.Key] = true
	}

	var available []models.DumpSpec
	for _, dump := range cfg.Storage.Dumps {
		if !remote[dump.Object] {
			s.logger.Warn().Str("object", dump.Object).Msg("dump not present in bucket, skipping")
			continue
		}

		destPath := filepath.Join(cfg.Dirs.WorkDir, dump.Object)
		result, err := s.storageSvc.Download(ctx, cfg.Storage, dump.Object, destPath)
		if err != nil {
			return nil, fmt.Errorf("download failed: %w", err)
		}
		if result.Error != nil {
			s.logger.Warn().
				Err(result.Error).
				Str("object", dump.Object).
				Msg("dump download failed, its restore will be skipped")
			continue
		}

		available = append(available, dump)
	}

	return available, nil
}

// discoverCredentials fills superuser and password from the database
// container's environment when the config leaves them empty.
func (s *Impl) discoverCredentials(ctx context.Context, cfg *models.BootstrapConfig) {
	if cfg.Postgres.Superuser == "" {
		user, err := s.dockerSvc.ContainerEnv(ctx, cfg.Docker.DBContainer, "POSTGRES_USER")
		if err != nil {
			s.logger.Warn().Err(err).Msg("POSTGRES_USER not found in container, defaulting to postgres")
			user = "postgres"
		}
		cfg.Postgres.Superuser = user
	}

	if cfg.Postgres.Password == "" {
		password, err := s.dockerSvc.ContainerEnv(ctx, cfg.Docker.DBContainer, "POSTGRES_PASSWORD")
		if err != nil {
			s.logger.Warn().Err(err).Msg("POSTGRES_PASSWORD not found in container, verify step may fail")
		}
		cfg.Postgres.Password = password
	}
}

// restoreDumps ensures each target database exists and restores its dump.
// Restore and verify problems are warnings; a database that cannot even be
// created is terminal.
func (s *Impl) restoreDumps(ctx context.Context, cfg models.BootstrapConfig, dumps []models.DumpSpec) error {
	// The container initializes only its declared POSTGRES_DB; anything else
	// in the dump mapping exists solely because this run creates it.
	declared, err := s.dockerSvc.ContainerEnv(ctx, cfg.Docker.DBContainer, "POSTGRES_DB")
	if err != nil {
		declared = ""
	}

	for _, dump := range dumps {
		if declared != "" && dump.Database != declared {
			s.logger.Warn().
				Str("database", dump.Database).
				Str("declared", declared).
				Msg("target database not declared by container, will be created if missing")
		}
		created, err := s.postgresSvc.EnsureDatabase(ctx, cfg.Postgres, cfg.Docker.DBContainer, dump.Database)
		if err != nil {
			return fmt.Errorf("ensuring database %s: %w", dump.Database, err)
		}

		dumpPath := filepath.Join(cfg.Dirs.WorkDir, dump.Object)
		result, err := s.postgresSvc.Restore(ctx, cfg.Postgres, cfg.Docker.DBContainer, dumpPath, dump.Database)
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		result.Created = created
		if result.Error != nil {
			s.logger.Warn().
				Err(result.Error).
				Str("database", dump.Database).
				Msg("pg_restore reported errors, continuing")
			continue
		}

		count, err := s.postgresSvc.Verify(ctx, cfg.Postgres, dump.Database)
		if err != nil {
			s.logger.Warn().Err(err).Str("database", dump.Database).Msg("restore verification failed")
			continue
		}
		if count == 0 {
			s.logger.Warn().Str("database", dump.Database).Msg("restore left no tables behind")
			continue
		}

		s.logger.Info().
			Str("database", dump.Database).
			Bool("created", result.Created).
			Int("tables", count).
			Msg("database restored")
	}

	return nil
}

// startRemaining brings up every compose service besides the database. When
// the manifest cannot be read the whole stack is started instead.
func (s *Impl) startRemaining(ctx context.Context, cfg models.BootstrapConfig) error {
	services := cfg.Docker.AppServices
	if len(services) == 0 {
		names, err := s.serviceNames(cfg.Docker.ComposeDir)
		if err != nil {
			s.logger.Warn().Err(err).Msg("could not enumerate compose services, starting all")
		} else {
			for _, name := range names {
				if name != cfg.Docker.DBService {
					services = append(services, name)
				}
			}
		}
	}

	if err := s.dockerSvc.ComposeUp(ctx, cfg.Docker.ComposeDir, services...); err != nil {
		return fmt.Errorf("compose up failed: %w", err)
	}

	return nil
}
