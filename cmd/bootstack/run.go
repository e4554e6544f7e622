package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/bootstack/internal/config"
	"github.com/example/bootstack/internal/services/runner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// defaultEnvFile is picked up when present and no --env-file was given.
const defaultEnvFile = "bootstrap.env"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the bootstrap workflow",
	Long: `Execute the complete bootstrap workflow:
1. Verify root and install missing tools
2. Clone or update the stack repositories
3. Verify object-storage access and download dumps
4. Ensure the Docker network and start the database service
5. Wait for the container and for PostgreSQL readiness
6. Create missing databases and restore the dumps
7. Start the remaining compose services`,
	RunE: runBootstrap,
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	file := envFile
	if file == "" {
		if _, err := os.Stat(defaultEnvFile); err == nil {
			file = defaultEnvFile
		}
	}

	// Load configuration
	parser := config.NewParser()
	cfg, err := parser.Load(file)
	if err != nil {
		log.Error().Err(err).Str("env_file", file).Msg("failed to load config")
		return err
	}

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return err
	}

	log.Info().
		Str("base_dir", cfg.Dirs.BaseDir).
		Str("bucket", cfg.Storage.Bucket).
		Str("branch", cfg.Git.Branch).
		Msg("configuration loaded")

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("received signal, shutting down")
		cancel()
	}()

	// Run bootstrap
	runnerSvc, err := runner.New(log.Logger)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize")
		return err
	}
	if err := runnerSvc.Run(ctx, *cfg); err != nil {
		log.Error().Err(err).Msg("bootstrap failed")
		return err
	}

	log.Info().Msg("bootstrap completed successfully")
	return nil
}
