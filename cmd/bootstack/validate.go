package main

import (
	"fmt"
	"os"

	"github.com/example/bootstack/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the environment configuration",
	Long:  `Load the environment (and optional env file) and validate it without provisioning anything.`,
	RunE:  validateConfig,
}

func validateConfig(cmd *cobra.Command, args []string) error {
	file := envFile
	if file != "" {
		if _, err := os.Stat(file); os.IsNotExist(err) {
			log.Error().Str("file", file).Msg("env file not found")
			return fmt.Errorf("env file not found: %s", file)
		}
	}

	// Load configuration
	parser := config.NewParser()
	cfg, err := parser.Load(file)
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
		return err
	}

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("configuration validation failed")
		return err
	}

	// Print configuration summary
	fmt.Println("Configuration is valid!")
	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  Base dir: %s\n", cfg.Dirs.BaseDir)
	fmt.Printf("  Work dir: %s\n", cfg.Dirs.WorkDir)
	fmt.Printf("  Branch: %s\n", cfg.Git.Branch)
	fmt.Printf("  Git token: %v\n", cfg.Git.Token != "")
	fmt.Println()
	fmt.Println("Repositories:")
	for _, repo := range cfg.Git.Repos {
		kind := "optional"
		if repo.Required {
			kind = "required"
		}
		fmt.Printf("  %s (%s): %s\n", repo.Name, kind, repo.URL)
	}
	fmt.Println()
	fmt.Println("Object Storage:")
	fmt.Printf("  Bucket: %s\n", cfg.Storage.Bucket)
	fmt.Printf("  Prefix: %s\n", cfg.Storage.Prefix)
	fmt.Printf("  Access grant: (configured)\n")
	fmt.Println()
	fmt.Println("Dumps:")
	for _, dump := range cfg.Storage.Dumps {
		fmt.Printf("  %s -> database %s\n", dump.Object, dump.Database)
	}
	fmt.Println()
	fmt.Println("Docker:")
	fmt.Printf("  Network: %s\n", cfg.Docker.Network)
	fmt.Printf("  Compose dir: %s\n", cfg.Docker.ComposeDir)
	fmt.Printf("  DB service: %s\n", cfg.Docker.DBService)
	fmt.Printf("  DB container: %s\n", cfg.Docker.DBContainer)
	fmt.Println()
	fmt.Println("PostgreSQL:")
	fmt.Printf("  Host: %s\n", cfg.Postgres.Host)
	fmt.Printf("  Port: %d\n", cfg.Postgres.Port)
	fmt.Printf("  Readiness: %d attempts at %s\n", cfg.Postgres.ReadyAttempts, cfg.Postgres.ReadyInterval)

	return nil
}
