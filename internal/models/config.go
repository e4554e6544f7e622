// Package models contains the data structures used throughout bootstack.
package models

import "time"

// BootstrapConfig holds the complete configuration for a bootstrap run.
type BootstrapConfig struct {
	Git      GitConfig
	Storage  StorageConfig
	Docker   DockerConfig
	Postgres PostgresConfig
	Dirs     DirConfig
}

// GitConfig holds repository sync configuration.
type GitConfig struct {
	Token   string // injected into clone URLs, never logged
	BaseURL string // e.g. https://github.com/acme
	Branch  string
	Repos   []RepoSpec
}

// RepoSpec describes one repository to clone or update.
type RepoSpec struct {
	Name     string
	URL      string
	Branch   string // overrides GitConfig.Branch when set
	Required bool
}

// StorageConfig holds object-storage configuration.
type StorageConfig struct {
	Bucket      string
	Prefix      string
	AccessGrant string
	Dumps       []DumpSpec
}

// DumpSpec maps a dump object in the bucket to its target database.
type DumpSpec struct {
	Object   string // object name relative to bucket/prefix
	Database string
}

// DockerConfig holds container runtime configuration.
type DockerConfig struct {
	Network      string
	ComposeDir   string   // directory containing the compose manifest, relative to BaseDir
	DBService    string   // compose service name of the database
	DBContainer  string   // container name of the database service
	AppServices  []string // services brought up after restore; empty means all
	WaitAttempts int
	WaitInterval time.Duration
}

// PostgresConfig holds database readiness and restore configuration.
type PostgresConfig struct {
	Host          string // host-side address for verification queries
	Port          int
	Superuser     string // discovered from the container env when empty
	Password      string // discovered from the container env when empty
	ReadyAttempts int
	ReadyInterval time.Duration
}

// DirConfig holds the filesystem layout.
type DirConfig struct {
	BaseDir string // repositories are cloned under here
	WorkDir string // downloaded dumps land here
}
