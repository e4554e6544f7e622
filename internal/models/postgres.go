package models

import "time"

// RestoreResult holds the result of restoring one dump.
type RestoreResult struct {
	Database   string
	DumpPath   string
	Created    bool // database was created during this run
	Restored   bool
	TableCount int // public-schema tables found by the verify step, -1 when not verified
	Duration   time.Duration
	Error      error
}
