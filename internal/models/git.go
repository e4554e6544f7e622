package models

import "time"

// CloneResult holds the result of syncing one repository.
type CloneResult struct {
	Repo     string
	Path     string
	Cloned   bool // false when the repo already existed and was updated
	Skipped  bool // optional repo that failed and was skipped
	Duration time.Duration
	Error    error
}
