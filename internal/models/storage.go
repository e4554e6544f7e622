package models

import "time"

// RemoteObject is one entry returned by listing the bucket prefix.
type RemoteObject struct {
	Key       string
	SizeBytes int64
}

// DownloadResult holds the result of downloading one dump object.
type DownloadResult struct {
	Object    string
	Path      string
	SizeBytes int64
	Skipped   bool // destination already present
	Duration  time.Duration
	Error     error
}
