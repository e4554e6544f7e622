package models

import "time"

// WaitResult holds the result of a bounded readiness wait.
type WaitResult struct {
	Target   string
	Ready    bool
	Attempts int
	Duration time.Duration
	Error    error
}

// NetworkResult holds the result of ensuring a Docker network.
type NetworkResult struct {
	Name    string
	Created bool // false when the network already existed
	Error   error
}
