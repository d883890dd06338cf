// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"encoding/json"
	"errors"
)

var (
	ErrInvalidCacheSize   = errors.New("invalid session cache size")
	ErrInvalidEventLogCap = errors.New("invalid event log capacity")
)

// Config holds configuration for the game VM.
type Config struct {
	// SessionCacheSize bounds the in-memory LRU of decoded session
	// records held by each store.
	SessionCacheSize int `json:"sessionCacheSize"`

	// MaxSessionsPerOwner caps how many sessions a single owner may
	// create. Zero disables the cap; the counter itself remains the
	// only hard limit.
	MaxSessionsPerOwner uint64 `json:"maxSessionsPerOwner"`

	// IndexEvents retains emitted events in a bounded in-memory log
	// served over the API, in addition to pubsub delivery.
	IndexEvents bool `json:"indexEvents"`

	// EventLogCapacity bounds the retained event log when IndexEvents
	// is set.
	EventLogCapacity int `json:"eventLogCapacity"`

	// DefaultExecutor pins delegations that name no executor to this
	// node. Empty leaves such delegations unpinned and the fast layer
	// chooses.
	DefaultExecutor string `json:"defaultExecutor"`
}

// DefaultConfig returns a config with default values.
func DefaultConfig() Config {
	return Config{
		SessionCacheSize:    2048,
		MaxSessionsPerOwner: 0,
		IndexEvents:         true,
		EventLogCapacity:    1024,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.SessionCacheSize <= 0 {
		return ErrInvalidCacheSize
	}
	if c.IndexEvents && c.EventLogCapacity <= 0 {
		return ErrInvalidEventLogCap
	}
	return nil
}

// ParseConfig parses configuration from JSON bytes.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if len(data) == 0 {
		return cfg, nil
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
