// Package config loads event hub settings from yaml or json files.
//
// Unlike a generic key/value layer, the decode is schema-strict: keys the
// hub does not understand are ignored, but a present key with an invalid
// value (a non-positive worker count, an unparsable duration) fails the
// load rather than silently falling back.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Hub holds the tunable event hub settings.
type Hub struct {
	// Wrapper is the wrapper framework tag ("none", "react_native", ...).
	Wrapper string

	// CompletionWorkers is the response-listener worker pool size.
	CompletionWorkers int

	// ReadinessRetryInterval is how often a deferred inbox head is
	// re-attempted absent other stimulus.
	ReadinessRetryInterval time.Duration

	// HistoryPath is the SQLite file backing the event-history index.
	// Empty disables event history.
	HistoryPath string
}

// DefaultHub provides reasonable defaults, used for every key a config
// file omits.
var DefaultHub = Hub{
	Wrapper:                "none",
	CompletionWorkers:      4,
	ReadinessRetryInterval: 100 * time.Millisecond,
}

// fileHub is the on-disk layout. Pointer fields distinguish an omitted key
// (default applies) from a present one (validated strictly):
//
//	wrapper: none
//	completion_workers: 4
//	readiness_retry_interval: 100ms
//	history:
//	  path: ./eventhistory.db
type fileHub struct {
	Wrapper                *string `yaml:"wrapper" json:"wrapper"`
	CompletionWorkers      *int    `yaml:"completion_workers" json:"completion_workers"`
	ReadinessRetryInterval *string `yaml:"readiness_retry_interval" json:"readiness_retry_interval"`
	History                struct {
		Path string `yaml:"path" json:"path"`
	} `yaml:"history" json:"history"`
}

// Load reads hub settings from a file, auto-detecting the format by
// extension. Supported extensions: .yaml, .yml, .json.
func Load(path string) (Hub, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Hub{}, fmt.Errorf("read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return Hub{}, fmt.Errorf("unsupported config file extension: %s", filepath.Ext(path))
	}
}

// FromYAML decodes hub settings from yaml.
func FromYAML(data []byte) (Hub, error) {
	var f fileHub
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Hub{}, fmt.Errorf("parse yaml: %w", err)
	}
	return f.normalize()
}

// FromJSON decodes hub settings from json.
func FromJSON(data []byte) (Hub, error) {
	var f fileHub
	if err := json.Unmarshal(data, &f); err != nil {
		return Hub{}, fmt.Errorf("parse json: %w", err)
	}
	return f.normalize()
}

// normalize applies defaults to omitted keys and validates present ones.
func (f fileHub) normalize() (Hub, error) {
	hub := DefaultHub

	if f.Wrapper != nil {
		hub.Wrapper = *f.Wrapper
	}
	if f.CompletionWorkers != nil {
		if *f.CompletionWorkers <= 0 {
			return Hub{}, fmt.Errorf("completion_workers must be positive, got %d", *f.CompletionWorkers)
		}
		hub.CompletionWorkers = *f.CompletionWorkers
	}
	if f.ReadinessRetryInterval != nil {
		d, err := time.ParseDuration(*f.ReadinessRetryInterval)
		if err != nil {
			return Hub{}, fmt.Errorf("parse readiness_retry_interval: %w", err)
		}
		if d <= 0 {
			return Hub{}, fmt.Errorf("readiness_retry_interval must be positive, got %s", d)
		}
		hub.ReadinessRetryInterval = d
	}
	hub.HistoryPath = f.History.Path

	return hub, nil
}
