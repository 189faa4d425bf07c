// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads CourseLens configuration from embedded defaults,
// an optional YAML file, and environment overrides, in that order.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultConfigYAML []byte

// Config is the full service configuration.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Provider  ProviderConfig  `yaml:"provider"`
	Engine    EngineConfig    `yaml:"engine"`
	Weaviate  WeaviateConfig  `yaml:"weaviate"`
	Session   SessionConfig   `yaml:"session"`
	Documents DocumentsConfig `yaml:"documents"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// ProviderConfig selects and tunes the generation provider.
type ProviderConfig struct {
	// Name is "anthropic" or "openai".
	Name string `yaml:"name"`

	// Model overrides the provider's default model when non-empty.
	Model string `yaml:"model"`

	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// EngineConfig tunes the answer engine.
type EngineConfig struct {
	// MaxRounds bounds tool-requesting rounds per query.
	MaxRounds int `yaml:"max_rounds"`

	// MaxSearchResults caps passages returned per content search.
	MaxSearchResults int `yaml:"max_search_results"`
}

// WeaviateConfig locates the vector index.
type WeaviateConfig struct {
	Host   string `yaml:"host"`
	Scheme string `yaml:"scheme"`
}

// SessionConfig controls conversation history storage.
type SessionConfig struct {
	// Backend is "memory" or "badger".
	Backend string `yaml:"backend"`

	// BadgerPath is the on-disk directory for the badger backend.
	BadgerPath string `yaml:"badger_path"`

	MaxExchanges int `yaml:"max_exchanges"`
	TTLHours     int `yaml:"ttl_hours"`
}

// DocumentsConfig controls startup document ingestion.
type DocumentsConfig struct {
	// Folder is scanned for course documents at startup. "" disables
	// the scan.
	Folder string `yaml:"folder"`

	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// Load builds the effective configuration.
//
// Description:
//
//	Starts from the embedded defaults, overlays the YAML file at path if
//	path is non-empty, then applies environment overrides:
//
//	    PORT, LLM_PROVIDER, LLM_MODEL, WEAVIATE_HOST, WEAVIATE_SCHEME,
//	    SESSION_BACKEND, SESSION_DB_PATH, COURSE_DOCS_DIR
//
// Outputs:
//   - *Config: Validated configuration.
//   - error: Non-nil on unreadable/unparsable file or invalid values.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultConfigYAML, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing embedded defaults: %w", err)
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.Provider.Name = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.Provider.Model = v
	}
	if v := os.Getenv("WEAVIATE_HOST"); v != "" {
		cfg.Weaviate.Host = v
	}
	if v := os.Getenv("WEAVIATE_SCHEME"); v != "" {
		cfg.Weaviate.Scheme = v
	}
	if v := os.Getenv("SESSION_BACKEND"); v != "" {
		cfg.Session.Backend = v
	}
	if v := os.Getenv("SESSION_DB_PATH"); v != "" {
		cfg.Session.BadgerPath = v
	}
	if v := os.Getenv("COURSE_DOCS_DIR"); v != "" {
		cfg.Documents.Folder = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Server.Port)
	}
	if c.Provider.Name != "anthropic" && c.Provider.Name != "openai" {
		return fmt.Errorf("config: unknown provider %q", c.Provider.Name)
	}
	if c.Engine.MaxRounds <= 0 {
		return fmt.Errorf("config: max_rounds must be positive, got %d", c.Engine.MaxRounds)
	}
	switch c.Session.Backend {
	case "memory":
	case "badger":
		if c.Session.BadgerPath == "" {
			return fmt.Errorf("config: badger session backend needs badger_path")
		}
	default:
		return fmt.Errorf("config: unknown session backend %q", c.Session.Backend)
	}
	if c.Documents.ChunkOverlap >= c.Documents.ChunkSize {
		return fmt.Errorf("config: chunk_overlap %d must be smaller than chunk_size %d",
			c.Documents.ChunkOverlap, c.Documents.ChunkSize)
	}
	return nil
}
