// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_EmbeddedDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Provider.Name != "anthropic" {
		t.Errorf("Provider.Name = %q, want anthropic", cfg.Provider.Name)
	}
	if cfg.Engine.MaxRounds != 2 {
		t.Errorf("Engine.MaxRounds = %d, want 2", cfg.Engine.MaxRounds)
	}
	if cfg.Session.Backend != "memory" {
		t.Errorf("Session.Backend = %q, want memory", cfg.Session.Backend)
	}
	if cfg.Documents.ChunkSize != 800 || cfg.Documents.ChunkOverlap != 100 {
		t.Errorf("Documents chunking = %d/%d, want 800/100",
			cfg.Documents.ChunkSize, cfg.Documents.ChunkOverlap)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "server:\n  port: 9090\nprovider:\n  name: openai\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Provider.Name != "openai" {
		t.Errorf("Provider.Name = %q, want openai", cfg.Provider.Name)
	}
	// Untouched sections keep their defaults.
	if cfg.Engine.MaxRounds != 2 {
		t.Errorf("Engine.MaxRounds = %d, want default 2", cfg.Engine.MaxRounds)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("WEAVIATE_HOST", "weaviate:8080")
	t.Setenv("PORT", "7070")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider.Name != "openai" {
		t.Errorf("Provider.Name = %q, want openai", cfg.Provider.Name)
	}
	if cfg.Weaviate.Host != "weaviate:8080" {
		t.Errorf("Weaviate.Host = %q", cfg.Weaviate.Host)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad provider", "provider:\n  name: gemini\n"},
		{"bad port", "server:\n  port: -1\n"},
		{"bad rounds", "engine:\n  max_rounds: 0\n"},
		{"badger without path", "session:\n  backend: badger\n"},
		{"overlap exceeds chunk", "documents:\n  chunk_size: 100\n  chunk_overlap: 200\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Errorf("Load() error = nil, want validation failure")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load() error = nil, want read failure")
	}
}
