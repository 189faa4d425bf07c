// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"fmt"
	"log/slog"
)

// Provider identifiers accepted by NewToolChatClient.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// ProviderConfig selects and configures a generation provider.
//
// Description:
//
//	Provider picks the backend; Model overrides the provider's default
//	model; APIKey and BaseURL override environment-based configuration.
//	Empty optional fields fall back to each client's own defaults.
type ProviderConfig struct {
	// Provider is "anthropic" or "openai".
	Provider string

	// Model is the model name. Empty uses the provider default.
	Model string

	// APIKey overrides the environment API key. Empty reads the env.
	APIKey string

	// BaseURL overrides the provider endpoint. Empty uses the public API.
	BaseURL string
}

// NewToolChatClient creates the ToolChatClient for the given provider config.
//
// Description:
//
//	Central creation point for generation providers. With an explicit
//	APIKey the client is built directly from the config; otherwise the
//	provider's environment-based constructor is used.
//
// Inputs:
//   - cfg: Provider configuration.
//
// Outputs:
//   - ToolChatClient: The configured provider client.
//   - error: Non-nil if the provider is unknown or construction fails.
//
// Thread Safety: This function is safe for concurrent use.
func NewToolChatClient(cfg ProviderConfig) (ToolChatClient, error) {
	switch cfg.Provider {
	case ProviderAnthropic:
		if cfg.APIKey != "" {
			baseURL := cfg.BaseURL
			if baseURL == "" {
				baseURL = defaultAnthropicBaseURL
			}
			return NewAnthropicClientWithConfig(cfg.APIKey, cfg.Model, baseURL), nil
		}
		client, err := NewAnthropicClient()
		if err != nil {
			return nil, fmt.Errorf("creating Anthropic client: %w", err)
		}
		if cfg.Model != "" {
			client.model = cfg.Model
		}
		return client, nil

	case ProviderOpenAI:
		if cfg.APIKey != "" {
			baseURL := cfg.BaseURL
			if baseURL == "" {
				baseURL = defaultOpenAIBaseURL
			}
			return NewOpenAIClientWithConfig(cfg.APIKey, cfg.Model, baseURL), nil
		}
		client, err := NewOpenAIClient()
		if err != nil {
			return nil, fmt.Errorf("creating OpenAI client: %w", err)
		}
		if cfg.Model != "" {
			client.model = cfg.Model
		}
		return client, nil

	default:
		slog.Error("Unknown LLM provider requested", "provider", cfg.Provider)
		return nil, fmt.Errorf("unknown LLM provider %q (supported: anthropic, openai)", cfg.Provider)
	}
}
