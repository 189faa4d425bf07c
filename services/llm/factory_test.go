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
	"strings"
	"testing"
)

func TestNewToolChatClient_Anthropic(t *testing.T) {
	client, err := NewToolChatClient(ProviderConfig{
		Provider: ProviderAnthropic,
		Model:    "claude-test",
		APIKey:   "test-key",
	})
	if err != nil {
		t.Fatalf("NewToolChatClient() error = %v", err)
	}
	ac, ok := client.(*AnthropicClient)
	if !ok {
		t.Fatalf("client type = %T, want *AnthropicClient", client)
	}
	if ac.model != "claude-test" {
		t.Errorf("model = %q, want claude-test", ac.model)
	}
	if ac.baseURL != defaultAnthropicBaseURL {
		t.Errorf("baseURL = %q, want default", ac.baseURL)
	}
}

func TestNewToolChatClient_OpenAI_BaseURLOverride(t *testing.T) {
	client, err := NewToolChatClient(ProviderConfig{
		Provider: ProviderOpenAI,
		Model:    "gpt-test",
		APIKey:   "test-key",
		BaseURL:  "http://localhost:9999/v1/chat/completions",
	})
	if err != nil {
		t.Fatalf("NewToolChatClient() error = %v", err)
	}
	oc, ok := client.(*OpenAIClient)
	if !ok {
		t.Fatalf("client type = %T, want *OpenAIClient", client)
	}
	if oc.baseURL != "http://localhost:9999/v1/chat/completions" {
		t.Errorf("baseURL = %q, want override", oc.baseURL)
	}
}

func TestNewToolChatClient_UnknownProvider(t *testing.T) {
	_, err := NewToolChatClient(ProviderConfig{Provider: "watsonx"})
	if err == nil {
		t.Fatal("NewToolChatClient() expected error for unknown provider")
	}
	if !strings.Contains(err.Error(), "watsonx") {
		t.Errorf("error = %v, want provider named", err)
	}
}
