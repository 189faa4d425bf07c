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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAnthropicClient_Chat_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("x-api-key = %q, want %q", r.Header.Get("x-api-key"), "test-key")
		}
		if r.Header.Get("anthropic-version") != anthropicAPIVersion {
			t.Errorf("anthropic-version = %q, want %q", r.Header.Get("anthropic-version"), anthropicAPIVersion)
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Model != "claude-test" {
			t.Errorf("model = %q, want %q", req.Model, "claude-test")
		}
		if len(req.System) != 1 || req.System[0].Text != "You are a test assistant." {
			t.Errorf("system blocks = %+v, want the system message hoisted", req.System)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("messages = %+v, want single user message", req.Messages)
		}

		resp := anthropicResponse{
			ID:   "msg-123",
			Type: "message",
			Role: "assistant",
			Content: []anthropicContent{
				{Type: "text", Text: "Hello from Claude!"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewAnthropicClientWithConfig("test-key", "claude-test", server.URL)

	messages := []Message{
		{Role: "system", Content: "You are a test assistant."},
		{Role: "user", Content: "Hello"},
	}

	got, err := client.Chat(context.Background(), messages, GenerationParams{})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if got != "Hello from Claude!" {
		t.Errorf("Chat() = %q, want %q", got, "Hello from Claude!")
	}
}

func TestAnthropicClient_Chat_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer server.Close()

	client := NewAnthropicClientWithConfig("test-key", "claude-test", server.URL)

	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, GenerationParams{})
	if err == nil {
		t.Fatal("Chat() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "anthropic:") {
		t.Errorf("error should include 'anthropic:' prefix, got: %s", err)
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error should include status code, got: %s", err)
	}
}

func TestAnthropicClient_ChatWithTools_ToolUse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req anthropicToolRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if len(req.Tools) != 1 {
			t.Errorf("tools = %d, want 1", len(req.Tools))
		}
		if req.ToolChoice == nil || req.ToolChoice.Type != "auto" {
			t.Errorf("tool_choice = %+v, want auto", req.ToolChoice)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg-1",
			"type": "message",
			"role": "assistant",
			"stop_reason": "tool_use",
			"content": [
				{"type": "text", "text": "Let me search for that."},
				{"type": "tool_use", "id": "toolu_01", "name": "search_course_content",
				 "input": {"query": "What is MCP?"}}
			]
		}`))
	}))
	defer server.Close()

	client := NewAnthropicClientWithConfig("test-key", "claude-test", server.URL)

	tools := []ToolDef{{
		Type: "function",
		Function: ToolFunction{
			Name:        "search_course_content",
			Description: "Search course materials",
			Parameters:  ToolParameters{Type: "object"},
		},
	}}

	result, err := client.ChatWithTools(context.Background(),
		[]ChatMessage{{Role: "user", Content: "What is MCP?"}}, GenerationParams{}, tools)
	if err != nil {
		t.Fatalf("ChatWithTools() error = %v", err)
	}

	if result.StopReason != "tool_use" {
		t.Errorf("StopReason = %q, want tool_use", result.StopReason)
	}
	if result.Content != "Let me search for that." {
		t.Errorf("Content = %q, want the text block", result.Content)
	}
	if len(result.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %d, want 1", len(result.ToolCalls))
	}
	tc := result.ToolCalls[0]
	if tc.ID != "toolu_01" || tc.Name != "search_course_content" {
		t.Errorf("tool call = %+v, want toolu_01/search_course_content", tc)
	}
	if !strings.Contains(string(tc.Arguments), "What is MCP?") {
		t.Errorf("Arguments = %s, want the query passed through", tc.Arguments)
	}
}

func TestAnthropicClient_ChatWithTools_ToolResultRoundTrip(t *testing.T) {
	// Verify the request wire shape for an assistant tool_use turn followed
	// by a tool result turn.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("failed to decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		msgs := raw["messages"].([]any)
		if len(msgs) != 3 {
			t.Fatalf("messages = %d, want 3 (user, assistant tool_use, tool_result)", len(msgs))
		}

		assistant := msgs[1].(map[string]any)
		blocks := assistant["content"].([]any)
		last := blocks[len(blocks)-1].(map[string]any)
		if last["type"] != "tool_use" || last["id"] != "toolu_01" {
			t.Errorf("assistant content = %+v, want trailing tool_use block", last)
		}

		toolResult := msgs[2].(map[string]any)
		if toolResult["role"] != "user" {
			t.Errorf("tool result role = %v, want user", toolResult["role"])
		}
		trBlock := toolResult["content"].([]any)[0].(map[string]any)
		if trBlock["type"] != "tool_result" || trBlock["tool_use_id"] != "toolu_01" {
			t.Errorf("tool result block = %+v", trBlock)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg-2", "type": "message", "role": "assistant",
			"stop_reason": "end_turn",
			"content": [{"type": "text", "text": "MCP is the Model Context Protocol."}]
		}`))
	}))
	defer server.Close()

	client := NewAnthropicClientWithConfig("test-key", "claude-test", server.URL)

	messages := []ChatMessage{
		{Role: "user", Content: "What is MCP?"},
		{Role: "assistant", Content: "Searching.", ToolCalls: []ToolCallResponse{
			{ID: "toolu_01", Name: "search_course_content", Arguments: json.RawMessage(`{"query":"MCP"}`)},
		}},
		{Role: "tool", ToolCallID: "toolu_01", Content: "[Intro to MCP - Lesson 1]\nMCP is..."},
	}

	result, err := client.ChatWithTools(context.Background(), messages, GenerationParams{}, nil)
	if err != nil {
		t.Fatalf("ChatWithTools() error = %v", err)
	}
	if result.StopReason != "end" {
		t.Errorf("StopReason = %q, want end", result.StopReason)
	}
	if result.Content != "MCP is the Model Context Protocol." {
		t.Errorf("Content = %q", result.Content)
	}
}

func TestAnthropicClient_ChatWithTools_EmptyInputNormalized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg-1", "type": "message", "role": "assistant",
			"stop_reason": "tool_use",
			"content": [{"type": "tool_use", "id": "toolu_02", "name": "get_course_outline"}]
		}`))
	}))
	defer server.Close()

	client := NewAnthropicClientWithConfig("test-key", "claude-test", server.URL)

	result, err := client.ChatWithTools(context.Background(),
		[]ChatMessage{{Role: "user", Content: "outline please"}}, GenerationParams{}, nil)
	if err != nil {
		t.Fatalf("ChatWithTools() error = %v", err)
	}
	if got := string(result.ToolCalls[0].Arguments); got != "{}" {
		t.Errorf("missing input should normalize to {}, got %q", got)
	}
}
