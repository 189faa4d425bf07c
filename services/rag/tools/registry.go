// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AleutianAI/CourseLens/services/llm"
)

// =============================================================================
// Registry
// =============================================================================

// Registry holds the tools available to the answer engine and dispatches
// provider tool requests to them.
//
// Description:
//
//	Tools are exposed to the provider in registration order. Each
//	successful dispatch records the citations that execution produced;
//	DrainSources hands them to the caller and ClearSources resets them
//	between queries so citations never leak across answers.
//
// Thread Safety: Registry is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	order   []string
	tools   map[string]Tool
	sources map[string][]Citation
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		sources: make(map[string][]Citation),
	}
}

// Register adds a tool, replacing any tool with the same name.
//
// Outputs:
//   - error: Non-nil if the tool's definition has an empty name.
func (r *Registry) Register(tool Tool) error {
	name := tool.Definition().Name
	if name == "" {
		return fmt.Errorf("tool definition has no name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
	return nil
}

// Definitions returns every registered tool in provider wire format, in
// registration order.
func (r *Registry) Definitions() []llm.ToolDef {
	r.mu.Lock()
	defer r.mu.Unlock()

	defs := make([]llm.ToolDef, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, ToLLMDef(r.tools[name].Definition()))
	}
	return defs
}

// Dispatch executes the named tool with JSON-encoded arguments.
//
// Description:
//
//	An unknown tool name is reported in the returned content rather than
//	as an error, so the model sees the mistake and can correct it on the
//	next round. Arguments that fail to decode are treated the same way.
//	A non-nil error means the tool itself faulted.
//
// Outputs:
//   - string: Tool output text for the provider.
//   - error: Non-nil only for tool execution faults.
func (r *Registry) Dispatch(ctx context.Context, name string, arguments string) (string, error) {
	r.mu.Lock()
	tool, ok := r.tools[name]
	r.mu.Unlock()

	if !ok {
		slog.Warn("Model requested unknown tool", "tool", name)
		return fmt.Sprintf("Tool '%s' not found", name), nil
	}

	args := map[string]any{}
	if arguments != "" {
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			slog.Warn("Undecodable tool arguments", "tool", name, "error", err)
			return fmt.Sprintf("Error: arguments for tool '%s' are not valid JSON", name), nil
		}
	}

	result, err := tool.Execute(ctx, args)
	if err != nil {
		return "", fmt.Errorf("tool %s: %w", name, err)
	}

	r.mu.Lock()
	r.sources[name] = result.Sources
	r.mu.Unlock()

	return result.Content, nil
}

// DrainSources returns the citations from the most recent execution of the
// first registered tool that produced any.
func (r *Registry) DrainSources() []Citation {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		if len(r.sources[name]) > 0 {
			return r.sources[name]
		}
	}
	return nil
}

// ClearSources discards all recorded citations.
func (r *Registry) ClearSources() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = make(map[string][]Citation)
}
