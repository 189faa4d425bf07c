// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tools defines the retrieval tools the answer engine can call and
// the registry that dispatches provider tool requests to them.
package tools

import (
	"context"
	"sort"

	"github.com/AleutianAI/CourseLens/services/llm"
)

// ParamDef describes one tool parameter.
type ParamDef struct {
	Type        string
	Description string
	Required    bool
}

// Definition is a provider-agnostic tool description.
type Definition struct {
	Name        string
	Description string
	Params      map[string]ParamDef
}

// Result is the outcome of a successful tool execution.
//
// Description:
//
//	Content is the text handed back to the model as the tool result.
//	Sources are the citations backing that content; they travel with the
//	result rather than being stashed on the tool, so a caller can always
//	tell which execution produced them.
type Result struct {
	Content string
	Sources []Citation
}

// Citation points a claim in an answer back to indexed course material.
type Citation struct {
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
}

// Tool is a callable retrieval capability.
//
// Description:
//
//	Definition must be stable across calls. Execute receives the
//	provider-supplied arguments already decoded from JSON. A non-nil
//	error means the tool itself faulted; domain-level misses (no matches,
//	unknown course) are reported inside Result.Content instead so the
//	model can react to them.
type Tool interface {
	Definition() Definition
	Execute(ctx context.Context, args map[string]any) (*Result, error)
}

// ToLLMDef converts a Definition to the provider wire format.
func ToLLMDef(def Definition) llm.ToolDef {
	props := make(map[string]llm.ToolParamDef, len(def.Params))
	var required []string
	for name, p := range def.Params {
		props[name] = llm.ToolParamDef{
			Type:        p.Type,
			Description: p.Description,
		}
		if p.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)

	return llm.ToolDef{
		Type: "function",
		Function: llm.ToolFunction{
			Name:        def.Name,
			Description: def.Description,
			Parameters: llm.ToolParameters{
				Type:       "object",
				Properties: props,
				Required:   required,
			},
		},
	}
}

// stringArg extracts an optional string argument.
func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// intArg extracts an optional integer argument. JSON numbers decode as
// float64; some providers also send integers as strings of digits, which
// we do not accept.
func intArg(args map[string]any, key string) *int {
	switch v := args[key].(type) {
	case float64:
		n := int(v)
		return &n
	case int:
		n := v
		return &n
	default:
		return nil
	}
}
