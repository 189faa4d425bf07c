// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides provider-agnostic LLM clients for text generation
// and native function calling. Each provider (Anthropic, OpenAI) speaks its
// own wire protocol via raw net/http; the rest of the system only sees the
// generic types in this package.
package llm

import "context"

// Message is a plain conversation message without tool metadata.
//
// Description:
//
//	Used for simple chat requests (no function calling). Tool-aware
//	requests use ChatMessage instead, which carries tool call IDs.
//
// Thread Safety: Message is immutable and safe for concurrent read access.
type Message struct {
	// Role is "system", "user", or "assistant".
	Role string `json:"role"`

	// Content is the text content.
	Content string `json:"content"`
}

// GenerationParams holds provider-agnostic generation parameters.
//
// Description:
//
//	All fields are optional. Nil pointer fields are omitted from the wire
//	request so the provider's defaults apply.
//
// Thread Safety: GenerationParams is safe for concurrent read access.
type GenerationParams struct {
	// Temperature controls randomness. 0 is most deterministic.
	Temperature *float32

	// TopP is the nucleus sampling cutoff.
	TopP *float32

	// TopK limits sampling to the top K tokens (Anthropic only).
	TopK *int

	// MaxTokens limits the response length.
	MaxTokens *int

	// Stop lists stop sequences.
	Stop []string

	// ModelOverride selects a different model for this request only.
	ModelOverride string
}

// ToolChatClient is the generation-provider boundary used by the RAG
// orchestration engine.
//
// Description:
//
//	Chat covers the degraded no-tools path; ChatWithTools is the full
//	boundary: message history plus optional capability descriptions in,
//	text and/or tool-invocation requests out.
//
// Thread Safety: Implementations must be safe for concurrent use.
type ToolChatClient interface {
	// Chat sends plain messages and returns the assistant's response text.
	Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error)

	// ChatWithTools sends tool-aware messages with optional tool
	// definitions and returns content and/or tool calls.
	ChatWithTools(ctx context.Context, messages []ChatMessage, params GenerationParams, tools []ToolDef) (*ChatWithToolsResult, error)
}
