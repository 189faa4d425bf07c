// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/AleutianAI/CourseLens/services/llm"
	"github.com/AleutianAI/CourseLens/services/rag/tools"
)

// providerCall records one ChatWithTools invocation.
type providerCall struct {
	messages []llm.ChatMessage
	tools    []llm.ToolDef
}

// scriptedProvider replays canned responses in order.
type scriptedProvider struct {
	responses []*llm.ChatWithToolsResult
	errs      []error
	calls     []providerCall
}

func (p *scriptedProvider) Chat(_ context.Context, _ []llm.Message, _ llm.GenerationParams) (string, error) {
	return "", errors.New("not scripted")
}

func (p *scriptedProvider) ChatWithTools(_ context.Context, messages []llm.ChatMessage, _ llm.GenerationParams, defs []llm.ToolDef) (*llm.ChatWithToolsResult, error) {
	copied := make([]llm.ChatMessage, len(messages))
	copy(copied, messages)
	p.calls = append(p.calls, providerCall{messages: copied, tools: defs})

	i := len(p.calls) - 1
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	if i >= len(p.responses) {
		return nil, fmt.Errorf("unscripted provider call %d", i)
	}
	return p.responses[i], nil
}

// recordingTool is a minimal tools.Tool for engine tests.
type recordingTool struct {
	name    string
	result  *tools.Result
	err     error
	calls   int
	lastArg map[string]any
}

func (r *recordingTool) Definition() tools.Definition {
	return tools.Definition{
		Name:        r.name,
		Description: "test tool",
		Params: map[string]tools.ParamDef{
			"query": {Type: "string", Description: "q", Required: true},
		},
	}
}

func (r *recordingTool) Execute(_ context.Context, args map[string]any) (*tools.Result, error) {
	r.calls++
	r.lastArg = args
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

func textResponse(content string) *llm.ChatWithToolsResult {
	return &llm.ChatWithToolsResult{Content: content, StopReason: llm.StopReasonEnd}
}

func toolResponse(content string, calls ...llm.ToolCallResponse) *llm.ChatWithToolsResult {
	return &llm.ChatWithToolsResult{Content: content, ToolCalls: calls, StopReason: llm.StopReasonToolUse}
}

func toolCall(id, name, args string) llm.ToolCallResponse {
	return llm.ToolCallResponse{ID: id, Name: name, Arguments: json.RawMessage(args)}
}

func registryWith(t *testing.T, ts ...tools.Tool) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry()
	for _, tool := range ts {
		if err := r.Register(tool); err != nil {
			t.Fatal(err)
		}
	}
	return r
}

func TestEngine_NaturalTermination(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatWithToolsResult{
		textResponse("Paris is the capital of France."),
	}}
	engine := NewEngine(provider, registryWith(t, &recordingTool{name: "search"}), 2, llm.GenerationParams{}, nil)

	result := engine.Respond(context.Background(), "capital of France?", "")

	if result.Answer != "Paris is the capital of France." {
		t.Errorf("Answer = %q", result.Answer)
	}
	if result.Reason != TerminationNatural {
		t.Errorf("Reason = %q, want %q", result.Reason, TerminationNatural)
	}
	if result.Rounds != 0 {
		t.Errorf("Rounds = %d, want 0", result.Rounds)
	}
	if len(provider.calls) != 1 {
		t.Errorf("provider calls = %d, want 1", len(provider.calls))
	}
}

func TestEngine_SingleToolRound(t *testing.T) {
	tool := &recordingTool{
		name: "search_course_content",
		result: &tools.Result{
			Content: "[Introduction to MCP - Lesson 1]\nMCP is a protocol.",
			Sources: []tools.Citation{{Text: "Introduction to MCP - Lesson 1", Link: "https://example.com/l1"}},
		},
	}
	registry := registryWith(t, tool)

	provider := &scriptedProvider{responses: []*llm.ChatWithToolsResult{
		toolResponse("", toolCall("call_1", "search_course_content", `{"query":"What is MCP?"}`)),
		textResponse("MCP is a protocol for connecting models to tools."),
	}}
	engine := NewEngine(provider, registry, 2, llm.GenerationParams{}, nil)

	result := engine.Respond(context.Background(), "What is MCP?", "")

	if result.Answer != "MCP is a protocol for connecting models to tools." {
		t.Errorf("Answer = %q", result.Answer)
	}
	if result.Reason != TerminationNatural {
		t.Errorf("Reason = %q", result.Reason)
	}
	if result.Rounds != 1 {
		t.Errorf("Rounds = %d, want 1", result.Rounds)
	}
	if len(provider.calls) != 2 {
		t.Fatalf("provider calls = %d, want 2", len(provider.calls))
	}
	if tool.calls != 1 {
		t.Errorf("tool dispatches = %d, want 1", tool.calls)
	}
	if tool.lastArg["query"] != "What is MCP?" {
		t.Errorf("tool args = %v", tool.lastArg)
	}

	// The second call must carry the tool result in history.
	second := provider.calls[1].messages
	last := second[len(second)-1]
	if last.Role != "tool" || last.ToolCallID != "call_1" {
		t.Errorf("last message = %+v, want tool result for call_1", last)
	}
	if !strings.Contains(last.Content, "Introduction to MCP - Lesson 1") {
		t.Errorf("tool result content = %q", last.Content)
	}

	// Citations are drained from the registry, one per passage.
	sources := registry.DrainSources()
	want := tools.Citation{Text: "Introduction to MCP - Lesson 1", Link: "https://example.com/l1"}
	if len(sources) != 1 || sources[0] != want {
		t.Errorf("DrainSources() = %v, want [%v]", sources, want)
	}
}

func TestEngine_ToolsOfferedOnEveryCall(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatWithToolsResult{
		toolResponse("", toolCall("c1", "search", `{"query":"a"}`)),
		toolResponse("", toolCall("c2", "search", `{"query":"b"}`)),
		toolResponse("still digging", toolCall("c3", "search", `{"query":"c"}`)),
	}}
	tool := &recordingTool{name: "search", result: &tools.Result{Content: "hit"}}
	engine := NewEngine(provider, registryWith(t, tool), 2, llm.GenerationParams{}, nil)

	result := engine.Respond(context.Background(), "q", "")

	// maxRounds=2: two executed rounds, then the third tool request is
	// forced-terminated without another provider call.
	if len(provider.calls) != 3 {
		t.Fatalf("provider calls = %d, want 3", len(provider.calls))
	}
	for i, call := range provider.calls {
		if len(call.tools) == 0 {
			t.Errorf("call %d offered no tools", i)
		}
	}
	if tool.calls != 2 {
		t.Errorf("tool dispatches = %d, want 2", tool.calls)
	}
	if result.Reason != TerminationMaxRounds {
		t.Errorf("Reason = %q, want %q", result.Reason, TerminationMaxRounds)
	}
	// Forced termination surfaces the text that accompanied the final
	// tool request.
	if result.Answer != "still digging" {
		t.Errorf("Answer = %q, want %q", result.Answer, "still digging")
	}
}

func TestEngine_ForcedTerminationWithoutText(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatWithToolsResult{
		toolResponse("", toolCall("c1", "search", `{"query":"a"}`)),
		toolResponse("", toolCall("c2", "search", `{"query":"b"}`)),
	}}
	tool := &recordingTool{name: "search", result: &tools.Result{Content: "hit"}}
	engine := NewEngine(provider, registryWith(t, tool), 1, llm.GenerationParams{}, nil)

	result := engine.Respond(context.Background(), "q", "")

	if result.Reason != TerminationMaxRounds {
		t.Fatalf("Reason = %q", result.Reason)
	}
	if result.Answer != roundLimitMessage {
		t.Errorf("Answer = %q, want round limit message", result.Answer)
	}
	if len(provider.calls) != 2 {
		t.Errorf("provider calls = %d, want 2 for maxRounds=1", len(provider.calls))
	}
}

func TestEngine_UnknownToolIsRecoverable(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatWithToolsResult{
		toolResponse("", toolCall("c1", "imaginary_tool", `{}`)),
		textResponse("answered anyway"),
	}}
	engine := NewEngine(provider, registryWith(t, &recordingTool{name: "search", result: &tools.Result{}}), 2, llm.GenerationParams{}, nil)

	result := engine.Respond(context.Background(), "q", "")

	if result.Answer != "answered anyway" {
		t.Errorf("Answer = %q", result.Answer)
	}
	if result.Reason != TerminationNatural {
		t.Errorf("Reason = %q", result.Reason)
	}

	// The unknown-tool notice went back to the provider as tool output.
	second := provider.calls[1].messages
	last := second[len(second)-1]
	if last.Content != "Tool 'imaginary_tool' not found" {
		t.Errorf("tool result = %q", last.Content)
	}
}

func TestEngine_DispatchFaultFallsBack(t *testing.T) {
	tool := &recordingTool{name: "search", err: errors.New("index offline")}
	provider := &scriptedProvider{responses: []*llm.ChatWithToolsResult{
		toolResponse("", toolCall("c1", "search", `{"query":"q"}`)),
		textResponse("best effort answer"),
	}}
	engine := NewEngine(provider, registryWith(t, tool), 2, llm.GenerationParams{}, nil)

	result := engine.Respond(context.Background(), "q", "history line")

	if result.Answer != "best effort answer" {
		t.Errorf("Answer = %q", result.Answer)
	}
	if result.Reason != TerminationToolFailure {
		t.Errorf("Reason = %q, want %q", result.Reason, TerminationToolFailure)
	}

	if len(provider.calls) != 2 {
		t.Fatalf("provider calls = %d, want 2", len(provider.calls))
	}
	fallback := provider.calls[1]
	if fallback.tools != nil {
		t.Errorf("fallback call offered tools: %v", fallback.tools)
	}
	// The failed round's entries are excluded: only system + user remain.
	if len(fallback.messages) != 2 {
		t.Errorf("fallback history length = %d, want 2", len(fallback.messages))
	}
	for _, msg := range fallback.messages {
		if msg.Role == "assistant" || msg.Role == "tool" {
			t.Errorf("fallback history contains failed-round entry: %+v", msg)
		}
	}
}

func TestEngine_FallbackFaultYieldsApology(t *testing.T) {
	tool := &recordingTool{name: "search", err: errors.New("index offline")}
	provider := &scriptedProvider{
		responses: []*llm.ChatWithToolsResult{
			toolResponse("", toolCall("c1", "search", `{"query":"q"}`)),
			nil,
		},
		errs: []error{nil, errors.New("provider down")},
	}
	engine := NewEngine(provider, registryWith(t, tool), 2, llm.GenerationParams{}, nil)

	result := engine.Respond(context.Background(), "q", "")

	if result.Answer != toolFailureApology {
		t.Errorf("Answer = %q, want apology", result.Answer)
	}
	if result.Reason != TerminationToolFailure {
		t.Errorf("Reason = %q", result.Reason)
	}
}

func TestEngine_ProviderFaultBecomesMessage(t *testing.T) {
	provider := &scriptedProvider{errs: []error{errors.New("connection reset")}}
	engine := NewEngine(provider, registryWith(t, &recordingTool{name: "search", result: &tools.Result{}}), 2, llm.GenerationParams{}, nil)

	result := engine.Respond(context.Background(), "q", "")

	if result.Reason != TerminationProviderFault {
		t.Errorf("Reason = %q", result.Reason)
	}
	want := "I encountered an error while processing your request: connection reset"
	if result.Answer != want {
		t.Errorf("Answer = %q, want %q", result.Answer, want)
	}
}

func TestEngine_NoRegistryDegradesToPlainCall(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatWithToolsResult{
		textResponse("plain answer"),
	}}
	engine := NewEngine(provider, nil, 2, llm.GenerationParams{}, nil)

	result := engine.Respond(context.Background(), "q", "")

	if result.Answer != "plain answer" {
		t.Errorf("Answer = %q", result.Answer)
	}
	if len(provider.calls) != 1 {
		t.Fatalf("provider calls = %d, want 1", len(provider.calls))
	}
	if provider.calls[0].tools != nil {
		t.Errorf("degraded call offered tools: %v", provider.calls[0].tools)
	}
}

func TestEngine_HistoryReachesSystemPrompt(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatWithToolsResult{
		textResponse("ok"),
	}}
	engine := NewEngine(provider, registryWith(t, &recordingTool{name: "search", result: &tools.Result{}}), 2, llm.GenerationParams{}, nil)

	engine.Respond(context.Background(), "follow-up", "User: hi\nAssistant: hello")

	system := provider.calls[0].messages[0]
	if system.Role != "system" {
		t.Fatalf("messages[0].Role = %q, want system", system.Role)
	}
	if !strings.Contains(system.Content, "Previous conversation:\nUser: hi\nAssistant: hello") {
		t.Errorf("system prompt missing history:\n%s", system.Content)
	}

	user := provider.calls[0].messages[1]
	if user.Role != "user" || user.Content != "follow-up" {
		t.Errorf("messages[1] = %+v, want raw query as user turn", user)
	}
}

func TestEngine_MultipleToolCallsExecuteInOrder(t *testing.T) {
	var order []string
	mk := func(name string) *orderedTool {
		return &orderedTool{name: name, order: &order}
	}
	alpha, beta := mk("alpha"), mk("beta")

	provider := &scriptedProvider{responses: []*llm.ChatWithToolsResult{
		toolResponse("",
			toolCall("c1", "beta", `{}`),
			toolCall("c2", "alpha", `{}`),
		),
		textResponse("done"),
	}}
	engine := NewEngine(provider, registryWith(t, alpha, beta), 2, llm.GenerationParams{}, nil)

	engine.Respond(context.Background(), "q", "")

	// Execution follows the provider's emission order, not registration.
	if len(order) != 2 || order[0] != "beta" || order[1] != "alpha" {
		t.Errorf("execution order = %v, want [beta alpha]", order)
	}
}

// orderedTool appends its name to a shared slice when executed.
type orderedTool struct {
	name  string
	order *[]string
}

func (o *orderedTool) Definition() tools.Definition {
	return tools.Definition{Name: o.name, Description: "ordered", Params: map[string]tools.ParamDef{}}
}

func (o *orderedTool) Execute(_ context.Context, _ map[string]any) (*tools.Result, error) {
	*o.order = append(*o.order, o.name)
	return &tools.Result{Content: o.name + " output"}, nil
}
