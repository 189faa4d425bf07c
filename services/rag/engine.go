// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rag drives user questions through bounded multi-round
// tool-calling generation and assembles cited answers.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/CourseLens/services/llm"
	"github.com/AleutianAI/CourseLens/services/rag/tools"
)

// engineTracerName is the OTel tracer name for engine spans.
const engineTracerName = "courselens.engine"

// DefaultMaxRounds bounds how many tool-requesting provider responses one
// query may consume.
const DefaultMaxRounds = 2

// TerminationReason says why the engine stopped.
type TerminationReason string

const (
	// TerminationNatural: the provider answered without requesting tools.
	TerminationNatural TerminationReason = "natural"

	// TerminationMaxRounds: the round budget ran out while the provider
	// still wanted tools.
	TerminationMaxRounds TerminationReason = "max_rounds_reached"

	// TerminationToolFailure: a tool faulted mid-round and the fallback
	// path produced the answer.
	TerminationToolFailure TerminationReason = "tool_failure"

	// TerminationProviderFault: a provider call failed and the answer is
	// the user-facing failure message.
	TerminationProviderFault TerminationReason = "provider_fault"
)

// engineState is the engine's position in the per-query state machine.
type engineState int

const (
	stateAwaitingProvider engineState = iota
	stateExecutingTools
	stateDone
)

// User-facing terminal messages. These are answers, not errors; the
// engine never lets a fault escape as an exception to its caller.
const (
	roundLimitMessage    = "I wasn't able to finish researching your question within the allowed number of retrieval rounds. Please try asking a more specific question."
	toolFailureApology   = "I'm sorry, I ran into a problem while looking that up. Please try again."
	providerFaultMessage = "I encountered an error while processing your request: %s"
)

// EngineResult is the outcome of one query through the engine.
type EngineResult struct {
	Answer string
	Reason TerminationReason

	// Rounds is how many provider responses requested tools.
	Rounds int

	// ProviderCalls counts every provider call made, including the
	// fallback call on the tool-failure path.
	ProviderCalls int
}

// Engine runs the bounded multi-round tool-calling loop.
//
// Description:
//
//	One Respond call drives one query: offer the registry's tools to the
//	provider, execute whatever it requests, feed results back, and repeat
//	until the provider answers in plain text or the round budget runs
//	out. All provider and tool faults terminate in a readable sentence;
//	Respond itself never returns an error.
//
// Thread Safety: Engine is safe for concurrent use; per-query state is
// local to each Respond call.
type Engine struct {
	client    llm.ToolChatClient
	registry  *tools.Registry
	maxRounds int
	params    llm.GenerationParams
	logger    *slog.Logger
}

// NewEngine creates an Engine.
//
// Inputs:
//   - client: Generation provider. Required.
//   - registry: Tool registry. May be nil; the engine then degrades to
//     plain single-call generation.
//   - maxRounds: Tool-round budget. 0 uses DefaultMaxRounds.
func NewEngine(client llm.ToolChatClient, registry *tools.Registry, maxRounds int, params llm.GenerationParams, logger *slog.Logger) *Engine {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		client:    client,
		registry:  registry,
		maxRounds: maxRounds,
		params:    params,
		logger:    logger,
	}
}

// Respond answers one query, using history as prior conversation context.
//
// Outputs:
//   - EngineResult: Always carries a non-empty Answer. Faults inside the
//     loop surface as Answer text with the matching Reason, never as an
//     error to the caller.
func (e *Engine) Respond(ctx context.Context, query, history string) EngineResult {
	ctx, span := otel.Tracer(engineTracerName).Start(ctx, "engine.respond")
	defer span.End()

	var defs []llm.ToolDef
	if e.registry != nil {
		defs = e.registry.Definitions()
	}

	messages := []llm.ChatMessage{
		{Role: "system", Content: historySection(history)},
		{Role: "user", Content: query},
	}

	// With no tools to offer, a single plain call is the whole query.
	if len(defs) == 0 {
		text, err := e.plainCall(ctx, messages)
		result := EngineResult{Answer: text, Reason: TerminationNatural, ProviderCalls: 1}
		if err != nil {
			result.Answer = fmt.Sprintf(providerFaultMessage, err)
			result.Reason = TerminationProviderFault
		}
		span.SetAttributes(attribute.String("termination", string(result.Reason)))
		return result
	}

	result := e.toolLoop(ctx, messages, defs)
	span.SetAttributes(
		attribute.String("termination", string(result.Reason)),
		attribute.Int("rounds", result.Rounds),
		attribute.Int("provider_calls", result.ProviderCalls),
	)
	observeQuery(string(result.Reason), result.Rounds)
	return result
}

// toolLoop is the state machine proper.
func (e *Engine) toolLoop(ctx context.Context, messages []llm.ChatMessage, defs []llm.ToolDef) EngineResult {
	state := stateAwaitingProvider
	rounds := 0
	providerCalls := 0

	var current *llm.ChatWithToolsResult

	for state != stateDone {
		switch state {
		case stateAwaitingProvider:
			resp, err := e.client.ChatWithTools(ctx, messages, e.params, defs)
			providerCalls++
			if err != nil {
				e.logger.Error("Provider call failed",
					slog.Int("round", rounds),
					slog.String("error", err.Error()),
				)
				return EngineResult{
					Answer:        fmt.Sprintf(providerFaultMessage, err),
					Reason:        TerminationProviderFault,
					Rounds:        rounds,
					ProviderCalls: providerCalls,
				}
			}
			current = resp

			if resp.StopReason != llm.StopReasonToolUse || len(resp.ToolCalls) == 0 {
				return EngineResult{
					Answer:        resp.Content,
					Reason:        TerminationNatural,
					Rounds:        rounds,
					ProviderCalls: providerCalls,
				}
			}

			rounds++
			if rounds > e.maxRounds {
				// Forced termination. The provider still wants tools, so
				// the best text available is whatever accompanied the
				// tool request.
				answer := strings.TrimSpace(current.Content)
				if answer == "" {
					answer = roundLimitMessage
				}
				e.logger.Warn("Round budget exhausted",
					slog.Int("max_rounds", e.maxRounds),
					slog.Int("pending_tool_calls", len(current.ToolCalls)),
				)
				return EngineResult{
					Answer:        answer,
					Reason:        TerminationMaxRounds,
					Rounds:        rounds,
					ProviderCalls: providerCalls,
				}
			}
			state = stateExecutingTools

		case stateExecutingTools:
			checkpoint := len(messages)
			messages = append(messages, llm.ChatMessage{
				Role:      "assistant",
				Content:   current.Content,
				ToolCalls: current.ToolCalls,
			})

			fault := false
			for _, call := range current.ToolCalls {
				output, err := e.registry.Dispatch(ctx, call.Name, call.ArgumentsString())
				if err != nil {
					e.logger.Error("Tool dispatch faulted",
						slog.String("tool", call.Name),
						slog.Int("round", rounds),
						slog.String("error", err.Error()),
					)
					fault = true
					break
				}
				messages = append(messages, llm.ChatMessage{
					Role:       "tool",
					Content:    output,
					ToolCallID: call.ID,
					ToolName:   call.Name,
				})
			}

			if fault {
				// Abandon the round: answer from the history as it stood
				// before this round, with no tools on offer. A fault in
				// the fallback call itself degrades to a canned apology.
				answer, err := e.plainCall(ctx, messages[:checkpoint])
				if err != nil {
					answer = toolFailureApology
				}
				return EngineResult{
					Answer:        answer,
					Reason:        TerminationToolFailure,
					Rounds:        rounds,
					ProviderCalls: providerCalls + 1,
				}
			}
			state = stateAwaitingProvider
		}
	}

	// Unreachable; every state transition above returns or loops.
	return EngineResult{Answer: roundLimitMessage, Reason: TerminationMaxRounds, Rounds: rounds, ProviderCalls: providerCalls}
}

// plainCall makes a single no-tools provider call.
func (e *Engine) plainCall(ctx context.Context, messages []llm.ChatMessage) (string, error) {
	resp, err := e.client.ChatWithTools(ctx, messages, e.params, nil)
	if err != nil {
		e.logger.Error("Plain provider call failed", slog.String("error", err.Error()))
		return "", err
	}
	return resp.Content, nil
}
