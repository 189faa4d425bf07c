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
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/CourseLens/services/rag/session"
	"github.com/AleutianAI/CourseLens/services/rag/store"
	"github.com/AleutianAI/CourseLens/services/rag/tools"
)

// Answer is the façade's result for one query.
type Answer struct {
	Text      string
	Sources   []tools.Citation
	SessionID string
}

// CourseAnalytics summarizes the indexed catalog.
type CourseAnalytics struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

// System is the query façade tying together the engine, the tool
// registry, session history, and the course index.
//
// Description:
//
//	Query wraps the user's question in the standard instruction, resolves
//	session history, runs the engine, records the exchange, and drains
//	the registry's citations exactly once. Only session store faults
//	surface as errors; everything inside the engine resolves to answer
//	text.
//
// Thread Safety: System is safe for concurrent use. Citation drain and
// clear happen under the registry's own lock; interleaved queries on one
// shared registry can still observe each other's citations, so deploy one
// System per registry.
type System struct {
	engine   *Engine
	registry *tools.Registry
	sessions session.Store
	index    store.CourseIndex
	logger   *slog.Logger
}

// NewSystem creates a System.
func NewSystem(engine *Engine, registry *tools.Registry, sessions session.Store, index store.CourseIndex, logger *slog.Logger) *System {
	if logger == nil {
		logger = slog.Default()
	}
	return &System{
		engine:   engine,
		registry: registry,
		sessions: sessions,
		index:    index,
		logger:   logger,
	}
}

// Query answers one user question.
//
// Inputs:
//   - question: Raw user question.
//   - sessionID: "" starts a new session; otherwise prior history for
//     that session is provided to the engine.
//
// Outputs:
//   - *Answer: Answer text, its citations, and the (possibly new)
//     session ID.
//   - error: Non-nil only for session store faults.
func (s *System) Query(ctx context.Context, question, sessionID string) (*Answer, error) {
	start := time.Now()

	if sessionID == "" {
		id, err := s.sessions.Create(ctx)
		if err != nil {
			observeQueryDuration(start, "error")
			return nil, fmt.Errorf("creating session: %w", err)
		}
		sessionID = id
	}

	history, err := s.sessions.History(ctx, sessionID)
	if err != nil {
		observeQueryDuration(start, "error")
		return nil, fmt.Errorf("loading session history: %w", err)
	}

	result := s.engine.Respond(ctx, queryPrompt(question), history)

	// Drain-then-clear exactly once per query, before any error return,
	// so no citation leaks into the next one.
	sources := s.registry.DrainSources()
	s.registry.ClearSources()

	if err := s.sessions.AddExchange(ctx, sessionID, question, result.Answer); err != nil {
		observeQueryDuration(start, "error")
		return nil, fmt.Errorf("recording exchange: %w", err)
	}

	s.logger.Info("Query answered",
		slog.String("session_id", sessionID),
		slog.String("termination", string(result.Reason)),
		slog.Int("rounds", result.Rounds),
		slog.Int("provider_calls", result.ProviderCalls),
		slog.Int("citations", len(sources)),
		slog.Duration("elapsed", time.Since(start)),
	)
	observeQueryDuration(start, "success")

	return &Answer{
		Text:      result.Answer,
		Sources:   sources,
		SessionID: sessionID,
	}, nil
}

// ClearSession discards one session's history.
func (s *System) ClearSession(ctx context.Context, sessionID string) error {
	return s.sessions.Clear(ctx, sessionID)
}

// Analytics reports the indexed course catalog.
func (s *System) Analytics(ctx context.Context) (*CourseAnalytics, error) {
	courses, err := s.index.AllCoursesMetadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching course catalog: %w", err)
	}

	titles := make([]string, 0, len(courses))
	for _, c := range courses {
		titles = append(titles, c.Title)
	}
	return &CourseAnalytics{TotalCourses: len(titles), CourseTitles: titles}, nil
}
