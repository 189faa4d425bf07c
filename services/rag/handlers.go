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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/CourseLens/services/rag/tools"
)

// ErrorResponse is the JSON error envelope for all API endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// QueryRequest is the payload for POST /api/query.
type QueryRequest struct {
	Query     string `json:"query" binding:"required"`
	SessionID string `json:"session_id"`
}

// QueryResponse is the reply for POST /api/query.
type QueryResponse struct {
	Answer    string           `json:"answer"`
	Sources   []tools.Citation `json:"sources"`
	SessionID string           `json:"session_id"`
}

// ClearSessionRequest is the payload for POST /api/session/clear.
type ClearSessionRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// Handlers exposes the query façade over HTTP.
//
// Thread Safety: Handlers is safe for concurrent use.
type Handlers struct {
	system *System
}

// NewHandlers creates Handlers over the given System.
func NewHandlers(system *System) *Handlers {
	return &Handlers{system: system}
}

// getOrCreateRequestID returns the inbound X-Request-ID or mints one.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// HandleQuery handles POST /api/query.
//
// Response:
//
//	200 OK: QueryResponse
//	400 Bad Request: Missing query
//	500 Internal Server Error: Session store failure
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleQuery(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleQuery")

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "query is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	answer, err := h.system.Query(c.Request.Context(), req.Query, req.SessionID)
	if err != nil {
		logger.Error("Query failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to process query: " + err.Error(),
			Code:  "QUERY_FAILED",
		})
		return
	}

	sources := answer.Sources
	if sources == nil {
		sources = []tools.Citation{}
	}

	c.JSON(http.StatusOK, QueryResponse{
		Answer:    answer.Text,
		Sources:   sources,
		SessionID: answer.SessionID,
	})
}

// HandleCourses handles GET /api/courses.
//
// Response:
//
//	200 OK: CourseAnalytics
//	500 Internal Server Error: Index failure
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleCourses(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleCourses")

	analytics, err := h.system.Analytics(c.Request.Context())
	if err != nil {
		logger.Error("Course analytics failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to fetch course catalog: " + err.Error(),
			Code:  "CATALOG_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, analytics)
}

// HandleClearSession handles POST /api/session/clear.
//
// Response:
//
//	200 OK: {"status": "cleared"}
//	400 Bad Request: Missing session_id
//	500 Internal Server Error: Session store failure
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleClearSession(c *gin.Context) {
	var req ClearSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "session_id is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	if err := h.system.ClearSession(c.Request.Context(), req.SessionID); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to clear session: " + err.Error(),
			Code:  "SESSION_CLEAR_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// HandleHealth handles GET /api/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
