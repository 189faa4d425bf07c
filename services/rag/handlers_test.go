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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/CourseLens/services/llm"
	"github.com/AleutianAI/CourseLens/services/rag/session"
	"github.com/AleutianAI/CourseLens/services/rag/store"
	"github.com/AleutianAI/CourseLens/services/rag/tools"
)

func newTestRouter(t *testing.T, provider *scriptedProvider, index store.CourseIndex, toolsToRegister ...tools.Tool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := registryWith(t, toolsToRegister...)
	engine := NewEngine(provider, registry, 2, llm.GenerationParams{}, nil)
	system := NewSystem(engine, registry, session.NewMemoryStore(2), index, nil)

	router := gin.New()
	RegisterRoutes(router.Group("/api"), NewHandlers(system))
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleQuery_Success(t *testing.T) {
	tool := &recordingTool{
		name: "search_course_content",
		result: &tools.Result{
			Content: "hit",
			Sources: []tools.Citation{{Text: "Introduction to MCP - Lesson 1", Link: "https://example.com/l1"}},
		},
	}
	provider := &scriptedProvider{responses: []*llm.ChatWithToolsResult{
		toolResponse("", toolCall("c1", "search_course_content", `{"query":"What is MCP?"}`)),
		textResponse("MCP connects models to tools."),
	}}
	router := newTestRouter(t, provider, &catalogIndex{}, tool)

	w := doJSON(t, router, http.MethodPost, "/api/query", QueryRequest{Query: "What is MCP?"})

	require.Equal(t, http.StatusOK, w.Code)

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "MCP connects models to tools.", resp.Answer)
	assert.NotEmpty(t, resp.SessionID)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "Introduction to MCP - Lesson 1", resp.Sources[0].Text)
	assert.Equal(t, "https://example.com/l1", resp.Sources[0].Link)
}

func TestHandleQuery_MissingQuery(t *testing.T) {
	router := newTestRouter(t, &scriptedProvider{}, &catalogIndex{})

	w := doJSON(t, router, http.MethodPost, "/api/query", map[string]string{})

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_REQUEST", resp.Code)
}

func TestHandleQuery_SourcesNeverNull(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatWithToolsResult{
		textResponse("no retrieval needed"),
	}}
	router := newTestRouter(t, provider, &catalogIndex{}, &recordingTool{name: "search", result: &tools.Result{}})

	w := doJSON(t, router, http.MethodPost, "/api/query", QueryRequest{Query: "hello"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sources":[]`)
}

func TestHandleQuery_ReusesSessionID(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatWithToolsResult{
		textResponse("first"),
		textResponse("second"),
	}}
	router := newTestRouter(t, provider, &catalogIndex{}, &recordingTool{name: "search", result: &tools.Result{}})

	w1 := doJSON(t, router, http.MethodPost, "/api/query", QueryRequest{Query: "q1"})
	require.Equal(t, http.StatusOK, w1.Code)
	var first QueryResponse
	require.NoError(t, json.Unmarshal(w1.Body.Bytes(), &first))

	w2 := doJSON(t, router, http.MethodPost, "/api/query", QueryRequest{Query: "q2", SessionID: first.SessionID})
	require.Equal(t, http.StatusOK, w2.Code)
	var second QueryResponse
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &second))

	assert.Equal(t, first.SessionID, second.SessionID)
}

func TestHandleCourses(t *testing.T) {
	index := &catalogIndex{courses: []store.CourseMetadata{
		{Title: "Introduction to MCP"},
		{Title: "Advanced Retrieval"},
	}}
	router := newTestRouter(t, &scriptedProvider{}, index)

	w := doJSON(t, router, http.MethodGet, "/api/courses", nil)

	require.Equal(t, http.StatusOK, w.Code)

	var resp CourseAnalytics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.TotalCourses)
	assert.Equal(t, []string{"Introduction to MCP", "Advanced Retrieval"}, resp.CourseTitles)
}

func TestHandleClearSession(t *testing.T) {
	router := newTestRouter(t, &scriptedProvider{}, &catalogIndex{})

	w := doJSON(t, router, http.MethodPost, "/api/session/clear", ClearSessionRequest{SessionID: "abc"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cleared")

	w = doJSON(t, router, http.MethodPost, "/api/session/clear", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHealth(t *testing.T) {
	router := newTestRouter(t, &scriptedProvider{}, &catalogIndex{})

	w := doJSON(t, router, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}
