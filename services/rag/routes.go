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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the course Q&A API with the router.
//
// Description:
//
//	Registers all /api/* endpoints with the given Gin router group. The
//	group should already carry any required middleware.
//
// Endpoints:
//
//	POST /api/query - Answer a question about course materials
//	GET  /api/courses - Course catalog analytics
//	POST /api/session/clear - Discard one session's history
//	GET  /api/health - Health check
//
// Example:
//
//	handlers := rag.NewHandlers(system)
//	rag.RegisterRoutes(router.Group("/api"), handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	rg.POST("/query", handlers.HandleQuery)
	rg.GET("/courses", handlers.HandleCourses)
	rg.POST("/session/clear", handlers.HandleClearSession)
	rg.GET("/health", handlers.HandleHealth)
}
