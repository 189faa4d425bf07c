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
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/CourseLens/services/rag/store"
)

// SearchToolName is the registered name of the content search tool.
const SearchToolName = "search_course_content"

// SearchTool performs semantic search over indexed course content.
//
// Description:
//
//	Wraps a CourseIndex with the argument contract the model sees: a
//	required query plus optional course_name (partial titles accepted)
//	and lesson_number filters. Misses and unresolvable filters come back
//	as tool output text, not errors, so the model can rephrase or drop
//	the filter on the next round.
//
// Thread Safety: SearchTool is safe for concurrent use if its index is.
type SearchTool struct {
	index store.CourseIndex
}

// NewSearchTool creates a SearchTool backed by the given index.
func NewSearchTool(index store.CourseIndex) *SearchTool {
	return &SearchTool{index: index}
}

// Definition implements Tool.
func (t *SearchTool) Definition() Definition {
	return Definition{
		Name:        SearchToolName,
		Description: "Search course materials with smart course name matching and lesson filtering",
		Params: map[string]ParamDef{
			"query": {
				Type:        "string",
				Description: "What to search for in the course content",
				Required:    true,
			},
			"course_name": {
				Type:        "string",
				Description: "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
			},
			"lesson_number": {
				Type:        "integer",
				Description: "Specific lesson number to search within (e.g. 1, 3)",
			},
		},
	}
}

// Execute implements Tool.
//
// Outputs:
//   - *Result: Formatted passages with one citation per passage, or a
//     descriptive miss message with no citations.
//   - error: Non-nil only when the underlying index fails.
func (t *SearchTool) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	query := stringArg(args, "query")
	if query == "" {
		return &Result{Content: "Error: the 'query' parameter is required."}, nil
	}
	courseName := stringArg(args, "course_name")
	lessonNumber := intArg(args, "lesson_number")

	results, err := t.index.Search(ctx, query, courseName, lessonNumber)
	if err != nil {
		return nil, fmt.Errorf("searching course content: %w", err)
	}
	if results.Err != "" {
		return &Result{Content: results.Err}, nil
	}
	if results.IsEmpty() {
		return &Result{Content: emptySearchMessage(courseName, lessonNumber)}, nil
	}

	var (
		passages []string
		sources  []Citation
	)
	for i, doc := range results.Documents {
		meta := results.Metadata[i]

		header := meta.CourseTitle
		if meta.LessonNumber != nil {
			header = fmt.Sprintf("%s - Lesson %d", meta.CourseTitle, *meta.LessonNumber)
		}
		passages = append(passages, fmt.Sprintf("[%s]\n%s", header, doc))

		citation := Citation{Text: header}
		if meta.LessonNumber != nil {
			link, linkErr := t.index.LessonLink(ctx, meta.CourseTitle, *meta.LessonNumber)
			if linkErr != nil {
				slog.Debug("No lesson link for citation",
					"course", meta.CourseTitle, "lesson", *meta.LessonNumber, "error", linkErr)
			} else {
				citation.Link = link
			}
		}
		sources = append(sources, citation)
	}

	return &Result{
		Content: strings.Join(passages, "\n\n"),
		Sources: sources,
	}, nil
}

// emptySearchMessage builds the no-results message, naming whichever
// filters were in play.
func emptySearchMessage(courseName string, lessonNumber *int) string {
	msg := "No relevant content found"
	if courseName != "" {
		msg += fmt.Sprintf(" in course '%s'", courseName)
	}
	// A lesson 0 filter is named explicitly: any non-nil filter appears
	// in the message.
	if lessonNumber != nil {
		msg += fmt.Sprintf(" in lesson %d", *lessonNumber)
	}
	return msg + "."
}
