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
	"strings"

	"github.com/AleutianAI/CourseLens/services/rag/store"
)

// OutlineToolName is the registered name of the course outline tool.
const OutlineToolName = "get_course_outline"

// OutlineTool returns the structure of a course: its title, link, and the
// full numbered lesson list.
//
// Thread Safety: OutlineTool is safe for concurrent use if its index is.
type OutlineTool struct {
	index store.CourseIndex
}

// NewOutlineTool creates an OutlineTool backed by the given index.
func NewOutlineTool(index store.CourseIndex) *OutlineTool {
	return &OutlineTool{index: index}
}

// Definition implements Tool.
func (t *OutlineTool) Definition() Definition {
	return Definition{
		Name:        OutlineToolName,
		Description: "Get the complete outline of a course including its title, link, and full lesson list",
		Params: map[string]ParamDef{
			"course_title": {
				Type:        "string",
				Description: "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
				Required:    true,
			},
		},
	}
}

// Execute implements Tool.
//
// Outputs:
//   - *Result: The outline, or a descriptive error string. Index faults
//     are reported softly so the model can tell the user; this tool never
//     returns a Go error.
func (t *OutlineTool) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	courseName := stringArg(args, "course_title")
	if courseName == "" {
		return &Result{Content: "Error: the 'course_title' parameter is required."}, nil
	}

	resolved, err := t.index.ResolveCourseName(ctx, courseName)
	if err != nil {
		return &Result{Content: fmt.Sprintf("Error retrieving course outline: %s", err)}, nil
	}
	if resolved == "" {
		return &Result{Content: fmt.Sprintf("No course found matching '%s'", courseName)}, nil
	}

	courses, err := t.index.AllCoursesMetadata(ctx)
	if err != nil {
		return &Result{Content: fmt.Sprintf("Error retrieving course outline: %s", err)}, nil
	}

	for _, course := range courses {
		if course.Title != resolved {
			continue
		}
		return &Result{
			Content: formatOutline(course),
			Sources: []Citation{{Text: course.Title, Link: course.Link}},
		}, nil
	}

	// Resolution and the catalog disagree; treat as a miss.
	return &Result{Content: fmt.Sprintf("No course found matching '%s'", courseName)}, nil
}

// formatOutline renders course metadata as the markdown block handed to
// the model.
func formatOutline(course store.CourseMetadata) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Course Title:** %s\n", course.Title)
	if course.Link != "" {
		fmt.Fprintf(&sb, "**Course Link:** %s\n", course.Link)
	}
	if course.Instructor != "" {
		fmt.Fprintf(&sb, "**Instructor:** %s\n", course.Instructor)
	}
	if len(course.Lessons) == 0 {
		sb.WriteString("\n**Lessons:** No lessons found")
		return sb.String()
	}
	fmt.Fprintf(&sb, "\n**Lessons (%d total):**\n", len(course.Lessons))
	for _, lesson := range course.Lessons {
		fmt.Fprintf(&sb, "- Lesson %d: %s\n", lesson.Number, lesson.Title)
	}
	return strings.TrimRight(sb.String(), "\n")
}
