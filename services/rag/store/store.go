// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store provides the course index boundary: semantic search over
// course-content chunks plus course metadata lookups. The production
// implementation is backed by Weaviate; tests use in-memory fakes.
package store

import "context"

// SearchResults is the unified result of a content search.
//
// Description:
//
//	Documents, Metadata, and Distances are parallel slices. Err carries a
//	soft error string (e.g. an unresolvable course filter); it is tool
//	output for the model, not a Go error. A store only returns a Go error
//	for infrastructure faults.
type SearchResults struct {
	// Documents are the matched passage texts.
	Documents []string

	// Metadata describes each matched passage.
	Metadata []ChunkMetadata

	// Distances are the vector distances for each match (smaller is closer).
	Distances []float64

	// Err is a soft error string, empty on success.
	Err string
}

// IsEmpty reports whether the search matched nothing.
func (r SearchResults) IsEmpty() bool {
	return len(r.Documents) == 0
}

// ChunkMetadata identifies where a content chunk came from.
type ChunkMetadata struct {
	// CourseTitle is the exact title of the source course.
	CourseTitle string

	// LessonNumber is the source lesson, nil for course-level content.
	LessonNumber *int

	// ChunkIndex is the chunk's position within its document.
	ChunkIndex int
}

// CourseChunk is one indexable piece of course content.
type CourseChunk struct {
	// Content is the chunk text.
	Content string

	// CourseTitle is the exact title of the owning course.
	CourseTitle string

	// LessonNumber is the owning lesson, nil for course-level content.
	LessonNumber *int

	// ChunkIndex is the chunk's position within its document.
	ChunkIndex int
}

// Lesson is one lesson of a course.
type Lesson struct {
	// Number is the lesson number, unique within a course.
	Number int `json:"lesson_number"`

	// Title is the lesson title.
	Title string `json:"lesson_title"`

	// Link is the lesson URL, empty when unknown.
	Link string `json:"lesson_link,omitempty"`
}

// CourseMetadata is the structural metadata of one course.
type CourseMetadata struct {
	// Title is the exact course title, unique across the catalog.
	Title string `json:"title"`

	// Link is the course URL, empty when unknown.
	Link string `json:"course_link,omitempty"`

	// Instructor is the course instructor, empty when unknown.
	Instructor string `json:"instructor,omitempty"`

	// Lessons is the ordered lesson list.
	Lessons []Lesson `json:"lessons"`
}

// CourseIndex is the index/corpus boundary consumed by the retrieval tools
// and the HTTP layer.
//
// Description:
//
//	Search performs the unified content search with optional course and
//	lesson filters; an unresolvable course filter is reported through
//	SearchResults.Err, not through the error return.
//	ResolveCourseName performs fuzzy/partial course-title resolution and
//	returns "" (with nil error) when nothing matches.
//
// Thread Safety: Implementations must be safe for concurrent use.
type CourseIndex interface {
	// Search queries course-content chunks. courseName and lessonNumber
	// are optional filters; pass "" / nil to disable them.
	Search(ctx context.Context, query, courseName string, lessonNumber *int) (SearchResults, error)

	// ResolveCourseName resolves a partial course title to the exact
	// catalog title. Returns "" when there is no plausible match.
	ResolveCourseName(ctx context.Context, partial string) (string, error)

	// AllCoursesMetadata returns the metadata of every indexed course.
	AllCoursesMetadata(ctx context.Context) ([]CourseMetadata, error)

	// LessonLink returns the link of the given lesson. Returns an error
	// when the course or lesson is unknown or the link lookup fails.
	LessonLink(ctx context.Context, courseTitle string, lessonNumber int) (string, error)
}

// CourseWriter is the ingestion side of the index, used by the document
// loading pipeline and the index CLI command.
//
// Thread Safety: Implementations must be safe for concurrent use.
type CourseWriter interface {
	// AddCourse stores course metadata in the catalog.
	AddCourse(ctx context.Context, meta CourseMetadata) error

	// AddChunks stores content chunks for search.
	AddChunks(ctx context.Context, chunks []CourseChunk) error

	// ExistingCourseTitles returns the titles already in the catalog,
	// used to skip re-indexing on startup.
	ExistingCourseTitles(ctx context.Context) ([]string, error)

	// ClearAll removes all indexed courses and chunks.
	ClearAll(ctx context.Context) error
}
