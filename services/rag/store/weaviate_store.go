// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

const (
	// classCourse holds one object per course: title, link, instructor,
	// and the serialized lesson list.
	classCourse = "Course"

	// classCourseChunk holds the searchable content chunks.
	classCourseChunk = "CourseChunk"

	// catalogFetchLimit bounds catalog queries. Course catalogs are small;
	// this is a safety cap, not a pagination scheme.
	catalogFetchLimit = 500

	// resolveMaxDistance is the vector-distance cutoff for fuzzy course
	// name resolution. Matches beyond this are treated as "no course found".
	resolveMaxDistance = 0.75
)

// WeaviateStore implements CourseIndex and CourseWriter against a Weaviate
// instance.
//
// Description:
//
//	Content chunks live in the CourseChunk class and are searched with
//	nearText plus optional where-filters on courseTitle/lessonNumber.
//	Course metadata lives in the Course class with the lesson list stored
//	as a JSON string property (lessons are always read as a unit, so a
//	nested class buys nothing).
//
// Thread Safety: WeaviateStore is safe for concurrent use.
type WeaviateStore struct {
	client     *weaviate.Client
	maxResults int
	logger     *slog.Logger
}

// NewWeaviateStore creates a WeaviateStore for the given endpoint.
//
// Description:
//
//	Connects to Weaviate at host (e.g. "localhost:8080") over the given
//	scheme and ensures both classes exist. maxResults bounds every content
//	search; pass 0 for the default of 5.
//
// Inputs:
//   - host: Weaviate host:port. Must not be empty.
//   - scheme: "http" or "https".
//   - maxResults: Search result cap. 0 uses the default.
//
// Outputs:
//   - *WeaviateStore: Ready-to-use store.
//   - error: Non-nil if the client cannot be built or the schema cannot
//     be ensured.
func NewWeaviateStore(ctx context.Context, host, scheme string, maxResults int) (*WeaviateStore, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   host,
		Scheme: scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("weaviate: creating client: %w", err)
	}

	s := &WeaviateStore{
		client:     client,
		maxResults: maxResults,
		logger:     slog.Default(),
	}

	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("weaviate: ensuring schema: %w", err)
	}

	return s, nil
}

// ensureSchema creates the Course and CourseChunk classes if absent.
func (s *WeaviateStore) ensureSchema(ctx context.Context) error {
	classes := []*models.Class{
		{
			Class:      classCourse,
			Vectorizer: "text2vec-transformers",
			Properties: []*models.Property{
				{Name: "title", DataType: []string{"text"}},
				{Name: "link", DataType: []string{"text"}},
				{Name: "instructor", DataType: []string{"text"}},
				{Name: "lessonsJson", DataType: []string{"text"}},
			},
		},
		{
			Class:      classCourseChunk,
			Vectorizer: "text2vec-transformers",
			Properties: []*models.Property{
				{Name: "content", DataType: []string{"text"}},
				{Name: "courseTitle", DataType: []string{"text"}},
				{Name: "lessonNumber", DataType: []string{"int"}},
				{Name: "chunkIndex", DataType: []string{"int"}},
			},
		},
	}

	for _, class := range classes {
		exists, err := s.client.Schema().ClassExistenceChecker().
			WithClassName(class.Class).Do(ctx)
		if err != nil {
			return fmt.Errorf("checking class %s: %w", class.Class, err)
		}
		if exists {
			continue
		}
		if err := s.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
			return fmt.Errorf("creating class %s: %w", class.Class, err)
		}
		s.logger.Info("Created Weaviate class", "class", class.Class)
	}

	return nil
}

// Search implements CourseIndex.Search.
//
// Description:
//
//	Resolves an optional course filter through ResolveCourseName first: an
//	unresolvable name yields SearchResults.Err (soft error, surfaced to
//	the model as tool output). Then runs a nearText query over CourseChunk
//	with where-filters for the resolved course and/or lesson number.
//
// Thread Safety: This method is safe for concurrent use.
func (s *WeaviateStore) Search(ctx context.Context, query, courseName string, lessonNumber *int) (SearchResults, error) {
	var whereParts []*filters.WhereBuilder

	if courseName != "" {
		resolved, err := s.ResolveCourseName(ctx, courseName)
		if err != nil {
			return SearchResults{}, fmt.Errorf("resolving course filter: %w", err)
		}
		if resolved == "" {
			return SearchResults{Err: fmt.Sprintf("No course found matching '%s'", courseName)}, nil
		}
		whereParts = append(whereParts, filters.Where().
			WithPath([]string{"courseTitle"}).
			WithOperator(filters.Equal).
			WithValueText(resolved))
	}

	if lessonNumber != nil {
		whereParts = append(whereParts, filters.Where().
			WithPath([]string{"lessonNumber"}).
			WithOperator(filters.Equal).
			WithValueInt(int64(*lessonNumber)))
	}

	q := s.client.GraphQL().Get().
		WithClassName(classCourseChunk).
		WithFields(
			graphql.Field{Name: "content"},
			graphql.Field{Name: "courseTitle"},
			graphql.Field{Name: "lessonNumber"},
			graphql.Field{Name: "chunkIndex"},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
		).
		WithNearText(s.client.GraphQL().NearTextArgBuilder().
			WithConcepts([]string{query})).
		WithLimit(s.maxResults)

	switch len(whereParts) {
	case 0:
	case 1:
		q = q.WithWhere(whereParts[0])
	default:
		q = q.WithWhere(filters.Where().
			WithOperator(filters.And).
			WithOperands(whereParts))
	}

	resp, err := q.Do(ctx)
	if err != nil {
		return SearchResults{}, fmt.Errorf("weaviate: content search: %w", err)
	}
	if err := graphQLErrors(resp); err != nil {
		return SearchResults{}, fmt.Errorf("weaviate: content search: %w", err)
	}

	var results SearchResults
	for _, obj := range getObjects(resp, classCourseChunk) {
		content, _ := obj["content"].(string)
		title, _ := obj["courseTitle"].(string)

		meta := ChunkMetadata{CourseTitle: title}
		if n, ok := obj["lessonNumber"].(float64); ok {
			num := int(n)
			meta.LessonNumber = &num
		}
		if ci, ok := obj["chunkIndex"].(float64); ok {
			meta.ChunkIndex = int(ci)
		}

		results.Documents = append(results.Documents, content)
		results.Metadata = append(results.Metadata, meta)
		results.Distances = append(results.Distances, additionalDistance(obj))
	}

	slog.Debug("Content search completed",
		slog.String("query", query),
		slog.String("course_filter", courseName),
		slog.Int("matches", len(results.Documents)),
	)

	return results, nil
}

// ResolveCourseName implements CourseIndex.ResolveCourseName.
//
// Description:
//
//	Tries a cheap case-insensitive substring match over the catalog first,
//	then falls back to a nearText query over Course titles with a distance
//	cutoff. Returns "" when nothing plausible matches.
//
// Thread Safety: This method is safe for concurrent use.
func (s *WeaviateStore) ResolveCourseName(ctx context.Context, partial string) (string, error) {
	courses, err := s.AllCoursesMetadata(ctx)
	if err != nil {
		return "", err
	}

	needle := strings.ToLower(strings.TrimSpace(partial))
	for _, c := range courses {
		if strings.Contains(strings.ToLower(c.Title), needle) {
			return c.Title, nil
		}
	}

	resp, err := s.client.GraphQL().Get().
		WithClassName(classCourse).
		WithFields(
			graphql.Field{Name: "title"},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
		).
		WithNearText(s.client.GraphQL().NearTextArgBuilder().
			WithConcepts([]string{partial})).
		WithLimit(1).
		Do(ctx)
	if err != nil {
		return "", fmt.Errorf("weaviate: resolving course name: %w", err)
	}
	if err := graphQLErrors(resp); err != nil {
		return "", fmt.Errorf("weaviate: resolving course name: %w", err)
	}

	objs := getObjects(resp, classCourse)
	if len(objs) == 0 {
		return "", nil
	}
	if additionalDistance(objs[0]) > resolveMaxDistance {
		return "", nil
	}
	title, _ := objs[0]["title"].(string)
	return title, nil
}

// AllCoursesMetadata implements CourseIndex.AllCoursesMetadata.
func (s *WeaviateStore) AllCoursesMetadata(ctx context.Context) ([]CourseMetadata, error) {
	resp, err := s.client.GraphQL().Get().
		WithClassName(classCourse).
		WithFields(
			graphql.Field{Name: "title"},
			graphql.Field{Name: "link"},
			graphql.Field{Name: "instructor"},
			graphql.Field{Name: "lessonsJson"},
		).
		WithLimit(catalogFetchLimit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate: fetching course catalog: %w", err)
	}
	if err := graphQLErrors(resp); err != nil {
		return nil, fmt.Errorf("weaviate: fetching course catalog: %w", err)
	}

	var courses []CourseMetadata
	for _, obj := range getObjects(resp, classCourse) {
		meta := CourseMetadata{}
		meta.Title, _ = obj["title"].(string)
		meta.Link, _ = obj["link"].(string)
		meta.Instructor, _ = obj["instructor"].(string)

		if lessonsJSON, ok := obj["lessonsJson"].(string); ok && lessonsJSON != "" {
			if err := json.Unmarshal([]byte(lessonsJSON), &meta.Lessons); err != nil {
				s.logger.Warn("Skipping malformed lessons payload",
					"course", meta.Title, "error", err)
			}
		}
		courses = append(courses, meta)
	}

	return courses, nil
}

// LessonLink implements CourseIndex.LessonLink.
func (s *WeaviateStore) LessonLink(ctx context.Context, courseTitle string, lessonNumber int) (string, error) {
	courses, err := s.AllCoursesMetadata(ctx)
	if err != nil {
		return "", err
	}

	for _, c := range courses {
		if c.Title != courseTitle {
			continue
		}
		for _, l := range c.Lessons {
			if l.Number == lessonNumber {
				return l.Link, nil
			}
		}
		return "", fmt.Errorf("course %q has no lesson %d", courseTitle, lessonNumber)
	}

	return "", fmt.Errorf("course %q not found", courseTitle)
}

// AddCourse implements CourseWriter.AddCourse.
func (s *WeaviateStore) AddCourse(ctx context.Context, meta CourseMetadata) error {
	lessonsJSON, err := json.Marshal(meta.Lessons)
	if err != nil {
		return fmt.Errorf("weaviate: marshaling lessons for %q: %w", meta.Title, err)
	}

	_, err = s.client.Data().Creator().
		WithClassName(classCourse).
		WithProperties(map[string]interface{}{
			"title":       meta.Title,
			"link":        meta.Link,
			"instructor":  meta.Instructor,
			"lessonsJson": string(lessonsJSON),
		}).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate: adding course %q: %w", meta.Title, err)
	}

	s.logger.Info("Indexed course metadata",
		"course", meta.Title, "lessons", len(meta.Lessons))
	return nil
}

// AddChunks implements CourseWriter.AddChunks using a single batch request.
func (s *WeaviateStore) AddChunks(ctx context.Context, chunks []CourseChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	objects := make([]*models.Object, 0, len(chunks))
	for _, chunk := range chunks {
		props := map[string]interface{}{
			"content":     chunk.Content,
			"courseTitle": chunk.CourseTitle,
			"chunkIndex":  chunk.ChunkIndex,
		}
		if chunk.LessonNumber != nil {
			props["lessonNumber"] = *chunk.LessonNumber
		}
		objects = append(objects, &models.Object{
			Class:      classCourseChunk,
			Properties: props,
		})
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate: batch adding %d chunks: %w", len(chunks), err)
	}

	for _, obj := range resp {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return fmt.Errorf("weaviate: batch insert rejected: %s", obj.Result.Errors.Error[0].Message)
		}
	}

	s.logger.Debug("Indexed content chunks", "count", len(chunks))
	return nil
}

// ExistingCourseTitles implements CourseWriter.ExistingCourseTitles.
func (s *WeaviateStore) ExistingCourseTitles(ctx context.Context) ([]string, error) {
	courses, err := s.AllCoursesMetadata(ctx)
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(courses))
	for _, c := range courses {
		titles = append(titles, c.Title)
	}
	return titles, nil
}

// ClearAll implements CourseWriter.ClearAll by dropping and recreating both
// classes.
func (s *WeaviateStore) ClearAll(ctx context.Context) error {
	for _, class := range []string{classCourse, classCourseChunk} {
		if err := s.client.Schema().ClassDeleter().WithClassName(class).Do(ctx); err != nil {
			return fmt.Errorf("weaviate: deleting class %s: %w", class, err)
		}
	}
	return s.ensureSchema(ctx)
}

// getObjects extracts the object list for a class from a GraphQL Get
// response. Returns nil when the response shape is unexpected.
func getObjects(resp *models.GraphQLResponse, class string) []map[string]interface{} {
	if resp == nil {
		return nil
	}
	get, ok := resp.Data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := get[class].([]interface{})
	if !ok {
		return nil
	}

	objs := make([]map[string]interface{}, 0, len(raw))
	for _, item := range raw {
		if obj, ok := item.(map[string]interface{}); ok {
			objs = append(objs, obj)
		}
	}
	return objs
}

// additionalDistance pulls _additional.distance out of a result object.
// Returns 0 when absent.
func additionalDistance(obj map[string]interface{}) float64 {
	additional, ok := obj["_additional"].(map[string]interface{})
	if !ok {
		return 0
	}
	d, _ := additional["distance"].(float64)
	return d
}

// graphQLErrors converts GraphQL-level errors into a Go error.
func graphQLErrors(resp *models.GraphQLResponse) error {
	if resp == nil || len(resp.Errors) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(resp.Errors))
	for _, e := range resp.Errors {
		msgs = append(msgs, e.Message)
	}
	return fmt.Errorf("graphql: %s", strings.Join(msgs, "; "))
}
