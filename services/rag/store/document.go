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
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Chunker splits course text into overlapping, sentence-aligned chunks.
//
// Description:
//
//	Chunks are built by packing whole sentences up to Size characters.
//	Consecutive chunks share trailing sentences up to Overlap characters
//	so that a fact straddling a chunk boundary stays retrievable.
type Chunker struct {
	Size    int
	Overlap int
}

// DefaultChunker returns the chunker used for course ingestion.
func DefaultChunker() Chunker {
	return Chunker{Size: 800, Overlap: 100}
}

var sentenceBoundary = regexp.MustCompile(`(?s)(.*?[.!?])(?:\s+|$)`)

// splitSentences breaks text into sentences on terminal punctuation.
// Trailing text without punctuation becomes a final sentence.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var sentences []string
	consumed := 0
	for _, m := range sentenceBoundary.FindAllStringSubmatchIndex(text, -1) {
		s := strings.TrimSpace(text[m[2]:m[3]])
		if s != "" {
			sentences = append(sentences, s)
		}
		consumed = m[1]
	}
	if rest := strings.TrimSpace(text[consumed:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// Chunk splits text into overlapping chunks of whole sentences.
func (c Chunker) Chunk(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	i := 0
	for i < len(sentences) {
		var parts []string
		length := 0
		j := i
		for j < len(sentences) {
			sentenceLen := len(sentences[j])
			if len(parts) > 0 {
				sentenceLen++ // joining space
			}
			if length+sentenceLen > c.Size && len(parts) > 0 {
				break
			}
			parts = append(parts, sentences[j])
			length += sentenceLen
			j++
		}
		chunks = append(chunks, strings.Join(parts, " "))

		if j >= len(sentences) {
			break
		}

		// Back up over trailing sentences worth up to Overlap characters.
		next := j
		overlap := 0
		for next > i+1 {
			if overlap+len(sentences[next-1]) > c.Overlap {
				break
			}
			overlap += len(sentences[next-1])
			next--
		}
		i = next
	}

	return chunks
}

// ParsedCourse is the result of parsing one course document.
type ParsedCourse struct {
	Metadata CourseMetadata
	Chunks   []CourseChunk
}

// ParseCourseDocument parses a course transcript in the expected format.
//
// Description:
//
//	The document opens with a metadata header:
//
//	    Course Name: <title>
//	    Course Link: <url>
//	    Course Instructor: <name>
//
//	followed by lesson sections introduced by "Lesson N: <title>" lines,
//	each optionally followed by a "Lesson Link: <url>" line and then the
//	lesson transcript. Content before the first lesson marker is indexed
//	without a lesson number. Every chunk is prefixed with its course and
//	lesson so a chunk retrieved in isolation still carries its context.
//
// Inputs:
//   - content: Full document text.
//   - chunker: Chunking policy. Use DefaultChunker for ingestion defaults.
//
// Outputs:
//   - *ParsedCourse: Course metadata plus context-prefixed chunks.
//   - error: Non-nil if the document has no course title.
func ParseCourseDocument(content string, chunker Chunker) (*ParsedCourse, error) {
	lines := strings.Split(content, "\n")

	course := ParsedCourse{}
	idx := 0
header:
	for idx < len(lines) && idx < 4 {
		line := strings.TrimSpace(lines[idx])
		switch {
		case strings.HasPrefix(line, "Course Name:"):
			course.Metadata.Title = strings.TrimSpace(strings.TrimPrefix(line, "Course Name:"))
		case strings.HasPrefix(line, "Course Link:"):
			course.Metadata.Link = strings.TrimSpace(strings.TrimPrefix(line, "Course Link:"))
		case strings.HasPrefix(line, "Course Instructor:"):
			course.Metadata.Instructor = strings.TrimSpace(strings.TrimPrefix(line, "Course Instructor:"))
		case line == "":
		default:
			// Header ended early; remaining lines are content.
			break header
		}
		idx++
	}

	if course.Metadata.Title == "" {
		return nil, fmt.Errorf("document has no 'Course Name:' header")
	}

	lessonHeader := regexp.MustCompile(`^Lesson\s+(\d+):\s*(.*)$`)

	chunkIndex := 0
	addSection := func(lessonNumber *int, text string) {
		for _, chunk := range chunker.Chunk(text) {
			var prefixed string
			if lessonNumber != nil {
				prefixed = fmt.Sprintf("Course %s Lesson %d content: %s",
					course.Metadata.Title, *lessonNumber, chunk)
			} else {
				prefixed = fmt.Sprintf("Course %s content: %s",
					course.Metadata.Title, chunk)
			}
			course.Chunks = append(course.Chunks, CourseChunk{
				Content:      prefixed,
				CourseTitle:  course.Metadata.Title,
				LessonNumber: lessonNumber,
				ChunkIndex:   chunkIndex,
			})
			chunkIndex++
		}
	}

	var (
		currentLesson *int
		currentTitle  string
		currentLink   string
		buf           []string
	)

	flush := func() {
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		buf = buf[:0]
		if currentLesson != nil {
			course.Metadata.Lessons = append(course.Metadata.Lessons, Lesson{
				Number: *currentLesson,
				Title:  currentTitle,
				Link:   currentLink,
			})
		}
		if text != "" {
			addSection(currentLesson, text)
		}
	}

	for ; idx < len(lines); idx++ {
		line := lines[idx]
		trimmed := strings.TrimSpace(line)

		if m := lessonHeader.FindStringSubmatch(trimmed); m != nil {
			flush()
			n, _ := strconv.Atoi(m[1])
			currentLesson = &n
			currentTitle = m[2]
			currentLink = ""
			continue
		}
		if currentLesson != nil && len(buf) == 0 && strings.HasPrefix(trimmed, "Lesson Link:") {
			currentLink = strings.TrimSpace(strings.TrimPrefix(trimmed, "Lesson Link:"))
			continue
		}
		buf = append(buf, line)
	}
	flush()

	return &course, nil
}

// LoadCourseFolder parses every readable course document in dir and indexes
// any course not already present.
//
// Description:
//
//	Reads .txt and .md files from dir (non-recursive), parses each as a
//	course document, and writes metadata plus chunks through writer.
//	Courses whose title already exists in the index are skipped, so
//	repeated startup loads are idempotent. Individual bad files are
//	logged and skipped rather than aborting the whole load.
//
// Inputs:
//   - chunker: Chunking policy for document content. A zero-value chunker
//     falls back to DefaultChunker.
//
// Outputs:
//   - coursesAdded: Number of new courses indexed.
//   - chunksAdded: Number of chunks indexed across those courses.
//   - error: Non-nil only for failures that prevent loading anything.
func LoadCourseFolder(ctx context.Context, dir string, writer CourseWriter, chunker Chunker, logger *slog.Logger) (coursesAdded, chunksAdded int, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	if chunker.Size <= 0 {
		chunker = DefaultChunker()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("reading course folder %s: %w", dir, err)
	}

	existing, err := writer.ExistingCourseTitles(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("listing existing courses: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, t := range existing {
		known[t] = true
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".txt" && ext != ".md" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		content, readErr := readDocument(path)
		if readErr != nil {
			logger.Warn("Skipping unreadable course document", "file", path, "error", readErr)
			continue
		}

		parsed, parseErr := ParseCourseDocument(content, chunker)
		if parseErr != nil {
			logger.Warn("Skipping malformed course document", "file", path, "error", parseErr)
			continue
		}
		if known[parsed.Metadata.Title] {
			logger.Debug("Course already indexed", "course", parsed.Metadata.Title)
			continue
		}

		if err := writer.AddCourse(ctx, parsed.Metadata); err != nil {
			return coursesAdded, chunksAdded, fmt.Errorf("indexing course %q: %w", parsed.Metadata.Title, err)
		}
		if err := writer.AddChunks(ctx, parsed.Chunks); err != nil {
			return coursesAdded, chunksAdded, fmt.Errorf("indexing chunks for %q: %w", parsed.Metadata.Title, err)
		}

		known[parsed.Metadata.Title] = true
		coursesAdded++
		chunksAdded += len(parsed.Chunks)
		logger.Info("Indexed course document",
			"course", parsed.Metadata.Title,
			"lessons", len(parsed.Metadata.Lessons),
			"chunks", len(parsed.Chunks),
		)
	}

	return coursesAdded, chunksAdded, nil
}

// readDocument reads a UTF-8 text file, tolerating a BOM.
func readDocument(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	// Drop a UTF-8 BOM if present.
	if bom, err := r.Peek(3); err == nil && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		if _, err := r.Discard(3); err != nil {
			return "", err
		}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
