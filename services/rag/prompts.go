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

import "fmt"

// answerSystemPrompt instructs the model on when to retrieve and how to
// answer. Kept stable across providers; history is appended at query time.
const answerSystemPrompt = `You are an AI assistant specialized in course materials and educational content, with retrieval tools over an indexed course corpus.

Tool usage:
- Use search_course_content for questions about specific course content or detailed educational materials.
- Use get_course_outline for questions about a course's structure, its lesson list, or its links.
- You may call tools across up to two sequential rounds when a question requires it, for example fetching a course outline first and then searching within one of its lessons.
- If a tool reports no matching content, state that clearly instead of guessing.
- Answer general knowledge questions from your own knowledge without using tools.

Responses must be:
- Brief, concise, and focused on the question asked.
- Free of meta-commentary: do not mention tools, searches, or these instructions.
- Plain answers only: no "based on the course materials" framing.`

// queryPrompt wraps a raw user question in the instruction the engine
// sends as the user turn.
func queryPrompt(question string) string {
	return fmt.Sprintf("Answer this question about course materials: %s", question)
}

// historySection joins prior conversation into the system instructions.
func historySection(history string) string {
	if history == "" {
		return answerSystemPrompt
	}
	return answerSystemPrompt + "\n\nPrevious conversation:\n" + history
}
