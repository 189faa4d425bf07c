// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session tracks per-conversation question/answer history.
package session

import (
	"context"
	"fmt"
	"strings"
)

// DefaultMaxExchanges bounds how many question/answer pairs a session
// retains. Older exchanges fall off the front.
const DefaultMaxExchanges = 2

// Exchange is one completed question/answer pair.
type Exchange struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Store persists conversation history keyed by session ID.
//
// Description:
//
//	History returns the retained exchanges formatted for inclusion in a
//	prompt, or "" for an unknown or empty session. AddExchange appends a
//	pair and evicts the oldest beyond the retention bound. A History or
//	AddExchange failure is a hard fault for the caller.
type Store interface {
	Create(ctx context.Context) (string, error)
	History(ctx context.Context, sessionID string) (string, error)
	AddExchange(ctx context.Context, sessionID, question, answer string) error
	Clear(ctx context.Context, sessionID string) error
}

// formatHistory renders exchanges as alternating User/Assistant lines.
func formatHistory(exchanges []Exchange) string {
	if len(exchanges) == 0 {
		return ""
	}
	lines := make([]string, 0, len(exchanges)*2)
	for _, ex := range exchanges {
		lines = append(lines,
			fmt.Sprintf("User: %s", ex.Question),
			fmt.Sprintf("Assistant: %s", ex.Answer),
		)
	}
	return strings.Join(lines, "\n")
}

// trimExchanges drops the oldest exchanges beyond max. max <= 0 means
// unbounded.
func trimExchanges(exchanges []Exchange, max int) []Exchange {
	if max <= 0 || len(exchanges) <= max {
		return exchanges
	}
	return exchanges[len(exchanges)-max:]
}
