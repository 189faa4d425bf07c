// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command courselens runs the course materials Q&A service.
//
// CourseLens answers natural-language questions about indexed course
// materials by letting a generation provider call retrieval tools over a
// Weaviate index across a bounded number of rounds.
//
// Usage:
//
//	courselens serve                 # start the API server
//	courselens serve --config c.yaml --debug
//	courselens index ./docs          # index course documents
//	courselens index ./docs --clear  # rebuild the index from scratch
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8000/api/health
//
//	# Ask a question
//	curl -X POST http://localhost:8000/api/query \
//	  -H "Content-Type: application/json" \
//	  -d '{"query": "What is covered in lesson 1 of the MCP course?"}'
//
//	# Course catalog
//	curl http://localhost:8000/api/courses
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Flag values shared by subcommands.
var (
	configPath string
	debugMode  bool
)

func main() {
	root := &cobra.Command{
		Use:   "courselens",
		Short: "Course materials Q&A service",
		Long:  "CourseLens answers questions about course materials using tool-calling retrieval over a Weaviate index.",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (optional)")
	root.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging and request logs")

	root.AddCommand(newServeCmd())
	root.AddCommand(newIndexCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogging installs the process-wide slog handler.
func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
