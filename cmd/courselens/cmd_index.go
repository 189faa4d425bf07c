// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/CourseLens/services/rag/config"
	"github.com/AleutianAI/CourseLens/services/rag/store"
)

func newIndexCmd() *cobra.Command {
	var clearFirst bool

	cmd := &cobra.Command{
		Use:   "index [folder]",
		Short: "Index course documents into Weaviate",
		Long: `Parses course documents (.txt, .md) from the given folder and indexes
their metadata and content chunks. Courses already present in the index
are skipped unless --clear is given. The folder defaults to the
configured documents folder.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(debugMode)

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			folder := cfg.Documents.Folder
			if len(args) == 1 {
				folder = args[0]
			}
			if folder == "" {
				return fmt.Errorf("no folder given and none configured")
			}

			ctx := cmd.Context()
			courseStore, err := store.NewWeaviateStore(ctx, cfg.Weaviate.Host, cfg.Weaviate.Scheme, cfg.Engine.MaxSearchResults)
			if err != nil {
				return fmt.Errorf("connecting to weaviate: %w", err)
			}

			if clearFirst {
				slog.Info("Clearing existing index")
				if err := courseStore.ClearAll(ctx); err != nil {
					return fmt.Errorf("clearing index: %w", err)
				}
			}

			chunker := store.Chunker{Size: cfg.Documents.ChunkSize, Overlap: cfg.Documents.ChunkOverlap}
			courses, chunks, err := store.LoadCourseFolder(ctx, folder, courseStore, chunker, slog.Default())
			if err != nil {
				return err
			}

			fmt.Printf("Indexed %d courses (%d chunks) from %s\n", courses, chunks, folder)
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearFirst, "clear", false, "Drop and rebuild the index before loading")
	return cmd
}
