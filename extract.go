// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pak

package pak

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// extractWorkItem stores one selected entry with prepared output relative paths.
type extractWorkItem struct {
	relPath string
	relDir  string
	entry   Entry
}

// Extract writes archived entries to dstDir, recreating the directory layout
// encoded in entry names. Each distinct name is written once, from the entry
// the lookup index resolves. Extraction is parallelized by MaxWorkers; on
// failure it returns the first encountered error. OnEntryDone may be called
// from several workers at once.
func (r *Reader) Extract(ctx context.Context, dstDir string, opts ExtractOptions) error {
	if r == nil {
		return ErrNilReader
	}
	if r.ra == nil {
		return ErrClosed
	}

	opts.applyDefaults()

	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	entries := filterEntriesByPrefix(r.entries, opts.Prefix)
	entries = resolveUniqueEntries(entries, r.index, r.entries)
	if len(entries) == 0 {
		return nil
	}

	dstRootAbs, err := filepath.Abs(dstDir)
	if err != nil {
		return fmt.Errorf("resolve output dir: %w", err)
	}

	if err := os.MkdirAll(dstRootAbs, 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	workItems, err := prepareExtractWorkItems(entries, r.index)
	if err != nil {
		return err
	}

	if err := prepareExtractDirs(dstRootAbs, workItems); err != nil {
		return err
	}

	r.log().Debug("extracting archive", "dir", dstRootAbs, "entries", len(workItems), "workers", workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, task := range workItems {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			outPath := filepath.Join(dstRootAbs, task.relPath)
			if err := r.extractEntryToPath(task.entry, outPath, opts.FileMode); err != nil {
				return err
			}

			if opts.OnEntryDone != nil {
				opts.OnEntryDone(task.entry, int64(task.entry.Size), outPath)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	return ctx.Err()
}

// prepareExtractWorkItems validates selected entries and prepares relative fs paths.
// Names that normalize to the same output path collapse into one work item
// holding the entry stored last in the table.
func prepareExtractWorkItems(entries []Entry, index map[string]int) ([]extractWorkItem, error) {
	workItems := make([]extractWorkItem, 0, len(entries))
	byPath := make(map[string]int, len(entries))
	for _, e := range entries {
		normalized, err := normalizeExtractEntryPath(e.Name)
		if err != nil {
			return nil, fmt.Errorf("normalize entry name %q: %w", e.Name, err)
		}

		relPath := filepath.FromSlash(normalized)
		relDir := filepath.Dir(relPath)
		if relDir == "." {
			relDir = ""
		}

		item := extractWorkItem{
			entry:   e,
			relPath: relPath,
			relDir:  relDir,
		}

		if pos, exists := byPath[normalized]; exists {
			if index[e.Name] > index[workItems[pos].entry.Name] {
				workItems[pos] = item
			}
			continue
		}

		byPath[normalized] = len(workItems)
		workItems = append(workItems, item)
	}

	return workItems, nil
}

// prepareExtractDirs creates all unique parent directories needed by work items.
func prepareExtractDirs(dstRootAbs string, workItems []extractWorkItem) error {
	seen := make(map[string]struct{}, len(workItems))
	for _, task := range workItems {
		if task.relDir == "" {
			continue
		}

		if _, exists := seen[task.relDir]; exists {
			continue
		}

		seen[task.relDir] = struct{}{}
		dirPath := filepath.Join(dstRootAbs, task.relDir)
		if err := os.MkdirAll(dirPath, 0o750); err != nil {
			return fmt.Errorf("create output directory %s: %w", dirPath, err)
		}
	}

	return nil
}
