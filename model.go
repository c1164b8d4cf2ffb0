// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pak

package pak

import (
	"io"
	"log/slog"
	"time"

	"github.com/woozymasta/pathrules"
)

// Default tuning values.
const (
	// DefaultChunkSize is payload copy chunk size for extraction and build.
	DefaultChunkSize = 8 * 1024
	// DefaultWriteBuffer is buffered writer size used for header and table output.
	DefaultWriteBuffer = 64 * 1024
)

// Entry describes a single file record from the archive entry table.
type Entry struct {
	// Name is archive-relative file name as stored in table.
	Name string `json:"name" yaml:"name"`
	// Offset is absolute byte offset of entry payload.
	Offset uint32 `json:"offset" yaml:"offset"`
	// Size is payload size in bytes.
	Size uint32 `json:"size" yaml:"size"`
}

// Detail returns positional info of the entry.
func (e Entry) Detail() Detail {
	return Detail{Offset: e.Offset, Size: e.Size}
}

// End returns absolute offset right after entry payload.
func (e Entry) End() int64 {
	return int64(e.Offset) + int64(e.Size)
}

// Detail is resolved positional info of a stored file.
type Detail struct {
	Offset uint32 `json:"offset" yaml:"offset"`
	Size   uint32 `json:"size" yaml:"size"`
}

// Input describes one source stream to be stored in the archive.
type Input struct {
	// Open returns source stream positioned at the first payload byte.
	Open func() (io.ReadCloser, error) `json:"-" yaml:"-"`
	// Name is destination name inside archive.
	Name string `json:"name" yaml:"name"`
	// Size is exact source length in bytes.
	Size int64 `json:"size" yaml:"size"`
}

// BuildEntryProgress contains one completed entry write event from build flow.
type BuildEntryProgress struct {
	// Name is entry name written to archive.
	Name string `json:"name" yaml:"name"`
	// Offset is payload offset in resulting archive.
	Offset uint32 `json:"offset" yaml:"offset"`
	// Size is payload size in bytes.
	Size uint32 `json:"size" yaml:"size"`
}

// BuildOptions configures Builder behavior.
type BuildOptions struct {
	// Logger receives debug events; nil discards them.
	Logger *slog.Logger `json:"-" yaml:"-"`
	// OnEntryDone is called after one entry payload is fully written.
	OnEntryDone func(entry BuildEntryProgress) `json:"-" yaml:"-"`
	// WriterBufferSize is buffered writer size in bytes.
	WriterBufferSize int `json:"writer_buffer_size,omitempty" yaml:"writer_buffer_size,omitempty"`
	// ChunkSize is payload copy chunk size in bytes.
	ChunkSize int `json:"chunk_size,omitempty" yaml:"chunk_size,omitempty"`
}

// BuildResult contains write output statistics.
type BuildResult struct {
	// WrittenEntries is number of entries written to archive.
	WrittenEntries int `json:"written_entries" yaml:"written_entries"`
	// TableSize is entry table size in bytes.
	TableSize int64 `json:"table_size" yaml:"table_size"`
	// DataSize is total payload bytes written.
	DataSize int64 `json:"data_size" yaml:"data_size"`
	// Duration is end-to-end write duration.
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// ReaderOptions configures Reader behavior.
type ReaderOptions struct {
	// Logger receives debug events; nil discards them.
	Logger *slog.Logger `json:"-" yaml:"-"`
	// ChunkSize is extraction copy chunk size in bytes.
	ChunkSize int `json:"chunk_size,omitempty" yaml:"chunk_size,omitempty"`
}

// ExtractOptions configures Extract behavior.
type ExtractOptions struct {
	// OnEntryDone is called after one entry is fully written to disk.
	OnEntryDone func(entry Entry, written int64, outputPath string) `json:"-" yaml:"-"`
	// Prefix limits extraction to names under this directory (or exact file name).
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	// FileMode controls output file creation policy.
	FileMode ExtractFileMode `json:"file_mode,omitempty" yaml:"file_mode,omitempty"`
	// MaxWorkers is number of extraction workers (zero means GOMAXPROCS).
	MaxWorkers int `json:"max_workers,omitempty" yaml:"max_workers,omitempty"`
}

// ExtractFileMode controls output file open behavior during extraction.
type ExtractFileMode string

// Output file creation policies for extraction.
const (
	// ExtractFileModeTruncate opens existing files with truncate and creates missing files.
	ExtractFileModeTruncate ExtractFileMode = "truncate"
	// ExtractFileModeCreateOnly creates files only when absent and fails on existing files.
	ExtractFileModeCreateOnly ExtractFileMode = "create_only"
)

// CollectOptions configures directory collection for build inputs.
type CollectOptions struct {
	// Rules are ordered include/exclude rules matched against slash-separated relative paths.
	Rules []pathrules.Rule `json:"rules,omitempty" yaml:"rules,omitempty"`
	// MatcherOptions control rule matching; default action is include.
	MatcherOptions pathrules.MatcherOptions `json:"matcher_options,omitzero" yaml:"matcher_options,omitzero"`
	// Prefix is prepended to every collected archive name.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// applyDefaults fills zero-valued build options with defaults.
func (opts *BuildOptions) applyDefaults() {
	if opts.WriterBufferSize < 4096 {
		opts.WriterBufferSize = DefaultWriteBuffer
	}

	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}

	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
}

// applyDefaults fills zero-valued reader options with defaults.
func (opts *ReaderOptions) applyDefaults() {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}

	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
}

// applyDefaults fills zero-valued extract options with defaults.
func (opts *ExtractOptions) applyDefaults() {
	if opts.FileMode == "" {
		opts.FileMode = ExtractFileModeTruncate
	}
}

// applyDefaults fills zero-valued collect options with defaults.
func (opts *CollectOptions) applyDefaults() {
	if opts.MatcherOptions.DefaultAction == pathrules.ActionUnknown {
		opts.MatcherOptions.DefaultAction = pathrules.ActionInclude
	}
}

// discardLogger returns a logger that drops every record.
func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
