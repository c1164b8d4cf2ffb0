// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pak

package pak

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"sync"
)

// readerTableBufferSize is a sequential read buffer for entry table parsing.
const readerTableBufferSize = 64 * 1024

// entryTableReaderPool reuses buffered readers for sequential table parsing.
var entryTableReaderPool = sync.Pool{
	New: func() any {
		return bufio.NewReaderSize(bytes.NewReader(nil), readerTableBufferSize)
	},
}

// Reader provides read-only access to a PAK archive.
//
// A zero Reader is closed and usable. Open and Close mutate reader state and
// must not run concurrently with other calls. Payload reads use positioned
// reads, so ReadFile, OpenEntry and extraction may run in parallel on an
// open reader.
type Reader struct {
	// ra is the random-access source of the open archive; nil when closed.
	ra io.ReaderAt
	// file is set when Reader owns an *os.File opened via Open.
	file *os.File
	// lastErr is the error of the last Open call.
	lastErr error
	// logger receives debug events.
	logger *slog.Logger
	// index maps entry name to position in entries; later duplicates win.
	index map[string]int
	// entries stores the entry table in storage order.
	entries []Entry
	// size is total archive size in bytes.
	size int64
	// chunkSize is extraction copy chunk size.
	chunkSize int
}

// NewReader returns a closed Reader configured by opts.
func NewReader(opts ReaderOptions) *Reader {
	opts.applyDefaults()

	return &Reader{
		logger:    opts.Logger,
		chunkSize: opts.ChunkSize,
	}
}

// Open opens PAK archive by path and loads its entry table.
func Open(path string) (*Reader, error) {
	return OpenWithOptions(path, ReaderOptions{})
}

// OpenWithOptions opens PAK archive by path using explicit reader options.
func OpenWithOptions(path string, opts ReaderOptions) (*Reader, error) {
	r := NewReader(opts)
	if err := r.Open(path); err != nil {
		return nil, err
	}

	return r, nil
}

// NewReaderFromReaderAt loads PAK archive from existing ReaderAt and known size.
// The returned Reader does not own ra.
func NewReaderFromReaderAt(ra io.ReaderAt, size int64) (*Reader, error) {
	r := NewReader(ReaderOptions{})
	if err := r.OpenReaderAt(ra, size); err != nil {
		return nil, err
	}

	return r, nil
}

// Open releases any open archive, then opens the file at path.
// On failure the reader stays closed and LastError reports the cause.
func (r *Reader) Open(path string) error {
	_ = r.Close()
	r.lastErr = nil

	f, err := os.Open(path)
	if err != nil {
		return r.fail(fmt.Errorf("%w: %w", ErrOpenFailed, err))
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return r.fail(fmt.Errorf("%w: stat: %w", ErrOpenFailed, err))
	}

	if err := r.load(f, fi.Size()); err != nil {
		_ = f.Close()
		return r.fail(err)
	}

	r.file = f
	r.log().Debug("opened archive", "path", path, "size", fi.Size(), "entries", len(r.entries))
	return nil
}

// OpenReaderAt releases any open archive, then loads archive from ra of given size.
// The reader does not take ownership of ra.
func (r *Reader) OpenReaderAt(ra io.ReaderAt, size int64) error {
	_ = r.Close()
	r.lastErr = nil

	if ra == nil {
		return r.fail(fmt.Errorf("%w: %w", ErrOpenFailed, ErrNilReader))
	}

	if err := r.load(ra, size); err != nil {
		return r.fail(err)
	}

	r.log().Debug("opened archive", "size", size, "entries", len(r.entries))
	return nil
}

// Close releases the underlying file if reader owns one and clears the entry table.
// Calling Close on a closed reader is a no-op.
func (r *Reader) Close() error {
	var err error
	if r.file != nil {
		err = r.file.Close()
	}

	r.file = nil
	r.ra = nil
	r.size = 0
	r.entries = nil
	r.index = nil
	return err
}

// Good reports whether an archive is open and the last Open succeeded.
func (r *Reader) Good() bool {
	return r != nil && r.ra != nil && r.lastErr == nil
}

// LastError returns the error of the last Open call, or nil.
func (r *Reader) LastError() error {
	if r == nil {
		return nil
	}

	return r.lastErr
}

// FileCount returns number of loaded entries; zero when closed.
func (r *Reader) FileCount() int {
	if r == nil {
		return 0
	}

	return len(r.entries)
}

// Size returns total archive size in bytes; zero when closed.
func (r *Reader) Size() int64 {
	if r == nil {
		return 0
	}

	return r.size
}

// Entries returns a copy of the entry table in storage order.
func (r *Reader) Entries() []Entry {
	if r == nil {
		return nil
	}

	entries := make([]Entry, len(r.entries))
	copy(entries, r.entries)
	return entries
}

// All returns a sequence of (name, detail) pairs in storage order.
// Each range over the sequence starts from the first entry.
func (r *Reader) All() iter.Seq2[string, Detail] {
	var entries []Entry
	if r != nil {
		entries = r.entries
	}

	return func(yield func(string, Detail) bool) {
		for _, e := range entries {
			if !yield(e.Name, e.Detail()) {
				return
			}
		}
	}
}

// Stat returns positional info of the named entry without payload reads.
func (r *Reader) Stat(name string) (Detail, error) {
	e, err := r.lookup(name)
	if err != nil {
		return Detail{}, err
	}

	return e.Detail(), nil
}

// lookup resolves one entry by exact name.
func (r *Reader) lookup(name string) (Entry, error) {
	if r != nil {
		if idx, ok := r.index[name]; ok {
			return r.entries[idx], nil
		}
	}

	return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// fail records err as last error and returns it.
func (r *Reader) fail(err error) error {
	r.lastErr = err
	r.log().Debug("open archive failed", "error", err)
	return err
}

// log returns the logger, falling back to a discard logger if nil.
func (r *Reader) log() *slog.Logger {
	if r.logger == nil {
		return discardLogger()
	}

	return r.logger
}

// load parses archive structure from ra and installs it on success.
func (r *Reader) load(ra io.ReaderAt, size int64) error {
	_, entries, err := parseArchive(ra, size)
	if err != nil {
		return err
	}

	if r.chunkSize <= 0 {
		r.chunkSize = DefaultChunkSize
	}

	r.ra = ra
	r.size = size
	r.entries = entries
	r.index = buildIndex(entries)
	return nil
}

// parseArchive reads and validates header and entry table from ReaderAt.
func parseArchive(ra io.ReaderAt, size int64) (Header, []Entry, error) {
	h, err := parseHeader(ra, size)
	if err != nil {
		return Header{}, nil, err
	}

	entries, err := parseEntryTable(ra, h, size)
	if err != nil {
		return Header{}, nil, err
	}

	return h, entries, nil
}

// parseHeader reads and validates the fixed header.
func parseHeader(ra io.ReaderAt, size int64) (Header, error) {
	if size < headerSize {
		return Header{}, fmt.Errorf("%w: short header (%d bytes)", ErrInvalidHeader, size)
	}

	var raw [headerSize]byte
	if _, err := ra.ReadAt(raw[:], 0); err != nil {
		return Header{}, fmt.Errorf("%w: read header: %w", ErrInvalidHeader, err)
	}

	return decodeHeader(raw[:])
}

// parseEntryTable decodes entry records one at a time from the table region.
func parseEntryTable(ra io.ReaderAt, h Header, size int64) ([]Entry, error) {
	if h.TableSize%entrySize != 0 {
		return nil, fmt.Errorf("%w: table size %d is not a multiple of %d", ErrInvalidFileEntry, h.TableSize, entrySize)
	}

	tableEnd := int64(h.TableOffset) + int64(h.TableSize)
	if tableEnd > size {
		return nil, fmt.Errorf("%w: table [%d, %d) exceeds archive size %d", ErrInvalidFileEntry, h.TableOffset, tableEnd, size)
	}

	count := h.EntryCount()
	entries := make([]Entry, 0, count)
	if count == 0 {
		return entries, nil
	}

	sr := io.NewSectionReader(ra, int64(h.TableOffset), int64(h.TableSize))
	br := entryTableReaderPool.Get().(*bufio.Reader) //nolint:forcetypeassert // pool contains only *bufio.Reader
	br.Reset(sr)
	defer func() {
		br.Reset(bytes.NewReader(nil))
		entryTableReaderPool.Put(br)
	}()

	var record [entrySize]byte
	for i := range count {
		if _, err := io.ReadFull(br, record[:]); err != nil {
			return nil, fmt.Errorf("%w: read entry %d: %w", ErrInvalidFileEntry, i, err)
		}

		e := decodeEntry(record[:])
		if e.End() > size {
			return nil, fmt.Errorf("%w: entry %q payload [%d, %d) exceeds archive size %d",
				ErrInvalidFileEntry, e.Name, e.Offset, e.End(), size)
		}

		entries = append(entries, e)
	}

	return entries, nil
}

// buildIndex maps entry names to table positions; a later duplicate overwrites an earlier one.
func buildIndex(entries []Entry) map[string]int {
	index := make(map[string]int, len(entries))
	for i := range entries {
		index[entries[i].Name] = i
	}

	return index
}
