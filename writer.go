// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pak

package pak

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// defaultBuildWriterPool reuses default-sized bufio writers between Write calls.
var defaultBuildWriterPool = sync.Pool{
	New: func() any {
		return bufio.NewWriterSize(io.Discard, DefaultWriteBuffer)
	},
}

// pendingFile is one registered build input with its snapshotted size.
type pendingFile struct {
	input Input
	name  string
	size  uint32
}

// Builder collects inputs and writes them as a new PAK archive.
//
// Entries are written in registration order. Duplicate names are kept;
// readers resolve a name to the last registered entry. A Builder is not
// safe for concurrent use.
type Builder struct {
	opts    BuildOptions
	pending []pendingFile
}

// NewBuilder returns an empty Builder configured by opts.
func NewBuilder(opts BuildOptions) *Builder {
	opts.applyDefaults()

	return &Builder{opts: opts}
}

// Len returns number of registered inputs.
func (b *Builder) Len() int {
	return len(b.pending)
}

// Add registers one input. The input size is captured now and must still
// match when Write streams the source. A rejected input leaves the Builder unchanged.
func (b *Builder) Add(in Input) error {
	if err := validateEntryName(in.Name); err != nil {
		return err
	}

	if in.Size < 0 || in.Size > maxEntrySize {
		return fmt.Errorf("%w: entry %s size %d", ErrSizeTooLarge, in.Name, in.Size)
	}

	if in.Open == nil {
		return fmt.Errorf("input %s: %w", in.Name, ErrNilReader)
	}

	b.pending = append(b.pending, pendingFile{
		input: in,
		name:  in.Name,
		size:  uint32(in.Size), //nolint:gosec // bounded by maxEntrySize check above
	})

	return nil
}

// AddFile registers the file at diskPath under archive name.
func (b *Builder) AddFile(diskPath string, name string) error {
	if err := validateEntryName(name); err != nil {
		return err
	}

	fi, err := os.Stat(diskPath)
	if err != nil {
		return fmt.Errorf("%w: stat %s: %w", ErrOpenFailed, diskPath, err)
	}

	if !fi.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrOpenFailed, diskPath)
	}

	return b.Add(fileInput(diskPath, name, fi.Size()))
}

// AddBytes registers in-memory data under archive name.
// The Builder keeps a reference to data until Write completes.
func (b *Builder) AddBytes(name string, data []byte) error {
	return b.Add(Input{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	})
}

// Layout returns the header and entry table that Write would produce.
func (b *Builder) Layout() (Header, []Entry, error) {
	return planLayout(b.pending)
}

// WriteFile creates or truncates outPath and writes the archive into it.
// On failure the output file may be left partially written.
func (b *Builder) WriteFile(ctx context.Context, outPath string) (*BuildResult, error) {
	f, err := os.OpenFile(outPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrWriteFailed, outPath, err)
	}
	defer func() {
		if f != nil {
			_ = f.Close()
		}
	}()

	res, err := b.Write(ctx, f)
	if err != nil {
		return nil, err
	}

	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("%w: sync %s: %w", ErrWriteFailed, outPath, err)
	}

	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("%w: close %s: %w", ErrWriteFailed, outPath, err)
	}
	f = nil

	return res, nil
}

// Write writes the archive to out in two passes: header and entry table first,
// then each payload at its planned offset. The archive starts at offset zero of out.
// On success the registered inputs are released.
func (b *Builder) Write(ctx context.Context, out io.WriteSeeker) (*BuildResult, error) {
	startedAt := time.Now()

	if out == nil {
		return nil, ErrNilWriter
	}

	if ctx == nil {
		ctx = context.Background()
	}

	header, entries, err := planLayout(b.pending)
	if err != nil {
		return nil, err
	}

	log := b.log()
	log.Debug("writing archive", "entries", len(entries), "table_size", header.TableSize)

	if _, err := out.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: seek to start: %w", ErrWriteFailed, err)
	}

	w, releaseWriter := acquireBuildWriter(out, b.opts.WriterBufferSize)
	defer releaseWriter()

	if err := writeTable(w, header, entries); err != nil {
		return nil, err
	}

	buf, releaseBuf := acquireCopyBuffer(b.opts.ChunkSize)
	defer releaseBuf()

	var dataSize int64
	for i, p := range b.pending {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if _, err := out.Seek(int64(entries[i].Offset), io.SeekStart); err != nil {
			return nil, fmt.Errorf("%w: seek to entry %s: %w", ErrWriteFailed, p.name, err)
		}

		if err := writePendingPayload(w, p, buf); err != nil {
			return nil, err
		}

		if err := w.Flush(); err != nil {
			return nil, fmt.Errorf("%w: flush entry %s: %w", ErrWriteFailed, p.name, err)
		}

		dataSize += int64(p.size)
		if b.opts.OnEntryDone != nil {
			b.opts.OnEntryDone(BuildEntryProgress{
				Name:   p.name,
				Offset: entries[i].Offset,
				Size:   p.size,
			})
		}
	}

	res := &BuildResult{
		WrittenEntries: len(entries),
		TableSize:      int64(header.TableSize),
		DataSize:       dataSize,
		Duration:       time.Since(startedAt),
	}

	b.pending = nil
	log.Debug("archive written", "entries", res.WrittenEntries, "data_size", res.DataSize, "duration", res.Duration)
	return res, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (b *Builder) log() *slog.Logger {
	if b.opts.Logger == nil {
		return discardLogger()
	}

	return b.opts.Logger
}

// planLayout assigns cumulative payload offsets right after the entry table.
func planLayout(pending []pendingFile) (Header, []Entry, error) {
	tableSize := int64(len(pending)) * entrySize
	dataStart := int64(headerSize) + tableSize
	if dataStart > maxEntrySize {
		return Header{}, nil, fmt.Errorf("%w: entry table for %d entries", ErrSizeTooLarge, len(pending))
	}

	header := Header{
		TableOffset: headerSize,
		TableSize:   uint32(tableSize), //nolint:gosec // bounded by dataStart check above
	}

	entries := make([]Entry, len(pending))
	current := dataStart
	for i, p := range pending {
		end := current + int64(p.size)
		if end > maxEntrySize {
			return Header{}, nil, fmt.Errorf("%w: entry %s ends at %d", ErrSizeTooLarge, p.name, end)
		}

		entries[i] = Entry{
			Name:   p.name,
			Offset: uint32(current), //nolint:gosec // bounded by end check above
			Size:   p.size,
		}
		current = end
	}

	return header, entries, nil
}

// writeTable writes header and entry records, then flushes.
func writeTable(w *bufio.Writer, header Header, entries []Entry) error {
	var raw [headerSize]byte
	encodeHeader(raw[:], header)
	if _, err := w.Write(raw[:]); err != nil {
		return fmt.Errorf("%w: write header: %w", ErrWriteFailed, err)
	}

	var record [entrySize]byte
	for _, e := range entries {
		if err := encodeEntry(record[:], e); err != nil {
			return err
		}

		if _, err := w.Write(record[:]); err != nil {
			return fmt.Errorf("%w: write entry %s: %w", ErrWriteFailed, e.Name, err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("%w: flush entry table: %w", ErrWriteFailed, err)
	}

	return nil
}

// writePendingPayload opens one source and streams exactly its registered size.
func writePendingPayload(dst io.Writer, p pendingFile, buf []byte) error {
	rc, err := p.input.Open()
	if err != nil {
		return fmt.Errorf("%w: open source %s: %w", ErrWriteFailed, p.name, err)
	}

	_, copyErr := copyChunked(dst, rc, int64(p.size), buf)
	switch {
	case copyErr == nil:
		if probeErr := probeExhausted(rc); probeErr != nil {
			copyErr = fmt.Errorf("%w: source %s is longer than %d bytes", probeErr, p.name, p.size)
		}
	case errors.Is(copyErr, io.ErrUnexpectedEOF):
		copyErr = fmt.Errorf("%w: source %s: %w", ErrSourceSizeChanged, p.name, copyErr)
	default:
		copyErr = fmt.Errorf("%w: stream source %s: %w", ErrWriteFailed, p.name, copyErr)
	}

	closeErr := rc.Close()
	if copyErr != nil {
		return copyErr
	}

	if closeErr != nil {
		return fmt.Errorf("close source %s: %w", p.name, closeErr)
	}

	return nil
}

// acquireBuildWriter returns a buffered writer and release callback.
func acquireBuildWriter(out io.Writer, size int) (*bufio.Writer, func()) {
	if size == DefaultWriteBuffer {
		w := defaultBuildWriterPool.Get().(*bufio.Writer) //nolint:forcetypeassert // pool contains only *bufio.Writer
		w.Reset(out)

		return w, func() {
			w.Reset(io.Discard)
			defaultBuildWriterPool.Put(w)
		}
	}

	return bufio.NewWriterSize(out, size), func() {}
}

// validateEntryName checks that name fits the fixed-width name field.
func validateEntryName(name string) error {
	if len(name) > maxNameLen {
		return fmt.Errorf("%w: %q is %d bytes, limit %d", ErrNameTooLong, name, len(name), maxNameLen)
	}

	if strings.IndexByte(name, 0) >= 0 {
		return fmt.Errorf("%w: %q contains NUL byte", ErrInvalidName, name)
	}

	return nil
}

// fileInput builds an Input reading the file at diskPath.
func fileInput(diskPath string, name string, size int64) Input {
	return Input{
		Name: name,
		Size: size,
		Open: func() (io.ReadCloser, error) {
			return os.Open(diskPath)
		},
	}
}
