// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pak

package pak

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// openEntrySection returns a positioned reader over the entry payload.
func (r *Reader) openEntrySection(e Entry) (*io.SectionReader, error) {
	if r.ra == nil {
		return nil, ErrClosed
	}

	return io.NewSectionReader(r.ra, int64(e.Offset), int64(e.Size)), nil
}

// OpenEntry opens named entry payload for reading.
// The section reader has its own position and does not affect other reads.
func (r *Reader) OpenEntry(name string) (*io.SectionReader, error) {
	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}

	return r.openEntrySection(e)
}

// ReadEntry reads full content of the named entry.
func (r *Reader) ReadEntry(name string) ([]byte, error) {
	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, e.Size)
	if _, err := r.readEntryInto(e, buf); err != nil {
		return nil, err
	}

	return buf, nil
}

// ReadFile reads the named entry into buf and returns number of bytes read.
// It reads exactly min(entry size, len(buf)) bytes from the entry start.
func (r *Reader) ReadFile(name string, buf []byte) (int, error) {
	e, err := r.lookup(name)
	if err != nil {
		return 0, err
	}

	n := len(buf)
	if int64(e.Size) < int64(n) {
		n = int(e.Size)
	}

	return r.readEntryInto(e, buf[:n])
}

// readEntryInto fills buf from the entry start; buf must not exceed entry size.
func (r *Reader) readEntryInto(e Entry, buf []byte) (int, error) {
	sr, err := r.openEntrySection(e)
	if err != nil {
		return 0, err
	}

	n, err := io.ReadFull(sr, buf)
	if err != nil {
		return n, fmt.Errorf("read entry %s: %w", e.Name, err)
	}

	return n, nil
}

// WriteEntryTo streams the named entry payload to w in fixed-size chunks.
// A short archive read fails with io.ErrUnexpectedEOF.
func (r *Reader) WriteEntryTo(name string, w io.Writer) (int64, error) {
	e, err := r.lookup(name)
	if err != nil {
		return 0, err
	}

	return r.writeEntry(e, w)
}

// writeEntry streams one resolved entry payload to w.
func (r *Reader) writeEntry(e Entry, w io.Writer) (int64, error) {
	sr, err := r.openEntrySection(e)
	if err != nil {
		return 0, err
	}

	buf, release := acquireCopyBuffer(r.chunkSize)
	defer release()

	written, err := copyChunked(w, sr, int64(e.Size), buf)
	if err != nil {
		return written, fmt.Errorf("extract %s: %w", e.Name, err)
	}

	return written, nil
}

// ExtractFile writes the named entry to outPath, creating or truncating it.
// On copy failure the partially written file is removed.
func (r *Reader) ExtractFile(name string, outPath string) error {
	e, err := r.lookup(name)
	if err != nil {
		return err
	}

	return r.extractEntryToPath(e, outPath, ExtractFileModeTruncate)
}

// extractEntryToPath creates outPath with selected mode and streams entry payload into it.
func (r *Reader) extractEntryToPath(e Entry, outPath string, mode ExtractFileMode) error {
	if r.ra == nil {
		return ErrClosed
	}

	file, err := openExtractFile(outPath, mode)
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrWriteFailed, outPath, err)
	}

	written, copyErr := r.writeEntry(e, file)
	closeErr := file.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(outPath)
		return errors.Join(copyErr, closeErr)
	}

	r.log().Debug("extracted entry", "name", e.Name, "path", outPath, "bytes", written)
	return nil
}

// openExtractFile opens output path according to selected extract file mode.
func openExtractFile(path string, mode ExtractFileMode) (*os.File, error) {
	switch mode {
	case ExtractFileModeTruncate, "":
		return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	case ExtractFileModeCreateOnly:
		return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	default:
		return nil, fmt.Errorf("unknown extract file mode %q", mode)
	}
}
