// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pak

package pak

import (
	"fmt"
	"io"
	"os"
)

// ReadHeader opens a PAK and returns only the fixed header without parsing entry table.
func ReadHeader(path string) (Header, error) {
	f, size, err := openFileWithSize(path)
	if err != nil {
		return Header{}, err
	}
	defer func() { _ = f.Close() }()

	return ReadHeaderFromReaderAt(f, size)
}

// ReadHeaderFromReaderAt reads only the fixed header from a random-access source.
func ReadHeaderFromReaderAt(ra io.ReaderAt, size int64) (Header, error) {
	if ra == nil {
		return Header{}, ErrNilReader
	}

	return parseHeader(ra, size)
}

// ListEntries opens a PAK and returns entry table without payload reads.
func ListEntries(path string) ([]Entry, error) {
	f, size, err := openFileWithSize(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	return ListEntriesFromReaderAt(f, size)
}

// ListEntriesFromReaderAt parses entry table from a random-access source.
func ListEntriesFromReaderAt(ra io.ReaderAt, size int64) ([]Entry, error) {
	if ra == nil {
		return nil, ErrNilReader
	}

	_, entries, err := parseArchive(ra, size)
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// openFileWithSize opens a file and returns a handle plus current size.
func openFileWithSize(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrOpenFailed, err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("%w: stat: %w", ErrOpenFailed, err)
	}

	return f, fi.Size(), nil
}
