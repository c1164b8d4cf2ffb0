// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pak

package pak

import "errors"

// Sentinel errors for PAK operations. Use errors.Is in callers.
var (
	// ErrOpenFailed means the archive source could not be opened for read.
	ErrOpenFailed = errors.New("open PAK archive failed")
	// ErrInvalidHeader means the archive is shorter than the header or has a bad magic tag.
	ErrInvalidHeader = errors.New("invalid PAK file: missing or bad header")
	// ErrInvalidFileEntry means the entry table is truncated or malformed.
	ErrInvalidFileEntry = errors.New("invalid PAK file entry table")
	// ErrNotFound means no entry with the requested name exists.
	ErrNotFound = errors.New("entry not found")
	// ErrWriteFailed means the output could not be created or a build source could not be opened.
	ErrWriteFailed = errors.New("write PAK archive failed")
	// ErrNameTooLong means the archive name exceeds the 56-byte name field.
	ErrNameTooLong = errors.New("entry name exceeds maximum length")
	// ErrSizeTooLarge means an entry size or archive offset exceeds the uint32 range.
	ErrSizeTooLarge = errors.New("size exceeds uint32 or 4 GiB PAK limit")
	// ErrInvalidName means the archive name cannot be stored in the name field.
	ErrInvalidName = errors.New("invalid entry name")
	// ErrSourceSizeChanged means a build source no longer matches the size captured on registration.
	ErrSourceSizeChanged = errors.New("source size changed since registration")
	// ErrNilReader means the reader or source is nil.
	ErrNilReader = errors.New("reader is nil")
	// ErrNilWriter means the writer is nil.
	ErrNilWriter = errors.New("writer is nil")
	// ErrClosed means the reader has no open archive.
	ErrClosed = errors.New("reader is closed")
	// ErrInvalidExtractPath means archive entry name is invalid for extraction destination.
	ErrInvalidExtractPath = errors.New("invalid extract path")
	// ErrInvalidCollectRules means one or more directory collection rules are invalid.
	ErrInvalidCollectRules = errors.New("invalid collect rules")
)
