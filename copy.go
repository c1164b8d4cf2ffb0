// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pak

package pak

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// copyBufferPool reuses default-sized payload copy buffers.
var copyBufferPool = sync.Pool{
	New: func() any {
		return new([DefaultChunkSize]byte)
	},
}

// acquireCopyBuffer returns a chunk buffer of given size and release callback.
func acquireCopyBuffer(size int) ([]byte, func()) {
	if size != DefaultChunkSize {
		return make([]byte, size), func() {}
	}

	arr := copyBufferPool.Get().(*[DefaultChunkSize]byte) //nolint:forcetypeassert // pool contains only fixed-size buffers
	return arr[:], func() {
		copyBufferPool.Put(arr)
	}
}

// copyChunked copies exactly size bytes from src to dst in len(buf) chunks.
// The last chunk is the remainder. A short source fails with io.ErrUnexpectedEOF.
func copyChunked(dst io.Writer, src io.Reader, size int64, buf []byte) (int64, error) {
	if dst == nil {
		return 0, ErrNilWriter
	}
	if src == nil {
		return 0, ErrNilReader
	}
	if len(buf) == 0 {
		return 0, io.ErrShortBuffer
	}

	var written int64
	for written < size {
		chunk := buf
		if remaining := size - written; int64(len(chunk)) > remaining {
			chunk = chunk[:remaining]
		}

		readN, readErr := io.ReadFull(src, chunk)
		if readN > 0 {
			writeN, writeErr := dst.Write(chunk[:readN])
			written += int64(writeN)

			if writeErr != nil {
				return written, writeErr
			}
			if writeN != readN {
				return written, io.ErrShortWrite
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
				return written, fmt.Errorf("short read (%d/%d): %w", written, size, io.ErrUnexpectedEOF)
			}

			return written, readErr
		}
	}

	return written, nil
}

// probeExhausted reports an error when src still yields data.
// Empty reads without EOF do not count as exhausted.
func probeExhausted(src io.Reader) error {
	var probe [1]byte
	_, err := io.ReadFull(src, probe[:])
	switch {
	case err == nil:
		return ErrSourceSizeChanged
	case errors.Is(err, io.EOF):
		return nil
	default:
		return err
	}
}
