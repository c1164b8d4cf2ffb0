// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pak

package pak

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Binary layout and format limits.
const (
	headerSize   = 12             // fixed PAK header size in bytes
	entrySize    = 64             // fixed entry record size in bytes
	maxNameLen   = 56             // name field width in entry record
	maxEntrySize = math.MaxUint32 // max payload size of one entry

	entryOffsetField = 56 // byte position of offset field in entry record
	entrySizeField   = 60 // byte position of size field in entry record
)

// magic is the 4-byte archive tag at offset 0.
var magic = [4]byte{'P', 'A', 'C', 'K'}

// Header is the fixed 12-byte archive header.
type Header struct {
	// TableOffset is absolute offset of the entry table.
	TableOffset uint32 `json:"table_offset" yaml:"table_offset"`
	// TableSize is entry table size in bytes.
	TableSize uint32 `json:"table_size" yaml:"table_size"`
}

// EntryCount returns number of whole entry records described by the header.
func (h Header) EntryCount() int {
	return int(h.TableSize / entrySize)
}

// encodeHeader writes h into dst, which must hold at least headerSize bytes.
func encodeHeader(dst []byte, h Header) {
	copy(dst[0:4], magic[:])
	binary.LittleEndian.PutUint32(dst[4:8], h.TableOffset)
	binary.LittleEndian.PutUint32(dst[8:12], h.TableSize)
}

// decodeHeader parses fixed header bytes and validates the magic tag.
func decodeHeader(src []byte) (Header, error) {
	if len(src) < headerSize {
		return Header{}, fmt.Errorf("%w: short header", ErrInvalidHeader)
	}
	if !bytes.Equal(src[0:4], magic[:]) {
		return Header{}, fmt.Errorf("%w: bad magic %q", ErrInvalidHeader, src[0:4])
	}

	return Header{
		TableOffset: binary.LittleEndian.Uint32(src[4:8]),
		TableSize:   binary.LittleEndian.Uint32(src[8:12]),
	}, nil
}

// encodeEntry writes one entry record into dst, which must hold at least entrySize bytes.
// Unused name bytes are zero-filled.
func encodeEntry(dst []byte, e Entry) error {
	if len(e.Name) > maxNameLen {
		return fmt.Errorf("%w: %q is %d bytes", ErrNameTooLong, e.Name, len(e.Name))
	}

	clear(dst[:maxNameLen])
	copy(dst[:maxNameLen], e.Name)
	binary.LittleEndian.PutUint32(dst[entryOffsetField:entrySizeField], e.Offset)
	binary.LittleEndian.PutUint32(dst[entrySizeField:entrySize], e.Size)
	return nil
}

// decodeEntry parses one entry record from src, which must hold at least entrySize bytes.
func decodeEntry(src []byte) Entry {
	return Entry{
		Name:   decodeName(src[:maxNameLen]),
		Offset: binary.LittleEndian.Uint32(src[entryOffsetField:entrySizeField]),
		Size:   binary.LittleEndian.Uint32(src[entrySizeField:entrySize]),
	}
}

// decodeName returns bytes up to the first NUL, or the whole field when it has none.
func decodeName(field []byte) string {
	if idx := bytes.IndexByte(field, 0); idx >= 0 {
		return string(field[:idx])
	}

	return string(field)
}
