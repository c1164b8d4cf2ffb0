// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pak

package pak

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// failingReader returns err after yielding data.
type failingReader struct {
	err  error
	data []byte
}

func (f *failingReader) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, f.err
	}

	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

// chunkedReader yields chunks one Read at a time; an empty chunk is a (0, nil) read.
type chunkedReader struct {
	chunks [][]byte
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}

	n := copy(p, c.chunks[0])
	c.chunks[0] = c.chunks[0][n:]
	if len(c.chunks[0]) == 0 {
		c.chunks = c.chunks[1:]
	}

	return n, nil
}

func TestBuilderAdd_NameTooLong(t *testing.T) {
	t.Parallel()

	b := NewBuilder(BuildOptions{})
	if err := b.AddBytes("keep", []byte("x")); err != nil {
		t.Fatalf("AddBytes: %v", err)
	}

	err := b.AddBytes(strings.Repeat("a", maxNameLen+1), []byte("x"))
	if !errors.Is(err, ErrNameTooLong) {
		t.Fatalf("AddBytes 57-byte name err=%v, want ErrNameTooLong", err)
	}
	if b.Len() != 1 {
		t.Fatalf("Len=%d after rejected add, want 1", b.Len())
	}

	if err := b.AddBytes(strings.Repeat("a", maxNameLen), []byte("x")); err != nil {
		t.Fatalf("AddBytes 56-byte name: %v", err)
	}
	if b.Len() != 2 {
		t.Fatalf("Len=%d, want 2", b.Len())
	}
}

func TestBuilderAdd_Rejections(t *testing.T) {
	t.Parallel()

	open := func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(nil)), nil }

	testCases := []struct {
		name string
		in   Input
		want error
	}{
		{name: "nul in name", in: Input{Name: "a\x00b", Open: open}, want: ErrInvalidName},
		{name: "size above uint32", in: Input{Name: "big", Size: maxEntrySize + 1, Open: open}, want: ErrSizeTooLarge},
		{name: "negative size", in: Input{Name: "neg", Size: -1, Open: open}, want: ErrSizeTooLarge},
		{name: "nil open", in: Input{Name: "nil"}, want: ErrNilReader},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			b := NewBuilder(BuildOptions{})
			if err := b.Add(tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("Add err=%v, want %v", err, tc.want)
			}
			if b.Len() != 0 {
				t.Fatalf("Len=%d after rejected add, want 0", b.Len())
			}
		})
	}
}

func TestBuilderAdd_MaxSizeAccepted(t *testing.T) {
	t.Parallel()

	b := NewBuilder(BuildOptions{})
	err := b.Add(Input{
		Name: "huge",
		Size: maxEntrySize,
		Open: func() (io.ReadCloser, error) { return nil, errors.New("not read") },
	})
	if err != nil {
		t.Fatalf("Add max size: %v", err)
	}

	// Table and header push the payload end past the uint32 range.
	if _, _, err := b.Layout(); !errors.Is(err, ErrSizeTooLarge) {
		t.Fatalf("Layout err=%v, want ErrSizeTooLarge", err)
	}

	if _, err := b.Write(context.Background(), &seekBuffer{}); !errors.Is(err, ErrSizeTooLarge) {
		t.Fatalf("Write err=%v, want ErrSizeTooLarge", err)
	}
}

func TestBuilderAddFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "progs.dat")
	if err := os.WriteFile(src, []byte("bytecode"), 0o600); err != nil {
		t.Fatalf("write source: %v", err)
	}

	b := NewBuilder(BuildOptions{})
	if err := b.AddFile(src, "progs.dat"); err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	if err := b.AddFile(filepath.Join(dir, "missing"), "missing"); !errors.Is(err, ErrOpenFailed) {
		t.Fatalf("AddFile missing err=%v, want ErrOpenFailed", err)
	}
	if err := b.AddFile(dir, "dir"); !errors.Is(err, ErrOpenFailed) {
		t.Fatalf("AddFile dir err=%v, want ErrOpenFailed", err)
	}
	if err := b.AddFile(src, strings.Repeat("p", maxNameLen+1)); !errors.Is(err, ErrNameTooLong) {
		t.Fatalf("AddFile long name err=%v, want ErrNameTooLong", err)
	}

	out := filepath.Join(dir, "out.pak")
	if _, err := b.WriteFile(context.Background(), out); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	r, err := Open(out)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = r.Close() }()

	got, err := r.ReadEntry("progs.dat")
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if string(got) != "bytecode" {
		t.Fatalf("ReadEntry=%q, want bytecode", got)
	}
}

func TestBuilderWrite_ByteLayout(t *testing.T) {
	t.Parallel()

	b := NewBuilder(BuildOptions{})
	if err := b.AddBytes("a.txt", []byte("AAAA")); err != nil {
		t.Fatalf("AddBytes: %v", err)
	}
	if err := b.AddBytes("dir/b.txt", []byte("BB")); err != nil {
		t.Fatalf("AddBytes: %v", err)
	}

	var out seekBuffer
	res, err := b.Write(context.Background(), &out)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	raw := out.Bytes()
	wantLen := headerSize + 2*entrySize + 6
	if len(raw) != wantLen {
		t.Fatalf("archive len=%d, want %d", len(raw), wantLen)
	}

	if string(raw[0:4]) != "PACK" {
		t.Fatalf("magic=%q, want PACK", raw[0:4])
	}
	if got := binary.LittleEndian.Uint32(raw[4:8]); got != headerSize {
		t.Fatalf("table offset=%d, want %d", got, headerSize)
	}
	if got := binary.LittleEndian.Uint32(raw[8:12]); got != 2*entrySize {
		t.Fatalf("table size=%d, want %d", got, 2*entrySize)
	}

	first := raw[headerSize : headerSize+entrySize]
	if !bytes.Equal(first[:5], []byte("a.txt")) {
		t.Fatalf("first name=%q", first[:5])
	}
	if !bytes.Equal(first[5:maxNameLen], make([]byte, maxNameLen-5)) {
		t.Fatal("name field tail is not zero filled")
	}
	if got := binary.LittleEndian.Uint32(first[56:60]); got != headerSize+2*entrySize {
		t.Fatalf("first offset=%d, want %d", got, headerSize+2*entrySize)
	}
	if got := binary.LittleEndian.Uint32(first[60:64]); got != 4 {
		t.Fatalf("first size=%d, want 4", got)
	}

	second := raw[headerSize+entrySize : headerSize+2*entrySize]
	if got := binary.LittleEndian.Uint32(second[56:60]); got != headerSize+2*entrySize+4 {
		t.Fatalf("second offset=%d, want %d", got, headerSize+2*entrySize+4)
	}

	if string(raw[headerSize+2*entrySize:]) != "AAAABB" {
		t.Fatalf("data region=%q, want AAAABB", raw[headerSize+2*entrySize:])
	}

	if res.WrittenEntries != 2 || res.TableSize != 2*entrySize || res.DataSize != 6 {
		t.Fatalf("result=%+v", res)
	}
	if b.Len() != 0 {
		t.Fatalf("Len=%d after successful write, want 0", b.Len())
	}
}

func TestBuilderWrite_Deterministic(t *testing.T) {
	t.Parallel()

	files := []testFile{
		{name: "z.bin", data: bytes.Repeat([]byte{1, 2, 3}, 5000)},
		{name: "a.bin", data: []byte("first registered is not first sorted")},
		{name: "m/n.bin", data: nil},
	}

	first, err := os.ReadFile(buildArchive(t, files))
	if err != nil {
		t.Fatalf("read first: %v", err)
	}
	second, err := os.ReadFile(buildArchive(t, files))
	if err != nil {
		t.Fatalf("read second: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Fatal("two builds of the same inputs differ")
	}

	entries, err := ListEntriesFromReaderAt(bytes.NewReader(first), int64(len(first)))
	if err != nil {
		t.Fatalf("ListEntriesFromReaderAt: %v", err)
	}
	for i, f := range files {
		if entries[i].Name != f.name {
			t.Fatalf("entry %d name=%q, want registration order %q", i, entries[i].Name, f.name)
		}
	}
}

func TestBuilderLayout_MatchesWrite(t *testing.T) {
	t.Parallel()

	b := NewBuilder(BuildOptions{})
	for _, f := range []testFile{
		{name: "a", data: []byte("1")},
		{name: "b", data: []byte("22")},
		{name: "a", data: []byte("333")},
	} {
		if err := b.AddBytes(f.name, f.data); err != nil {
			t.Fatalf("AddBytes: %v", err)
		}
	}

	header, planned, err := b.Layout()
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if header.TableOffset != headerSize || header.EntryCount() != 3 {
		t.Fatalf("header=%+v", header)
	}

	var progress []BuildEntryProgress
	b.opts.OnEntryDone = func(entry BuildEntryProgress) {
		progress = append(progress, entry)
	}

	var out seekBuffer
	if _, err := b.Write(context.Background(), &out); err != nil {
		t.Fatalf("Write: %v", err)
	}

	written, err := ListEntriesFromReaderAt(bytes.NewReader(out.Bytes()), int64(out.Len()))
	if err != nil {
		t.Fatalf("ListEntriesFromReaderAt: %v", err)
	}

	if len(written) != len(planned) || len(progress) != len(planned) {
		t.Fatalf("written=%d progress=%d planned=%d", len(written), len(progress), len(planned))
	}
	for i := range planned {
		if written[i] != planned[i] {
			t.Fatalf("entry %d written=%+v, planned %+v", i, written[i], planned[i])
		}
		if progress[i].Offset != planned[i].Offset || progress[i].Size != planned[i].Size {
			t.Fatalf("progress %d=%+v, planned %+v", i, progress[i], planned[i])
		}
	}
}

func TestBuilderWrite_SourceOpenFails(t *testing.T) {
	t.Parallel()

	b := NewBuilder(BuildOptions{})
	if err := b.AddBytes("ok", []byte("ok")); err != nil {
		t.Fatalf("AddBytes: %v", err)
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "gone.txt")
	if err := os.WriteFile(src, []byte("soon removed"), 0o600); err != nil {
		t.Fatalf("write source: %v", err)
	}
	if err := b.AddFile(src, "gone.txt"); err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	if err := os.Remove(src); err != nil {
		t.Fatalf("remove source: %v", err)
	}

	_, err := b.WriteFile(context.Background(), filepath.Join(dir, "out.pak"))
	if !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("WriteFile err=%v, want ErrWriteFailed", err)
	}
	if b.Len() != 2 {
		t.Fatalf("Len=%d after failed write, want 2", b.Len())
	}
}

func TestBuilderWrite_SourceSizeChanged(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		src  func() io.Reader
		name string
	}{
		{name: "shorter", src: func() io.Reader { return bytes.NewReader([]byte("abc")) }},
		{name: "longer", src: func() io.Reader { return bytes.NewReader([]byte("abcdefgh")) }},
		{name: "longer after empty read", src: func() io.Reader {
			return &chunkedReader{chunks: [][]byte{[]byte("abcde"), nil, []byte("fgh")}}
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			b := NewBuilder(BuildOptions{})
			err := b.Add(Input{
				Name: "changing",
				Size: 5,
				Open: func() (io.ReadCloser, error) {
					return io.NopCloser(tc.src()), nil
				},
			})
			if err != nil {
				t.Fatalf("Add: %v", err)
			}

			if _, err := b.Write(context.Background(), &seekBuffer{}); !errors.Is(err, ErrSourceSizeChanged) {
				t.Fatalf("Write err=%v, want ErrSourceSizeChanged", err)
			}
		})
	}
}

func TestBuilderWrite_SourceReadError(t *testing.T) {
	t.Parallel()

	readErr := errors.New("disk on fire")
	b := NewBuilder(BuildOptions{})
	err := b.Add(Input{
		Name: "broken",
		Size: 10,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(&failingReader{data: []byte("abc"), err: readErr}), nil
		},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	_, err = b.Write(context.Background(), &seekBuffer{})
	if !errors.Is(err, ErrWriteFailed) || !errors.Is(err, readErr) {
		t.Fatalf("Write err=%v, want ErrWriteFailed wrapping read error", err)
	}
}

func TestBuilderWrite_CanceledContext(t *testing.T) {
	t.Parallel()

	b := NewBuilder(BuildOptions{})
	if err := b.AddBytes("a", []byte("a")); err != nil {
		t.Fatalf("AddBytes: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := b.Write(ctx, &seekBuffer{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Write err=%v, want context.Canceled", err)
	}
}

func TestBuilderWriteFile_CreateFails(t *testing.T) {
	t.Parallel()

	b := NewBuilder(BuildOptions{})
	out := filepath.Join(t.TempDir(), "no", "such", "dir", "out.pak")
	if _, err := b.WriteFile(context.Background(), out); !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("WriteFile err=%v, want ErrWriteFailed", err)
	}
}

func TestBuilderWrite_NilWriter(t *testing.T) {
	t.Parallel()

	b := NewBuilder(BuildOptions{})
	if _, err := b.Write(context.Background(), nil); !errors.Is(err, ErrNilWriter) {
		t.Fatalf("Write err=%v, want ErrNilWriter", err)
	}
}

func TestBuilderWrite_SmallChunkAndBuffer(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("0123456789"), 1000)
	b := NewBuilder(BuildOptions{ChunkSize: 7, WriterBufferSize: 8192})
	if err := b.AddBytes("digits", data); err != nil {
		t.Fatalf("AddBytes: %v", err)
	}

	var out seekBuffer
	if _, err := b.Write(context.Background(), &out); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r, err := NewReaderFromReaderAt(bytes.NewReader(out.Bytes()), int64(out.Len()))
	if err != nil {
		t.Fatalf("NewReaderFromReaderAt: %v", err)
	}

	got, err := r.ReadEntry("digits")
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("payload mismatch")
	}
}

func TestCopyChunked(t *testing.T) {
	t.Parallel()

	t.Run("exact with remainder chunk", func(t *testing.T) {
		t.Parallel()

		var dst bytes.Buffer
		written, err := copyChunked(&dst, strings.NewReader("abcdefg"), 7, make([]byte, 3))
		if err != nil {
			t.Fatalf("copyChunked: %v", err)
		}
		if written != 7 || dst.String() != "abcdefg" {
			t.Fatalf("written=%d dst=%q", written, dst.String())
		}
	})

	t.Run("stops at size", func(t *testing.T) {
		t.Parallel()

		var dst bytes.Buffer
		written, err := copyChunked(&dst, strings.NewReader("abcdefg"), 4, make([]byte, 3))
		if err != nil {
			t.Fatalf("copyChunked: %v", err)
		}
		if written != 4 || dst.String() != "abcd" {
			t.Fatalf("written=%d dst=%q", written, dst.String())
		}
	})

	t.Run("short source", func(t *testing.T) {
		t.Parallel()

		var dst bytes.Buffer
		written, err := copyChunked(&dst, strings.NewReader("abc"), 5, make([]byte, 2))
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Fatalf("copyChunked err=%v, want io.ErrUnexpectedEOF", err)
		}
		if written != 3 {
			t.Fatalf("written=%d, want 3", written)
		}
	})

	t.Run("probe skips empty reads", func(t *testing.T) {
		t.Parallel()

		grown := &chunkedReader{chunks: [][]byte{nil, nil, []byte("x")}}
		if err := probeExhausted(grown); !errors.Is(err, ErrSourceSizeChanged) {
			t.Fatalf("probeExhausted err=%v, want ErrSourceSizeChanged", err)
		}

		exhausted := &chunkedReader{chunks: [][]byte{nil}}
		if err := probeExhausted(exhausted); err != nil {
			t.Fatalf("probeExhausted exhausted err=%v, want nil", err)
		}
	})

	t.Run("empty buffer", func(t *testing.T) {
		t.Parallel()

		if _, err := copyChunked(io.Discard, strings.NewReader("a"), 1, nil); !errors.Is(err, io.ErrShortBuffer) {
			t.Fatalf("copyChunked err=%v, want io.ErrShortBuffer", err)
		}
	})
}

// seekBuffer is an in-memory io.WriteSeeker for build tests.
type seekBuffer struct {
	buf []byte
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	end := s.pos + len(p)
	if end > len(s.buf) {
		s.buf = append(s.buf, make([]byte, end-len(s.buf))...)
	}

	copy(s.buf[s.pos:end], p)
	s.pos = end
	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(s.pos)
	case io.SeekEnd:
		base = int64(len(s.buf))
	default:
		return 0, errors.New("invalid whence")
	}

	next := base + offset
	if next < 0 {
		return 0, errors.New("negative position")
	}

	s.pos = int(next)
	return next, nil
}

func (s *seekBuffer) Bytes() []byte {
	return s.buf
}

func (s *seekBuffer) Len() int {
	return len(s.buf)
}
