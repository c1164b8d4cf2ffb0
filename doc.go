// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pak

/*
Package pak reads and writes PAK archives: a flat container made of a
12-byte header, a table of fixed 64-byte entry records, and a data region
with raw file bytes at absolute offsets.

Layout (all integers little-endian uint32):

	0..4    magic "PACK"
	4..8    entry table offset
	8..12   entry table size (entries * 64)
	table   per entry: name[56] (zero filled), offset, size
	data    payloads at their recorded offsets

Names are at most 56 bytes and single entries at most 4 GiB - 1 byte.
Payloads are stored raw; there is no compression or encryption.

# Reading

Open an archive and read entries by name or in storage order:

	r, err := pak.Open("pak0.pak")
	if err != nil {
	    return err
	}
	defer r.Close()
	for name, d := range r.All() {
	    fmt.Println(name, d.Offset, d.Size)
	}
	data, err := r.ReadEntry("maps/e1m1.bsp")

A zero Reader can be reused across archives; Open closes the previous one
and LastError reports why the last Open failed:

	var r pak.Reader
	if err := r.Open("pak1.pak"); err != nil {
	    _ = r.LastError()
	}

Entry names are not required to be unique. Lookup by name resolves to the
last entry with that name while All and Entries keep every record.

For metadata-only scans use ReadHeader and ListEntries.

# Extracting

Extract one entry to a file or a writer:

	if err := r.ExtractFile("sound/boss.wav", "out/boss.wav"); err != nil {
	    return err
	}

Extract all entries into a directory tree (parallel workers):

	if err := r.Extract(ctx, "out/", pak.ExtractOptions{MaxWorkers: 4}); err != nil {
	    return err
	}

# Building

Register inputs, then write. Entries keep registration order and offsets
are assigned right after the entry table, so the same inputs always
produce the same bytes:

	b := pak.NewBuilder(pak.BuildOptions{})
	if err := b.AddFile("src/progs.dat", "progs.dat"); err != nil {
	    return err
	}
	if _, err := b.AddDir("src/maps", pak.CollectOptions{
	    Prefix: "maps",
	    Rules: []pathrules.Rule{
	        {Action: pathrules.ActionExclude, Pattern: "*.bak"},
	    },
	}); err != nil {
	    return err
	}
	res, err := b.WriteFile(ctx, "pak0.pak")

Write is not atomic. Build into a temporary path and rename on success
when partial output must never be observed.
*/
package pak
