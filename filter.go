// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pak

package pak

import "strings"

// filterEntriesByPrefix keeps entries under prefix (or exact match if it points to a file).
func filterEntriesByPrefix(entries []Entry, prefix string) []Entry {
	prefix = NormalizePath(prefix)
	if prefix == "" {
		return entries
	}

	withSlash := prefix + "/"
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		name := NormalizePath(e.Name)
		if name == prefix || strings.HasPrefix(name, withSlash) {
			out = append(out, e)
		}
	}

	return out
}

// resolveUniqueEntries returns one entry per distinct name, in first-seen order,
// each resolved through the lookup index so later duplicates win.
func resolveUniqueEntries(entries []Entry, index map[string]int, all []Entry) []Entry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.Name]; ok {
			continue
		}

		seen[e.Name] = struct{}{}
		if idx, ok := index[e.Name]; ok {
			e = all[idx]
		}

		out = append(out, e)
	}

	return out
}
