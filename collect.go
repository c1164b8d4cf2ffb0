// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pak

package pak

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"

	"github.com/woozymasta/pathrules"
)

// collectMatcher holds compiled include/exclude rules for directory collection.
type collectMatcher struct {
	matcher *pathrules.Matcher
	// includeByDefault is used when no rules are set.
	includeByDefault bool
}

// newCollectMatcher compiles collection path rules.
// Without rules every path gets the default action.
func newCollectMatcher(rules []pathrules.Rule, opts pathrules.MatcherOptions) (*collectMatcher, error) {
	m := &collectMatcher{includeByDefault: opts.DefaultAction != pathrules.ActionExclude}

	rules = normalizeCollectRules(rules)
	if len(rules) == 0 {
		return m, nil
	}

	matcher, err := pathrules.NewMatcher(rules, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: compile rules: %w", ErrInvalidCollectRules, err)
	}

	m.matcher = matcher
	return m, nil
}

// normalizeCollectRules normalizes rule patterns and drops empty patterns.
func normalizeCollectRules(rules []pathrules.Rule) []pathrules.Rule {
	normalized := make([]pathrules.Rule, 0, len(rules))
	for _, rule := range rules {
		pattern := normalizePathForMatching(rule.Pattern)
		if pattern == "" {
			continue
		}

		normalized = append(normalized, pathrules.Rule{
			Action:  rule.Action,
			Pattern: pattern,
		})
	}

	return normalized
}

// Match reports whether relative file path is included by collection rules.
func (m *collectMatcher) Match(relPath string) bool {
	candidate := NormalizePath(relPath)
	if candidate == "" {
		return false
	}

	if m == nil {
		return true
	}

	if m.matcher == nil {
		return m.includeByDefault
	}

	return m.matcher.Included(candidate, false)
}

// CollectDir walks root in lexical order and returns one Input per regular
// file accepted by opts.Rules. Input names are slash-separated paths relative
// to root, prefixed with opts.Prefix. Symbolic links and other special files
// are skipped. Name length is not checked here; Builder.Add rejects names
// that do not fit.
func CollectDir(root string, opts CollectOptions) ([]Input, error) {
	opts.applyDefaults()

	matcher, err := newCollectMatcher(opts.Rules, opts.MatcherOptions)
	if err != nil {
		return nil, err
	}

	prefix := NormalizePath(opts.Prefix)
	inputs := make([]Input, 0, 64)
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}

		rel = filepath.ToSlash(rel)
		if !matcher.Match(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		name := rel
		if prefix != "" {
			name = path.Join(prefix, rel)
		}

		inputs = append(inputs, fileInput(p, name, info.Size()))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", root, err)
	}

	return inputs, nil
}

// AddDir collects files under root and registers them in walk order.
// It returns number of registered inputs. On error no input from root is registered.
func (b *Builder) AddDir(root string, opts CollectOptions) (int, error) {
	inputs, err := CollectDir(root, opts)
	if err != nil {
		return 0, err
	}

	for _, in := range inputs {
		if err := validateEntryName(in.Name); err != nil {
			return 0, err
		}

		if in.Size > maxEntrySize {
			return 0, fmt.Errorf("%w: entry %s size %d", ErrSizeTooLarge, in.Name, in.Size)
		}
	}

	for _, in := range inputs {
		if err := b.Add(in); err != nil {
			return 0, err
		}
	}

	return len(inputs), nil
}
