// base.go - working-copy base discovery from a set of path arguments
//
// (c) 2024- go-waa contributors
//
// Licensing Terms: GPLv2
//
// If you need a commercial license for this work, please contact
// the author.
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package waa

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FindCommonBase computes the longest common directory prefix of args
// (substituting the current working directory when args is empty),
// then walks that prefix upward looking for a directory st already has
// a dir-file for. It returns the discovered base and, for each input
// argument, its path relative to that base ("." for the base itself).
//
// Grounded on waa__find_common_base/waa__find_base. If no registered
// working copy is found while walking upward, FindCommonBase returns
// the common prefix itself as base along with ErrNotFound wrapping
// fs.ErrNotExist-compatible semantics — callers (eg. base.md §4.8's
// "propagate ENOENT without logging a hard error") are expected to
// treat that as a soft, expected outcome, not a hard failure.
func FindCommonBase(st *Store, args []string) (base string, rel []string, err error) {
	if len(args) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return "", nil, wrapPath("getwd", "", err)
		}
		args = []string{cwd}
	}

	abs := make([]string, len(args))
	for i, a := range args {
		a, err := filepath.Abs(a)
		if err != nil {
			return "", nil, wrapPath("abs", args[i], err)
		}
		for len(a) > 1 && strings.HasSuffix(a, string(os.PathSeparator)) {
			a = a[:len(a)-1]
		}
		abs[i] = a
	}

	common := commonPrefixLen(abs)
	base = cutToSeparator(abs[0], common)

	found := base
	probeErr := fmt.Errorf("%w: %w", ErrNotFound, fs.ErrNotExist)
	for {
		if st.Exists(found, dirFileName) {
			probeErr = nil
			break
		}
		if len(found) <= 1 {
			break
		}
		parent := filepath.Dir(found)
		if parent == found {
			break
		}
		found = parent
	}
	if probeErr == nil {
		base = found
	}

	rel = make([]string, len(abs))
	for i, a := range abs {
		if a == base {
			rel[i] = "."
			continue
		}
		r, err := filepath.Rel(base, a)
		if err != nil {
			return "", nil, wrapPath("rel", a, err)
		}
		rel[i] = r
	}

	return base, rel, probeErr
}

// commonPrefixLen returns the length of the longest byte-wise common
// prefix across paths.
func commonPrefixLen(paths []string) int {
	if len(paths) == 0 {
		return 0
	}
	n := len(paths[0])
	for _, p := range paths[1:] {
		if len(p) < n {
			n = len(p)
		}
		j := 0
		for j < n && paths[0][j] == p[j] {
			j++
		}
		if j < n {
			n = j
		}
	}
	return n
}

// cutToSeparator truncates full's common prefix (of length n, as found
// by commonPrefixLen against full = abs[0]) at the last path separator
// — unless the character immediately following the common prefix in
// full is itself a separator, or the common prefix runs to the end of
// full, in which case the prefix already lands on a directory boundary
// and needs no adjustment. Matches spec §4.8 step 3's handling of
// paths that diverge mid-component (eg. "/a/wc" vs "/a/wcx" must not
// be treated as sharing base "/a/wc").
func cutToSeparator(full string, n int) string {
	onBoundary := n >= len(full) || full[n] == os.PathSeparator
	if !onBoundary {
		for n > 0 && full[n-1] != os.PathSeparator {
			n--
		}
	}

	if n <= 1 {
		return string(os.PathSeparator)
	}
	return strings.TrimSuffix(full[:n], string(os.PathSeparator))
}
