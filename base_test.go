package waa

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindCommonBaseLocatesRegisteredWC(t *testing.T) {
	assert := newAsserter(t)

	waaRoot := t.TempDir()
	wc := t.TempDir()
	sub := filepath.Join(wc, "a", "b")
	assert(os.MkdirAll(sub, 0755) == nil, "mkdir sub")

	sess := &Session{WaaRoot: waaRoot}
	store := NewStore(sess, AreaWAA)

	h, err := store.Open(wc, dirFileName, false)
	assert(err == nil, "open dir-file for wc: %v", err)
	assert(h.Close() == nil, "close dir-file")

	base, rel, err := FindCommonBase(store, []string{
		filepath.Join(wc, "a"),
		sub,
	})
	assert(err == nil, "find common base: %v", err)
	assert(base == wc, "base: got %q want %q", base, wc)
	assert(rel[0] == "a", "rel[0]: got %q want %q", rel[0], "a")
	assert(rel[1] == filepath.Join("a", "b"), "rel[1]: got %q want %q", rel[1], filepath.Join("a", "b"))
}

func TestFindCommonBaseNoRegisteredWC(t *testing.T) {
	assert := newAsserter(t)

	waaRoot := t.TempDir()
	wc := t.TempDir()

	sess := &Session{WaaRoot: waaRoot}
	store := NewStore(sess, AreaWAA)

	base, _, err := FindCommonBase(store, []string{wc})
	assert(errIs(err, ErrNotFound), "expected ErrNotFound, got %v", err)
	assert(base == wc, "base should fall back to the common prefix: got %q want %q", base, wc)
}

func TestCutToSeparator(t *testing.T) {
	assert := newAsserter(t)

	// common prefix runs to the end of full: already a boundary.
	assert(cutToSeparator("/a/wc", len("/a/wc")) == "/a/wc", "directory-boundary (EOF) case unchanged")
	// common prefix stops right before a separator: already a boundary.
	assert(cutToSeparator("/a/wc/file1", len("/a/wc")) == "/a/wc", "directory-boundary (separator) case unchanged")
	// common prefix diverges mid-component: cut back to the last separator.
	assert(cutToSeparator("/a/wcsfg", len("/a/wcs")) == "/a", "mid-component divergence cuts at separator")
	assert(cutToSeparator("/hsh", len("/h")) == "/", "divergence right after root stays at root")
}
