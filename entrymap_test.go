package waa

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnumerateMapCollectsDiscoveredEntries(t *testing.T) {
	assert := newAsserter(t)

	dir := t.TempDir()
	assert(os.Mkdir(filepath.Join(dir, "sub"), 0755) == nil, "mkdir sub")
	writeFile(t, filepath.Join(dir, "top.txt"), "a")
	writeFile(t, filepath.Join(dir, "sub", "nested.txt"), "b")

	enum := NewConcurrentEnumerator(&EnumOptions{Concurrency: 2})
	m, err := enum.EnumerateMap([]string{dir})
	assert(err == nil, "enumerate: %v", err)

	found := map[string]bool{}
	m.Range(func(key string, e *Entry) bool {
		found[key] = true
		return true
	})

	assert(found[filepath.Join(dir, "top.txt")], "top.txt missing from map")
	assert(found[filepath.Join(dir, "sub")], "sub missing from map")
	assert(found[filepath.Join(dir, "sub", "nested.txt")], "nested.txt missing from map")
}

func TestConcurrentInitialScanLinksTree(t *testing.T) {
	assert := newAsserter(t)

	dir := t.TempDir()
	assert(os.Mkdir(filepath.Join(dir, "sub"), 0755) == nil, "mkdir sub")
	writeFile(t, filepath.Join(dir, "top.txt"), "a")
	writeFile(t, filepath.Join(dir, "sub", "nested.txt"), "b")

	counts := map[string]int{}
	action := &Action{Callback: func(e *Entry) error {
		counts[e.Path()]++
		return nil
	}}

	root, err := ConcurrentInitialScan(dir, NewSession(dir, ""), action, &EnumOptions{Concurrency: 2})
	assert(err == nil, "scan: %v", err)
	assert(root.EntryCount == 2, "root entry count: %d", root.EntryCount)

	var sub, top *Entry
	for _, c := range root.byName {
		switch c.name {
		case "sub":
			sub = c
		case "top.txt":
			top = c
		}
	}
	assert(sub != nil && sub.IsDir(), "sub should be a linked directory")
	assert(top != nil && !top.IsDir(), "top.txt should be a linked file")
	assert(sub.EntryCount == 1 && sub.byName[0].name == "nested.txt", "sub's child mismatch")
	assert(sub.byName[0].parent == sub, "nested.txt parent pointer mismatch")

	assert(counts[top.Path()] == 1, "top.txt dispatched %d times, want 1", counts[top.Path()])
	assert(counts[sub.byName[0].Path()] == 1, "nested.txt dispatched %d times, want 1", counts[sub.byName[0].Path()])
	assert(counts[sub.Path()] == 1, "sub dispatched %d times, want 1", counts[sub.Path()])
	assert(counts[root.Path()] == 1, "root dispatched %d times, want 1", counts[root.Path()])
}

func TestConcurrentInitialScanSuppressesAdminArea(t *testing.T) {
	assert := newAsserter(t)

	dir := t.TempDir()
	waaDir := filepath.Join(dir, ".waa")
	assert(os.Mkdir(waaDir, 0755) == nil, "mkdir waaDir")
	writeFile(t, filepath.Join(dir, "tracked.txt"), "hello")

	sess := NewSession(dir, waaDir)
	root, err := ConcurrentInitialScan(dir, sess, nil, &EnumOptions{Concurrency: 2})
	assert(err == nil, "scan: %v", err)

	for _, c := range root.byName {
		assert(c.name != ".waa", "admin area must not appear in the tracked tree, got %q", c.name)
	}
	assert(len(root.byName) == 1 && root.byName[0].name == "tracked.txt", "unexpected children: %v", namesOf(root.byName))
}
