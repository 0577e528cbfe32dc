package waa

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, nm, content string) {
	t.Helper()
	if err := os.WriteFile(nm, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", nm, err)
	}
}

func TestUpdateTreeDetectsNewAndDeleted(t *testing.T) {
	assert := newAsserter(t)

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "keep.txt"), "keep")
	writeFile(t, filepath.Join(dir, "gone.txt"), "bye")

	root := NewRoot(filepath.Base(dir))
	assert(lstatEntry(dir, root) == nil, "lstat root")
	root.name = filepath.Base(dir)
	buildTree(root, dir, nil, nil)

	assert(len(root.byName) == 2, "initial scan children: %d", len(root.byName))

	assert(os.Remove(filepath.Join(dir, "gone.txt")) == nil, "remove gone.txt")
	writeFile(t, filepath.Join(dir, "new.txt"), "fresh")

	for _, c := range root.byName {
		c.Status = 0
	}
	root.Status = 0

	err := UpdateTree(root, dir, NewSession(dir, ""), nil)
	assert(err == nil, "update: %v", err)

	var sawDeleted, sawNew bool
	for _, c := range root.byName {
		switch c.name {
		case "gone.txt":
			sawDeleted = c.Status&Deleted != 0
		case "new.txt":
			sawNew = c.Status&New != 0
		}
	}
	assert(sawDeleted, "gone.txt should be marked deleted")
	assert(sawNew, "new.txt should be marked new")
	assert(root.Status&ChildChanged != 0, "root should be child-changed")
}

func TestUpdateTreeDetectsChangedContent(t *testing.T) {
	assert := newAsserter(t)

	dir := t.TempDir()
	fn := filepath.Join(dir, "f.txt")
	writeFile(t, fn, "v1")

	root := NewRoot(filepath.Base(dir))
	assert(lstatEntry(dir, root) == nil, "lstat root")
	root.name = filepath.Base(dir)
	buildTree(root, dir, nil, nil)

	for _, c := range root.byName {
		c.Status = 0
	}

	writeFile(t, fn, "a much longer value than before")

	err := UpdateTree(root, dir, NewSession(dir, ""), nil)
	assert(err == nil, "update: %v", err)

	assert(root.byName[0].Status&Changed != 0, "f.txt should be marked changed, got %s", root.byName[0].Status)
}

func TestUpdateTreeIgnorePredicate(t *testing.T) {
	assert := newAsserter(t)

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "skip.txt"), "x")
	writeFile(t, filepath.Join(dir, "keep.txt"), "y")

	sess := NewSession(dir, "")
	sess.Ignore = NameGlobIgnore{"skip.*"}

	root := NewRoot(filepath.Base(dir))
	assert(lstatEntry(dir, root) == nil, "lstat root")
	root.name = filepath.Base(dir)
	buildTree(root, dir, sess, nil)

	assert(len(root.byName) == 1, "expected 1 non-ignored child, got %d", len(root.byName))
	assert(root.byName[0].name == "keep.txt", "unexpected survivor %q", root.byName[0].name)
}

// TestUpdateTreeDispatchesReplacedDirOnce guards spec §8's "replaced
// entries exactly once" property for the transition where a previously
// non-directory entry is replaced on disk by a directory: updateDir's
// end-of-function dispatch and updateEntry's post-updateDir dispatch
// must not both fire for the same Entry.
func TestUpdateTreeDispatchesReplacedDirOnce(t *testing.T) {
	assert := newAsserter(t)

	dir := t.TempDir()
	target := filepath.Join(dir, "thing")
	writeFile(t, target, "was a file")

	root := NewRoot(filepath.Base(dir))
	assert(lstatEntry(dir, root) == nil, "lstat root")
	root.name = filepath.Base(dir)
	buildTree(root, dir, nil, nil)
	assert(len(root.byName) == 1, "initial scan children: %d", len(root.byName))

	assert(os.Remove(target) == nil, "remove file")
	assert(os.Mkdir(target, 0755) == nil, "mkdir replacement")
	writeFile(t, filepath.Join(target, "inside.txt"), "new content")

	for _, c := range root.byName {
		c.Status = 0
	}
	root.Status = 0

	counts := map[string]int{}
	action := &Action{Callback: func(e *Entry) error {
		counts[e.Path()]++
		return nil
	}}

	err := UpdateTree(root, dir, NewSession(dir, ""), action)
	assert(err == nil, "update: %v", err)

	thing := root.byName[0]
	assert(thing.name == "thing", "unexpected child %q", thing.name)
	assert(thing.IsDir(), "thing should now be a directory")
	assert(thing.Status&Replaced != 0, "thing should be marked Replaced")
	assert(counts[thing.Path()] == 1, "thing dispatched %d times, want 1", counts[thing.Path()])
}

// TestUpdateTreeArgsScopesToSelectedSubtree guards spec §8 property S6:
// with args naming only "b", entries under sibling "a" are left
// completely untouched by the partial update.
func TestUpdateTreeArgsScopesToSelectedSubtree(t *testing.T) {
	assert := newAsserter(t)

	dir := t.TempDir()
	assert(os.Mkdir(filepath.Join(dir, "a"), 0755) == nil, "mkdir a")
	assert(os.Mkdir(filepath.Join(dir, "b"), 0755) == nil, "mkdir b")
	writeFile(t, filepath.Join(dir, "a", "f.txt"), "v1")
	writeFile(t, filepath.Join(dir, "b", "f.txt"), "v1")

	root := NewRoot(filepath.Base(dir))
	assert(lstatEntry(dir, root) == nil, "lstat root")
	root.name = filepath.Base(dir)
	buildTree(root, dir, nil, nil)

	var a, b *Entry
	for _, c := range root.byName {
		switch c.name {
		case "a":
			a = c
		case "b":
			b = c
		}
	}
	assert(a != nil && b != nil, "expected both a and b children")

	resetTree := func(e *Entry) {
		e.Status = 0
		for _, c := range e.byName {
			c.Status = 0
		}
	}
	resetTree(a)
	resetTree(b)
	root.Status = 0

	// mutate both, but only ask UpdateTreeArgs to look at "b".
	writeFile(t, filepath.Join(dir, "a", "f.txt"), "a much longer value than before")
	writeFile(t, filepath.Join(dir, "b", "f.txt"), "a much longer value than before")

	err := UpdateTreeArgs(root, dir, NewSession(dir, ""), nil, []string{"b"})
	assert(err == nil, "update: %v", err)

	assert(b.doFullChild, "b should be selected (doFullChild)")
	assert(b.byName[0].Status&Changed != 0, "b/f.txt should be marked changed")

	assert(!a.doFullChild, "a should not be selected (doFullChild)")
	assert(a.byName[0].Status == 0, "a/f.txt should be untouched, got %s", a.byName[0].Status)
	assert(a.Status == 0, "a itself should be untouched, got %s", a.Status)
}

// TestInitialScanDispatchesDirRootOnce guards the same "dispatched
// exactly once" property (spec §8) for InitialScan's directory case:
// buildTree already dispatches root once it has finalized root's
// children, so InitialScan must not dispatch it a second time.
func TestInitialScanDispatchesDirRootOnce(t *testing.T) {
	assert := newAsserter(t)

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "f.txt"), "hi")

	counts := map[string]int{}
	action := &Action{Callback: func(e *Entry) error {
		counts[e.Path()]++
		return nil
	}}

	root, err := InitialScan(dir, NewSession(dir, ""), action)
	assert(err == nil, "scan: %v", err)
	assert(counts[root.Path()] == 1, "root dispatched %d times, want 1", counts[root.Path()])
}

func TestPruneDeletedRemovesOnlyDeleted(t *testing.T) {
	assert := newAsserter(t)

	root := NewRoot("wc")
	keep := &Entry{name: "keep", parent: root, Type: TypeRegular}
	gone := &Entry{name: "gone", parent: root, Type: TypeRegular, Status: Deleted}
	root.byName = []*Entry{gone, keep}
	root.byInode = []*Entry{gone, keep}
	root.EntryCount = 2

	PruneDeleted(root)

	assert(root.EntryCount == 1, "entry count after prune: %d", root.EntryCount)
	assert(len(root.byName) == 1 && root.byName[0].name == "keep", "survivor mismatch")
}
