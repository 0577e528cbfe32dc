package waa

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSessionIsAdminAreaMatchesWaaRoot(t *testing.T) {
	assert := newAsserter(t)

	dir := t.TempDir()
	waaDir := filepath.Join(dir, ".waa")
	assert(os.Mkdir(waaDir, 0755) == nil, "mkdir waaDir")

	sess := NewSession(dir, waaDir)

	var e Entry
	assert(lstatEntry(waaDir, &e) == nil, "lstat waaDir")
	assert(sess.isAdminArea(&e), "waaDir itself should be recognized as the admin area")

	var other Entry
	assert(lstatEntry(dir, &other) == nil, "lstat dir")
	assert(!sess.isAdminArea(&other), "working copy root is not the admin area")
}

func TestSessionIsAdminAreaNilSafe(t *testing.T) {
	assert := newAsserter(t)

	var sess *Session
	assert(!sess.isAdminArea(&Entry{}), "nil session must not suppress anything")

	empty := NewSession("/tmp", "")
	assert(!empty.isAdminArea(&Entry{}), "session with no WaaRoot/ConfRoot must not suppress anything")
}

// TestBuildTreeSuppressesAdminArea guards spec §4.3: a WAA storage
// directory living inside the tracked tree must never appear as one of
// its own versioned entries.
func TestBuildTreeSuppressesAdminArea(t *testing.T) {
	assert := newAsserter(t)

	dir := t.TempDir()
	waaDir := filepath.Join(dir, ".waa")
	assert(os.Mkdir(waaDir, 0755) == nil, "mkdir waaDir")
	writeFile(t, filepath.Join(dir, "tracked.txt"), "hello")

	sess := NewSession(dir, waaDir)

	root := NewRoot(filepath.Base(dir))
	assert(lstatEntry(dir, root) == nil, "lstat root")
	root.name = filepath.Base(dir)
	buildTree(root, dir, sess, nil)

	for _, c := range root.byName {
		assert(c.name != ".waa", "admin area must not appear in the tracked tree, got %q", c.name)
	}
	assert(len(root.byName) == 1 && root.byName[0].name == "tracked.txt", "unexpected children: %v", namesOf(root.byName))
}

func namesOf(es []*Entry) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.name
	}
	return out
}
