package waa

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func mkTestTree() *Entry {
	root := NewRoot("wc")
	root.Ino = 1
	root.EntryCount = 2

	a := &Entry{name: "a.txt", parent: root, Type: TypeRegular, Ino: 10, Mtime: time.Now()}
	sub := &Entry{name: "sub", parent: root, Type: TypeDirectory, Ino: 11, EntryCount: 1}
	b := &Entry{name: "b.txt", parent: sub, Type: TypeRegular, Ino: 12, Mtime: time.Now()}

	sub.byInode = []*Entry{b}
	sub.byName = []*Entry{b}
	root.byInode = []*Entry{a, sub}
	root.byName = []*Entry{a, sub}

	for _, e := range []*Entry{root, a, sub, b} {
		e.PathLevel = 0
		if e.parent != nil {
			e.PathLevel = e.parent.PathLevel + 1
		}
	}
	return root
}

func TestSaveLoadRoundTrip(t *testing.T) {
	assert := newAsserter(t)

	dir := t.TempDir()
	nm := filepath.Join(dir, "dirfile")

	root := mkTestTree()

	h, err := OpenHandle(nm, false)
	assert(err == nil, "open handle: %v", err)

	err = Save(root, h, nil)
	assert(err == nil, "save: %v", err)
	assert(h.Close() == nil, "close")

	got, err := Load(nm, "wc", nil)
	assert(err == nil, "load: %v", err)
	assert(got.name == "wc", "root name: %q", got.name)
	assert(got.EntryCount == 2, "root entry count: %d", got.EntryCount)
	assert(len(got.byName) == 2, "root byName len: %d", len(got.byName))
	assert(got.byName[0].name == "a.txt", "byName[0]: %q", got.byName[0].name)
	assert(got.byName[1].name == "sub", "byName[1]: %q", got.byName[1].name)

	subEntry := got.byName[1]
	assert(subEntry.IsDir(), "sub should be a directory")
	assert(len(subEntry.byName) == 1, "sub children: %d", len(subEntry.byName))
	assert(subEntry.byName[0].name == "b.txt", "sub child name: %q", subEntry.byName[0].name)
	assert(subEntry.byName[0].Parent() == subEntry, "b.txt parent not linked to sub")
}

func TestLoadRejectsTruncatedFile(t *testing.T) {
	assert := newAsserter(t)

	dir := t.TempDir()
	nm := filepath.Join(dir, "dirfile")
	assert(os.WriteFile(nm, []byte("too short"), 0600) == nil, "write")

	_, err := Load(nm, "wc", nil)
	assert(err != nil, "expected error loading truncated file")
}

func TestFindPositionShortcuts(t *testing.T) {
	assert := newAsserter(t)

	mk := func(ino uint64) []*Entry { return []*Entry{{Ino: ino}} }

	assert(findPosition(&Entry{Ino: 5}, nil) == 0, "empty array")

	arr := [][]*Entry{mk(10), mk(20), mk(30)}
	assert(findPosition(&Entry{Ino: 1}, arr) == 0, "below first")
	assert(findPosition(&Entry{Ino: 30}, arr) == 3, "at-or-above last")
	assert(findPosition(&Entry{Ino: 25}, arr) == 2, "binary search middle")
}
