package waa

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTempNameStaysBesideDestination(t *testing.T) {
	assert := newAsserter(t)

	nm := filepath.Join("/some/dir", "dest")
	tmp := tempName(nm)

	assert(filepath.Dir(tmp) == "/some/dir", "temp file left its destination directory: %q", tmp)
	assert(filepath.Base(tmp) == "_some_dir_dest.tmp", "unexpected temp basename: %q", filepath.Base(tmp))
}

func TestHandleAtomicCommit(t *testing.T) {
	assert := newAsserter(t)

	dir := t.TempDir()
	nm := filepath.Join(dir, "dest")

	h, err := OpenHandle(nm, false)
	assert(err == nil, "open: %v", err)

	tmp := tempName(nm)
	_, statErr := os.Stat(tmp)
	assert(statErr == nil, "temp file should exist before commit: %v", statErr)
	_, statErr = os.Stat(nm)
	assert(os.IsNotExist(statErr), "destination should not exist before commit")

	_, err = h.Write([]byte("hello"))
	assert(err == nil, "write: %v", err)
	assert(h.Close() == nil, "close")

	_, statErr = os.Stat(tmp)
	assert(os.IsNotExist(statErr), "temp file should be gone after commit")
	b, err := os.ReadFile(nm)
	assert(err == nil && string(b) == "hello", "destination content: %q, err=%v", b, err)
}

func TestHandleAbortRemovesTemp(t *testing.T) {
	assert := newAsserter(t)

	dir := t.TempDir()
	nm := filepath.Join(dir, "dest")

	h, err := OpenHandle(nm, false)
	assert(err == nil, "open: %v", err)
	h.Abort()

	_, statErr := os.Stat(tempName(nm))
	assert(os.IsNotExist(statErr), "temp file should be removed on abort")
	_, statErr = os.Stat(nm)
	assert(os.IsNotExist(statErr), "destination should never have existed")
}

func TestStoreOpenExistsDelete(t *testing.T) {
	assert := newAsserter(t)

	waaRoot := t.TempDir()
	sess := &Session{WaaRoot: waaRoot}
	store := NewStore(sess, AreaWAA)

	target := filepath.Join(t.TempDir(), "my-wc")
	assert(!store.Exists(target, "dir"), "should not exist before writing")

	h, err := store.Open(target, "dir", false)
	assert(err == nil, "store open: %v", err)
	_, err = h.Write([]byte("data"))
	assert(err == nil, "write: %v", err)
	assert(h.Close() == nil, "close")

	assert(store.Exists(target, "dir"), "should exist after writing")

	assert(store.Delete(target, "dir") == nil, "delete")
	assert(!store.Exists(target, "dir"), "should not exist after delete")
}
