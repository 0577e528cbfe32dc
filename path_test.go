package waa

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWaaDirFansOutByMD5(t *testing.T) {
	assert := newAsserter(t)

	waaRoot := t.TempDir()
	sess := &Session{WaaRoot: waaRoot}

	dir, err := sess.waaDir("/some/working/copy", AreaWAA, false)
	assert(err == nil, "waaDir: %v", err)
	assert(strings.HasPrefix(dir, waaRoot), "fan-out dir should live under WaaRoot: %q", dir)

	rel, err := filepath.Rel(waaRoot, dir)
	assert(err == nil, "rel: %v", err)
	parts := strings.Split(rel, string(filepath.Separator))
	assert(len(parts) == 3, "expected a 3-level fan-out, got %d (%q)", len(parts), rel)
	assert(len(parts[0]) == 2 && len(parts[1]) == 2, "first two fan-out levels should be 2 hex chars: %q/%q", parts[0], parts[1])
	assert(len(parts[2]) == 28, "final fan-out level should be 28 hex chars: %q", parts[2])
}

func TestWaaDirIsStableForSamePath(t *testing.T) {
	assert := newAsserter(t)

	sess := &Session{WaaRoot: t.TempDir()}

	a, err := sess.waaDir("/a/b/c", AreaWAA, false)
	assert(err == nil, "waaDir a: %v", err)
	b, err := sess.waaDir("/a/b/c/", AreaWAA, false)
	assert(err == nil, "waaDir b: %v", err)

	assert(a == b, "trailing separator should not change the fan-out dir: %q vs %q", a, b)
}

func TestWaaDirUsesConfRoot(t *testing.T) {
	assert := newAsserter(t)

	sess := &Session{WaaRoot: t.TempDir(), ConfRoot: t.TempDir()}

	dir, err := sess.waaDir("/a/b", AreaConf, false)
	assert(err == nil, "waaDir: %v", err)
	assert(strings.HasPrefix(dir, sess.ConfRoot), "AreaConf should resolve under ConfRoot: %q", dir)
}

func TestWaaDirMkdir(t *testing.T) {
	assert := newAsserter(t)

	sess := &Session{WaaRoot: t.TempDir()}

	dir, err := sess.waaDir("/a/b", AreaWAA, true)
	assert(err == nil, "waaDir: %v", err)

	info, statErr := os.Stat(dir)
	assert(statErr == nil, "stat fan-out dir: %v", statErr)
	assert(info.IsDir(), "fan-out dir should have been created")
}

func TestNormalizeStripsSoftRoot(t *testing.T) {
	assert := newAsserter(t)

	sess := &Session{SoftRoot: "/mnt/real"}

	got, err := sess.normalize("/mnt/real/project/file")
	assert(err == nil, "normalize: %v", err)
	assert(got == "/project/file", "soft-root strip: got %q", got)
}

func TestNormalizeRelativeAgainstSessionRoot(t *testing.T) {
	assert := newAsserter(t)

	sess := &Session{Root: "/home/user/work"}

	got, err := sess.normalize("sub/file")
	assert(err == nil, "normalize: %v", err)
	assert(got == "/home/user/work/sub/file", "relative join: got %q", got)
}
