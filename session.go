// session.go - per-working-copy state, replacing the C original's
// process-global variables with one explicit object.
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
	"sync"

	"github.com/opencoff/go-logger"
)

// Session carries everything a WAA operation needs beyond the entry
// tree itself: where the administrative area lives, how to decide
// what to skip, and where to log. A Session is not safe for concurrent
// use by multiple goroutines calling UpdateTree on the same tree at
// once; independent Sessions (eg. one per working copy) are fine.
type Session struct {
	// Root is the absolute path of the working copy this session
	// tracks.
	Root string

	// WaaRoot is the root of the content-addressed dir-file storage
	// (the Go stand-in for $WAA_PATH / the C original's waa_tmp_path).
	WaaRoot string

	// ConfRoot is the root of the working-copy-local configuration
	// storage ($WAA_CONF_PATH / conf_tmp_path), fanned out the same
	// way as WaaRoot but kept in a separate tree.
	ConfRoot string

	// SoftRoot, if non-empty, is stripped from the front of any
	// absolute path before it is hashed into a storage directory (see
	// waaDir). It lets a chrooted or bind-mounted working copy share
	// WAA storage with its path as seen outside the chroot.
	SoftRoot string

	// Ignore decides which entries UpdateTree and the enumerators
	// should skip entirely. A nil Ignore accepts everything.
	Ignore Ignore

	// Log receives diagnostic output; a nil Log is a silent no-op.
	Log logger.Logger

	waaIdentOnce sync.Once
	waaIdents    []*Entry
}

// NewSession builds a Session for a working copy rooted at root, with
// its WAA storage rooted at waaRoot.
func NewSession(root, waaRoot string) *Session {
	return &Session{Root: root, WaaRoot: waaRoot}
}

func (s *Session) ignored(e *Entry, path string) bool {
	if s == nil || s.Ignore == nil {
		return false
	}
	return s.Ignore.Ignore(e, path)
}

func (s *Session) logf(format string, args ...any) {
	if s == nil || s.Log == nil {
		return
	}
	s.Log.Debug(format, args...)
}

func (s *Session) infof(format string, args ...any) {
	if s == nil || s.Log == nil {
		return
	}
	s.Log.Info(format, args...)
}

// isAdminArea reports whether e is the WAA's own storage directory (or
// its config counterpart), by comparing device+inode against a
// one-time lstat of WaaRoot/ConfRoot cached on first use. Enumeration
// must suppress this directory entirely wherever it is encountered,
// or the WAA would end up versioning itself (spec §4.3).
func (s *Session) isAdminArea(e *Entry) bool {
	if s == nil {
		return false
	}
	s.waaIdentOnce.Do(func() {
		for _, root := range []string{s.WaaRoot, s.ConfRoot} {
			if root == "" {
				continue
			}
			var probe Entry
			if err := lstatEntry(root, &probe); err == nil {
				s.waaIdents = append(s.waaIdents, &probe)
			}
		}
	})
	for _, id := range s.waaIdents {
		if e.IsSameFS(id) && e.Ino == id.Ino {
			return true
		}
	}
	return false
}
