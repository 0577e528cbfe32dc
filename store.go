// store.go - atomic dir-file storage in the administrative area
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
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// Handle is an io.WriteCloser that buffers writes into a temporary
// file beside its final destination and atomically renames it into
// place on Close. On Abort (or on Close after a write error) the
// temporary file is removed and the destination is left untouched.
//
// Unlike a random-suffixed temp name, the WAA derives its temp name by
// flattening the destination's path separators into underscores: the
// temp file stays in the same fan-out directory as its destination,
// while its name still identifies the full destination path, so
// writers targeting different files never collide (see tempName).
// See spec §4.2 and §6.2.
type Handle struct {
	*os.File

	err  error
	name string

	// state: <0 aborted, >0 closed/committed, =0 open
	closed atomic.Int64
}

var _ io.WriteCloser = &Handle{}

// tempName derives the in-progress filename for a final destination
// path nm: its directory is unchanged, but the basename is prefixed
// with the full relative path (separators flattened to "_") so that
// concurrent writers never collide, and a crashed write leaves an
// identifiable artifact next to the directory it was headed for.
func tempName(nm string) string {
	flat := strings.ReplaceAll(nm, string(os.PathSeparator), "_")
	return filepath.Join(filepath.Dir(nm), flat) + ".tmp"
}

// OpenHandle creates the temporary file that backs a new or replaced
// dir-file at nm. overwrite must be true to replace an existing
// regular file; it is never true for a brand new entry.
func OpenHandle(nm string, overwrite bool) (*Handle, error) {
	if fi, err := os.Stat(nm); err == nil {
		if !overwrite {
			return nil, fmt.Errorf("store: won't overwrite existing %s", nm)
		}
		if !fi.Mode().IsRegular() {
			return nil, fmt.Errorf("store: %s is not a regular file", nm)
		}
	}

	tmp := tempName(nm)
	fd, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0600)
	if err != nil {
		return nil, wrapPath("open", nm, err)
	}

	return &Handle{File: fd, name: nm}, nil
}

func (h *Handle) isOpen() bool {
	return h.closed.Load() == 0
}

// Write buffers b to the temp file; subsequent calls after a failed
// write or after Close/Abort return the stored error.
func (h *Handle) Write(b []byte) (int, error) {
	if h.err != nil {
		return 0, h.err
	}
	if !h.isOpen() {
		return 0, fmt.Errorf("store: %s is not open", h.Name())
	}

	n, err := h.File.Write(b)
	if err != nil {
		h.err = fmt.Errorf("store: write %s: %w", h.name, err)
		return n, h.err
	}
	return n, nil
}

// WriteAt writes b at the given absolute offset in the temp file,
// independent of the sequential write cursor; used to patch the
// dir-file header once the real entry/string counts are known.
func (h *Handle) WriteAt(b []byte, off int64) (int, error) {
	if h.err != nil {
		return 0, h.err
	}
	if !h.isOpen() {
		return 0, fmt.Errorf("store: %s is not open", h.Name())
	}

	n, err := h.File.WriteAt(b, off)
	if err != nil {
		h.err = fmt.Errorf("store: writeat %s: %w", h.name, err)
		return n, h.err
	}
	return n, nil
}

// Abort discards the temporary file. It is idempotent and safe to
// defer unconditionally; once Close commits successfully, Abort is a
// no-op.
func (h *Handle) Abort() {
	n := h.closed.Load()
	if n != 0 {
		return
	}

	h.File.Close()
	os.Remove(h.Name())
	h.closed.Store(-1)
}

// Close flushes the temp file to stable storage and atomically renames
// it over the destination. If a write previously failed, Close aborts
// instead and returns that error.
func (h *Handle) Close() error {
	if h.err != nil {
		h.Abort()
		return h.err
	}

	n := h.closed.Load()
	if n < 0 {
		return ErrAborted
	}
	if n > 0 {
		return nil
	}

	if err := h.Sync(); err != nil {
		h.err = fmt.Errorf("store: sync %s: %w", h.name, err)
		return h.err
	}
	if err := h.File.Close(); err != nil {
		h.err = fmt.Errorf("store: close %s: %w", h.name, err)
		return h.err
	}
	if err := os.Rename(h.Name(), h.name); err != nil {
		h.err = fmt.Errorf("store: rename %s: %w", h.name, err)
		return h.err
	}

	h.closed.Store(1)
	return nil
}

// removeHandle unlinks a committed dir-file; used when a directory
// drops out of the tree entirely.
func removeHandle(nm string) error {
	if err := os.Remove(nm); err != nil && !os.IsNotExist(err) {
		return wrapPath("remove", nm, err)
	}
	return nil
}

// Store resolves a working-copy path into a fan-out storage location
// under a Session's WaaRoot or ConfRoot, and performs the open/close/
// delete/existence-check contract of spec §4.2 on top of it. It is the
// one place callers go through instead of calling OpenHandle directly
// once a Session is in play.
type Store struct {
	sess *Session
	area Area
}

// NewStore builds a Store resolving paths against sess's storage tree
// for area (AreaWAA or AreaConf).
func NewStore(sess *Session, area Area) *Store {
	return &Store{sess: sess, area: area}
}

// Path returns the on-disk location a stored file named ext for path
// would occupy, without creating the fan-out directory or checking
// whether the file exists. Useful when a caller needs the filename to
// pass to a lower-level API (eg. Load) directly.
func (st *Store) Path(path, ext string) (string, error) {
	return st.fileName(path, ext, false)
}

// fileName returns the fan-out directory for path (creating it when
// mkdir is true) joined with ext.
func (st *Store) fileName(path, ext string, mkdir bool) (string, error) {
	dir, err := st.sess.waaDir(path, st.area, mkdir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ext), nil
}

// Exists reports whether a stored file named ext exists for path; it
// is the read-only existence probe spec §4.2 calls "open with a nil
// extension". Any stat error (including a missing fan-out directory)
// is treated as "does not exist".
func (st *Store) Exists(path, ext string) bool {
	nm, err := st.fileName(path, ext, false)
	if err != nil {
		return false
	}
	_, err = os.Stat(nm)
	return err == nil
}

// Open begins an atomic write of the stored file named ext for path,
// creating the fan-out directory chain if necessary.
func (st *Store) Open(path, ext string, overwrite bool) (*Handle, error) {
	nm, err := st.fileName(path, ext, true)
	if err != nil {
		return nil, err
	}
	return OpenHandle(nm, overwrite)
}

// OpenRead opens the stored file named ext for path for reading.
func (st *Store) OpenRead(path, ext string) (*os.File, error) {
	nm, err := st.fileName(path, ext, false)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(nm)
	if err != nil {
		return nil, wrapPath("open", nm, err)
	}
	return f, nil
}

// Delete removes the stored file named ext for path, then best-effort
// removes the two containing fan-out levels if they are now empty
// (failures there are swallowed, matching spec §4.2's delete contract).
func (st *Store) Delete(path, ext string) error {
	dir, err := st.sess.waaDir(path, st.area, false)
	if err != nil {
		return err
	}
	if err := removeHandle(filepath.Join(dir, ext)); err != nil {
		return err
	}
	os.Remove(dir)
	os.Remove(filepath.Dir(dir))
	return nil
}
