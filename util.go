// util.go - small utilities consumed by the core (spec §4.9)
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
	"errors"
	"os"
	"path/filepath"
)

// SaveCwd returns the absolute path of the current working directory.
// Grounded on waa__save_cwd, which retries a growing buffer up to 8
// KiB and distinguishes "removed while running" (ENOENT) from other
// failures by returning ErrShortPath for the former — os.Getwd already
// handles arbitrarily long paths internally, so the retry loop itself
// has no Go analogue, only its error-distinction intent does.
func SaveCwd() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrShortPath
		}
		return "", wrapPath("getwd", "", err)
	}
	return cwd, nil
}

// MakeInfoLink creates a symlink named name inside dir pointing at
// target, for diagnostic inspection of a fan-out directory (eg. a
// "_base" link back to the working-copy root it belongs to). It is
// idempotent: an existing link already pointing at target is left
// alone, and a stale link pointing elsewhere is replaced.
//
// Grounded on waa__make_info_link.
func MakeInfoLink(dir, name, target string) error {
	link := filepath.Join(dir, name)

	if cur, err := os.Readlink(link); err == nil {
		if cur == target {
			return nil
		}
		if err := os.Remove(link); err != nil {
			return wrapPath("remove", link, err)
		}
	}

	if err := os.Symlink(target, link); err != nil && !os.IsExist(err) {
		return wrapPath("symlink", link, err)
	}
	return nil
}

// DoSortedTree runs an in-order, by-name traversal of root invoking
// handler on every entry selected for full processing (doFullChild),
// recursing into directories selected for full recursion (doFull).
//
// Grounded on waa__do_sorted_tree: the C original free()s by_name
// after the traversal since it's a throwaway sort buffer recomputed
// from by_inode on demand; Go's byName is a persistent, GC-managed
// slice, so there is nothing to free here.
func DoSortedTree(root *Entry, handler func(*Entry) error) error {
	if !root.IsDir() {
		return nil
	}
	if root.toBeSorted || root.byName == nil {
		root.sortByName()
	}

	for _, e := range root.byName {
		if e.doFullChild {
			if err := handler(e); err != nil {
				return err
			}
		}
		if e.doFull && e.IsDir() {
			if err := DoSortedTree(e, handler); err != nil {
				return err
			}
		}
	}
	return nil
}
