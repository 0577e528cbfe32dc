// entry_stat.go - construct Entry values from live filesystem stat(2)
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
	"os"
	"path/filepath"
	"syscall"
)

// statEntry populates e from a live stat(2) of nm (following symlinks),
// capturing extended attributes along the way.
func statEntry(nm string, e *Entry) error {
	var st syscall.Stat_t
	if err := syscall.Stat(nm, &st); err != nil {
		return wrapPath("stat", nm, err)
	}

	x, err := readXattr(nm)
	if err != nil {
		return wrapPath("stat", nm, err)
	}

	makeEntry(e, filepath.Base(nm), &st, x)
	return nil
}

// lstatEntry is like statEntry but does not follow a trailing symlink.
func lstatEntry(nm string, e *Entry) error {
	var st syscall.Stat_t
	if err := syscall.Lstat(nm, &st); err != nil {
		return wrapPath("lstat", nm, err)
	}

	x, err := readXattrLink(nm)
	if err != nil {
		return wrapPath("lstat", nm, err)
	}

	makeEntry(e, filepath.Base(nm), &st, x)
	return nil
}

// fstatEntry populates e by lstat-ing the name fd was opened with; the
// open handle itself is not stat'd.
func fstatEntry(fd *os.File, e *Entry) error {
	return lstatEntry(fd.Name(), e)
}
