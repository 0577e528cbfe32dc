// entry_stat_darbsd.go - syscall.Stat_t to Entry for darwin and freebsd
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

//go:build darwin || freebsd

package waa

import (
	"io/fs"
	"syscall"
)

func makeEntry(e *Entry, nm string, st *syscall.Stat_t, x Xattr) {
	*e = Entry{
		name:  nm,
		Ino:   st.Ino,
		Size:  st.Size,
		Dev:   uint64(st.Dev),
		Rdev:  uint64(st.Rdev),
		Mode:  fs.FileMode(st.Mode & 0777),
		Uid:   st.Uid,
		Gid:   st.Gid,
		Nlink: uint32(st.Nlink),
		Mtime: ts2time(st.Mtimespec),
		Xattr: x,
	}
	applyModeBits(e, uint32(st.Mode))
	e.Type = modeToEntryType(e.Mode)
}
