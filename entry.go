// entry.go - the in-memory model of one filesystem object tracked by the WAA
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

// Package waa implements the Working-Copy Administrative Area core: an
// on-disk, content-addressed cache of a directory tree's metadata (the
// entry tree), a binary dir-file serializer/loader, and a merge-delta
// updater that reconciles a loaded tree against the live filesystem.
package waa

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"time"
)

// EntryType classifies the kind of filesystem object an Entry represents.
type EntryType uint8

const (
	TypeUnknown EntryType = iota
	TypeRegular
	TypeDirectory
	TypeSymlink
	TypeDevice
	TypeIgnored
)

func (t EntryType) String() string {
	switch t {
	case TypeRegular:
		return "file"
	case TypeDirectory:
		return "dir"
	case TypeSymlink:
		return "symlink"
	case TypeDevice:
		return "device"
	case TypeIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Status is a bitset of transient, per-update diff flags recorded on an
// Entry by the tree updater (C7). It is never persisted to the dir-file.
type Status uint32

const (
	New          Status = 1 << iota // not present in the previously loaded tree
	Deleted                         // present before, absent now (or type changed away)
	Replaced                        // DELETED|REPLACED together mean "different type now"
	Changed                         // a comparable attribute differs from the persisted one
	ChildChanged                    // a child of this directory changed
	Likely                          // heuristically unchanged: a re-stat found no compared attribute differing
	MetaChanged                     // only lightweight metadata (eg. xattr) differs
)

func (s Status) String() string {
	names := []struct {
		bit Status
		nm  string
	}{
		{New, "new"}, {Deleted, "deleted"}, {Replaced, "replaced"},
		{Changed, "changed"}, {ChildChanged, "child-changed"},
		{Likely, "likely"}, {MetaChanged, "meta-changed"},
	}
	var out string
	for _, n := range names {
		if s&n.bit != 0 {
			if out != "" {
				out += "|"
			}
			out += n.nm
		}
	}
	if out == "" {
		return "none"
	}
	return out
}

// Flags is a bitset of persistent, per-entry bits that survive the
// dir-file round trip (they are marshaled and unmarshaled with the rest
// of the entry).
type Flags uint32

const (
	FlagAdd Flags = 1 << iota
	FlagCheck
	FlagUnversion
)

// Entry represents one filesystem object: a regular file, directory,
// symlink, device node, or an ignored entry retained only as a tombstone
// placeholder. See spec §3.1.
type Entry struct {
	name   string
	parent *Entry

	Ino   uint64
	Dev   uint64
	Rdev  uint64
	Mode  fs.FileMode
	Size  int64
	Mtime time.Time
	Nlink uint32
	Uid   uint32
	Gid   uint32

	Type   EntryType
	Status Status
	Flags  Flags

	// Xattr carries extended filesystem attributes; see SPEC_FULL.md §3.1.
	// A change here (and only here) sets Status MetaChanged rather than
	// Changed.
	Xattr Xattr

	// children, directories only. byInode is kept sorted by (Dev, Ino)
	// for the inode-approximate serialization order (C5); byName is
	// kept sorted lexicographically for the merge against the live
	// filesystem (C7).
	byInode []*Entry
	byName  []*Entry

	// EntryCount is the persisted child count; it is the authoritative
	// size of byInode/byName once a tree has been loaded or updated.
	EntryCount int

	// PathLevel is the depth from the root; PathLevel(root) == 0.
	PathLevel int

	// FileIndex is the 1-based position of this entry in the dir-file.
	// It is transient: valid only during Save/Load.
	FileIndex int

	// parentRef is the 1-based FileIndex of the parent entry, as
	// written to and read from the dir-file record (the tree on disk
	// has no pointers, only this back-reference). It is consumed once
	// during Load and is meaningless afterwards.
	parentRef int

	// ReposRev/URL/OtherRevs are opaque to the WAA core; it only
	// threads them through load/save and flags a mixed-revision
	// ancestor chain in OtherRevs.
	ReposRev  int64
	URL       string
	OtherRevs bool

	pathLen int

	// traversal-selection bits, set by the tree updater (C7).
	doFull       bool
	doFullChild  bool
	doAChild     bool
	keepChildren bool

	// toBeSorted marks that byInode needs re-sorting before the next
	// serialization pass (new children were appended out of order).
	toBeSorted bool

	// childIndex is a transient cursor used only during Load: it is the
	// next slot to fill in the parent's byInode array, and is reset to 0
	// once the load finishes. UpdateTree does not use it; updateDir
	// finalizes a directory once its merge has seen every child.
	childIndex int
}

// NewRoot creates a fresh, unparented root Entry named nm (normally an
// absolute working-copy path or its basename — callers decide).
func NewRoot(nm string) *Entry {
	return &Entry{
		name:      nm,
		Type:      TypeDirectory,
		PathLevel: 0,
	}
}

// Name returns the entry's basename.
func (e *Entry) Name() string { return e.name }

// Parent returns the owning directory Entry, or nil for the tree root.
func (e *Entry) Parent() *Entry { return e.parent }

// IsRoot returns true if e has no parent.
func (e *Entry) IsRoot() bool { return e.parent == nil }

// IsDir returns true if e represents a directory.
func (e *Entry) IsDir() bool { return e.Type == TypeDirectory }

// Path reconstructs the full relative path of e by walking parent
// pointers. The root's own name is not included unless e is the root.
func (e *Entry) Path() string {
	if e.parent == nil {
		return e.name
	}
	parts := make([]string, 0, e.PathLevel)
	for cur := e; cur.parent != nil; cur = cur.parent {
		parts = append(parts, cur.name)
	}
	// parts is leaf-to-root; reverse it
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return filepath.Join(parts...)
}

// calcPathLen computes and caches the byte length of e.Path(); see
// spec §4.5 (max_path_len tracking).
func (e *Entry) calcPathLen() int {
	if e.pathLen == 0 {
		e.pathLen = len(e.Path())
	}
	return e.pathLen
}

// ByInode returns the directory's children sorted by (Dev, Ino). The
// returned slice must not be mutated by callers.
func (e *Entry) ByInode() []*Entry { return e.byInode }

// ByName returns the directory's children sorted by name. The returned
// slice must not be mutated by callers.
func (e *Entry) ByName() []*Entry { return e.byName }

// sortByInode sorts byInode by (Dev, Ino), with ties broken by insertion
// order (stable sort), matching the hard-link adjacency behavior
// described in spec §4.5's find-position rule.
func (e *Entry) sortByInode() {
	sort.SliceStable(e.byInode, func(i, j int) bool {
		return lessInode(e.byInode[i], e.byInode[j])
	})
	e.toBeSorted = false
}

// sortByName sorts byName lexicographically; used before the merge
// against a live enumeration (C7).
func (e *Entry) sortByName() {
	sort.Slice(e.byName, func(i, j int) bool {
		return e.byName[i].name < e.byName[j].name
	})
}

func lessInode(a, b *Entry) bool {
	if a.Dev != b.Dev {
		return a.Dev < b.Dev
	}
	return a.Ino < b.Ino
}

// IsSameFS returns true if a and b live on the same device.
func (a *Entry) IsSameFS(b *Entry) bool {
	return a.Dev == b.Dev && a.Rdev == b.Rdev
}

// CopyTo deep-copies the metadata of e into dest, preserving dest's
// Xattr map identity (merging keys) rather than replacing it, so
// callers that hold onto dest's Xattr reference keep seeing updates.
func (e *Entry) CopyTo(dest *Entry) {
	old := dest.Xattr
	name, parent, byInode, byName := dest.name, dest.parent, dest.byInode, dest.byName
	*dest = *e
	dest.name, dest.parent, dest.byInode, dest.byName = name, parent, byInode, byName

	if old == nil {
		old = make(Xattr)
	}
	for k, v := range e.Xattr {
		old[k] = v
	}
	dest.Xattr = old
}

// SelectAll recursively marks e and every descendant as selected for
// full processing (doFull/doFullChild), the traversal-selection bits
// DoSortedTree and UpdateTreeArgs's restricted walk read. It is the
// simplest possible selection policy — "visit everything" — for
// callers (eg. a display-only CLI) that have no action-specific
// set_to_handle_bits equivalent of their own.
func (e *Entry) SelectAll() {
	e.doFull = true
	e.doFullChild = true
	for _, c := range e.byName {
		c.SelectAll()
	}
}

// String renders a short diagnostic summary of the entry.
func (e *Entry) String() string {
	return fmt.Sprintf("%s: %s %d %s %s", e.Path(), e.Type, e.Size, e.Mtime.UTC(), e.Status)
}
