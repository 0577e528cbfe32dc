// update.go - merge-delta reconciliation of a loaded tree against the
// live filesystem
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
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// UpdateTree walks the tree rooted at root (as loaded from a prior
// dir-file) and compares every entry against the live filesystem
// beneath rootPath, single-threaded and depth-first. It annotates
// Status on every Entry it touches (New, Deleted, Replaced, Changed,
// ChildChanged, MetaChanged, or Likely) and returns only on an
// unrecoverable I/O error.
//
// UpdateTree must not be called concurrently on the same tree: the
// traversal mutates Entry.Status and the byInode/byName slices as
// it runs, matching the single-threaded merge-kernel requirement this
// package is built around. Any concurrent discovery (eg. fanning out
// lstat(2) calls with a ConcurrentEnumerator) must complete and hand
// off its results before UpdateTree starts.
// action may be nil, in which case no entry is dispatched anywhere —
// useful for a pure status probe that only wants the Status bits.
func UpdateTree(root *Entry, rootPath string, sess *Session, action *Action) error {
	sess.infof("update: starting at %s", rootPath)
	root.name = filepath.Base(rootPath)
	err := updateEntry(root, rootPath, sess, action, false)
	sess.infof("update: finished at %s: %v", rootPath, err)
	return err
}

// UpdateTreeArgs restricts UpdateTree's traversal to the subtrees that
// cover args — paths already expressed relative to rootPath, "." meaning
// rootPath itself (the shape FindCommonBase's rel return value takes).
// Entries outside every arg's ancestor chain are left completely
// untouched: not re-stat'd, Status and selection bits unchanged (spec §8
// property S6). Grounded on spec §4.7's partial_update: each arg is
// lstat'd and found-or-created (with FlagAdd) in the loaded tree, every
// ancestor on its path is marked doAChild, and the arg's own entry is
// marked doFull|doFullChild so its whole subtree updates normally. If no
// arg resolves to anything (live or in the loaded tree), this falls back
// to a full UpdateTree, exactly as spec §4.7 requires ("if the root
// never received do_full or do_a_child, default to full update").
func UpdateTreeArgs(root *Entry, rootPath string, sess *Session, action *Action, args []string) error {
	if len(args) == 0 {
		return UpdateTree(root, rootPath, sess, action)
	}

	selected := false
	for _, a := range args {
		if partialSelect(root, rootPath, a, sess) {
			selected = true
		}
	}
	if !selected {
		return UpdateTree(root, rootPath, sess, action)
	}

	root.name = filepath.Base(rootPath)
	sess.infof("update: starting partial update at %s (args=%v)", rootPath, args)
	err := updateEntry(root, rootPath, sess, action, true)
	sess.infof("update: finished partial update at %s: %v", rootPath, err)
	return err
}

// partialSelect locates, or creates with FlagAdd, the Entry for rel (a
// path relative to root) and marks the selection bits spec §4.7's
// partial_update describes: every ancestor on the path gets doAChild
// (and ChildChanged, since an update is now pending somewhere beneath
// it), and the target itself gets doFull and doFullChild (its whole
// subtree updates as if by a full UpdateTree). It returns false if rel
// names something that exists in neither the loaded tree nor the live
// filesystem, so the caller can fall back to a full update.
func partialSelect(root *Entry, rootPath, rel string, sess *Session) bool {
	rel = filepath.Clean(rel)
	if rel == "." || rel == "" {
		root.doFull = true
		root.doFullChild = true
		return true
	}

	cur := root
	curPath := rootPath
	for _, name := range strings.Split(filepath.ToSlash(rel), "/") {
		curPath = filepath.Join(curPath, name)

		child := findChildByName(cur, name)
		if child == nil {
			var fresh Entry
			if err := lstatEntry(curPath, &fresh); err != nil {
				return false
			}
			fresh.name = name
			fresh.parent = cur
			fresh.PathLevel = cur.PathLevel + 1
			fresh.Status = New
			fresh.Flags |= FlagAdd
			sess.logf("update: added %s (partial-update target)", curPath)

			cur.byName = append(cur.byName, &fresh)
			cur.byInode = append(cur.byInode, &fresh)
			cur.toBeSorted = true
			cur.EntryCount = len(cur.byName)
			child = &fresh
		}

		cur.doAChild = true
		cur.Status |= ChildChanged
		cur = child
	}

	cur.doFull = true
	cur.doFullChild = true
	return true
}

func findChildByName(dir *Entry, name string) *Entry {
	for _, c := range dir.byName {
		if c.name == name {
			return c
		}
	}
	return nil
}

// updateEntry re-stats a single entry, updates its metadata and
// status in place, dispatches it to action if it is not a directory
// (directories are dispatched once from updateDir, after all their
// known children have been seen — spec §4.7 step 9), and recurses into
// directories.
//
// restrict, when true, limits work to the subtrees UpdateTreeArgs
// selected: an entry with neither doFullChild nor doAChild set is an
// ancestor-of-nothing-selected and is skipped outright; an entry with
// doAChild but not doFullChild is an ancestor on the path to a selected
// descendant and is recursed into (to reach that descendant) without
// being re-stat'd itself; doFull switches descendants back to
// unrestricted processing, since it means "this whole subtree updates".
func updateEntry(e *Entry, path string, sess *Session, action *Action, restrict bool) error {
	if sess.ignored(e, path) {
		return nil
	}

	if restrict && !e.doFullChild {
		if !e.doAChild {
			return nil
		}
		if e.IsDir() {
			return updateDir(e, path, sess, action, true)
		}
		return nil
	}

	var fresh Entry
	err := lstatEntry(path, &fresh)
	if err != nil {
		// lstatEntry wraps the raw syscall error into a *PathError (see
		// entry_stat.go/errors.go), which os.IsNotExist does not
		// recognize (it only unwraps *os.PathError/*os.LinkError/
		// *os.SyscallError). errors.Is follows *PathError's Unwrap
		// instead, matching util.go's SaveCwd idiom (spec §7).
		if errors.Is(err, fs.ErrNotExist) {
			sess.logf("update: deleted %s", path)
			e.Status |= Deleted
			if e.parent != nil {
				e.parent.Status |= Changed | ChildChanged
				e.parent.Status &^= Likely
			}
			return action.Dispatch(e)
		}
		return wrapPath("update", path, err)
	}

	wasDir := e.IsDir()
	typeChanged := e.Type != TypeUnknown && e.Type != fresh.Type

	metaChanged := !e.Xattr.Equal(fresh.Xattr)
	dataChanged := e.Size != fresh.Size || !e.Mtime.Equal(fresh.Mtime) ||
		e.Nlink != fresh.Nlink || e.Mode != fresh.Mode || e.Uid != fresh.Uid || e.Gid != fresh.Gid

	e.Ino, e.Dev, e.Rdev = fresh.Ino, fresh.Dev, fresh.Rdev
	e.Size, e.Mode, e.Uid, e.Gid, e.Nlink, e.Mtime = fresh.Size, fresh.Mode, fresh.Uid, fresh.Gid, fresh.Nlink, fresh.Mtime
	e.Xattr = fresh.Xattr

	switch {
	case typeChanged:
		sess.logf("update: replaced %s (%s -> %s)", path, e.Type, fresh.Type)
		e.Status |= Deleted | Replaced
		e.Type = fresh.Type
		if action == nil || !action.KeepChildren {
			e.EntryCount = 0
			e.byInode, e.byName = nil, nil
		}
	case dataChanged:
		e.Status |= Changed
	case metaChanged:
		e.Status |= MetaChanged
	default:
		e.Status |= Likely
	}

	if e.parent != nil && (e.Status&(Changed|Replaced|MetaChanged) != 0) {
		e.parent.Status |= ChildChanged
	}

	if e.IsDir() {
		// updateDir always dispatches e itself once, at the point it has
		// seen every known child (spec §4.7 step 9) — including the
		// typeChanged transition above, where e is a stale non-directory
		// record replaced by a live directory and still carries Deleted
		// on the superseded record. There is no second, directory-found-
		// deleted case to special-case here: an actually-missing
		// directory never reaches this point, since lstatEntry's
		// ENOENT is handled earlier in this function and returns before
		// updateDir ever runs. Dispatching again here would violate the
		// "replaced entries exactly once" property (spec §8).
		//
		// restrict relaxes to false beneath a doFull entry: once a
		// subtree has been selected in full, everything under it
		// updates unconditionally rather than consulting per-child bits.
		return updateDir(e, path, sess, action, restrict && !e.doFull)
	}

	if wasDir && !typeChanged {
		// defensive: a directory-shaped entry that stat no longer
		// reports as a directory without us noticing is a bug
		// elsewhere, not a condition to silently ignore.
		e.Status |= Changed
	}

	return action.Dispatch(e)
}

// updateDir reconciles e's previously known children (sorted by name)
// against a fresh directory listing using the classic sorted
// two-pointer merge: names present in both are recursed into, names
// only in the old list are deletions, and names only in the live
// listing are additions (spec §4.7, grounded on the update_dir merge
// loop that swaps unwanted elements to the tail rather than moving
// memory). Deleted and replaced children stay in byName, carrying their
// Status bits, until PruneDeleted drops the Deleted ones.
//
// When restrict is true, e is on the path to a selected subtree but was
// not itself selected for full processing (UpdateTreeArgs already ruled
// out the doFullChild case before calling here — see updateEntry). No
// live enumeration happens in this mode: any genuinely new path a
// partial update cares about was already inserted by partialSelect
// before the walk began, so there is nothing this directory's own
// readdir could discover that matters. Existing children are walked
// in place and only descended into if they themselves carry a selection
// bit; everything else is left exactly as loaded (spec §8 property S6).
func updateDir(e *Entry, path string, sess *Session, action *Action, restrict bool) error {
	if restrict {
		for _, c := range e.byName {
			if !(c.doFullChild || c.doAChild || c.doFull) {
				continue
			}
			if err := updateEntry(c, filepath.Join(path, c.name), sess, action, true); err != nil {
				return err
			}
		}
		return nil
	}

	names, err := readDirNames(path)
	if err != nil {
		return wrapPath("update", path, err)
	}
	sort.Strings(names)

	old := e.byName
	next := make([]*Entry, 0, len(names))

	i, j := 0, 0
	added := 0
	for i < len(old) || j < len(names) {
		switch {
		case j >= len(names):
			sess.logf("update: deleted %s", filepath.Join(path, old[i].name))
			old[i].Status |= Deleted
			e.Status |= Changed | ChildChanged
			next = append(next, old[i])
			i++

		case i >= len(old):
			if c := newChildEntry(e, path, names[j], sess, action); c != nil {
				next = append(next, c)
				added++
			}
			j++

		case old[i].name == names[j]:
			if err := updateEntry(old[i], filepath.Join(path, names[j]), sess, action, false); err != nil {
				return err
			}
			next = append(next, old[i])
			if old[i].Status&Deleted != 0 {
				e.Status |= Changed | ChildChanged
			}
			i++
			j++

		case old[i].name < names[j]:
			sess.logf("update: deleted %s", filepath.Join(path, old[i].name))
			old[i].Status |= Deleted
			e.Status |= Changed | ChildChanged
			next = append(next, old[i])
			i++

		default:
			if c := newChildEntry(e, path, names[j], sess, action); c != nil {
				next = append(next, c)
				added++
			}
			j++
		}
	}

	if added > 0 {
		e.Status |= Changed | ChildChanged
		e.Status &^= Likely
	}

	e.byName = next
	e.byInode = append([]*Entry(nil), next...)
	e.toBeSorted = true
	e.EntryCount = len(next)

	// This directory has now seen every known child (spec §4.7 step
	// 8's finalization point), so it is the one place a surviving
	// directory gets dispatched from.
	return action.Dispatch(e)
}

// newChildEntry stats a freshly discovered name, marks it New, and
// links it under parent. It returns nil if sess's ignore predicate
// vetoes the entry.
func newChildEntry(parent *Entry, dirPath, name string, sess *Session, action *Action) *Entry {
	full := filepath.Join(dirPath, name)

	c := new(Entry)
	if err := lstatEntry(full, c); err != nil {
		return nil
	}
	c.name = name
	c.parent = parent
	c.PathLevel = parent.PathLevel + 1
	c.Status = New

	if sess.isAdminArea(c) {
		// never let the WAA's own storage directory appear as a
		// versioned entry in the tree it is tracking (spec §4.3).
		return nil
	}
	if sess.ignored(c, full) {
		return nil
	}
	sess.logf("update: added %s", full)

	if c.IsDir() {
		buildTree(c, full, sess, action)
	} else {
		action.Dispatch(c)
	}

	return c
}

// buildTree populates a brand-new subtree (one with no prior dir-file
// entry) by enumerating it outright; every entry found is marked New.
// This is the initial-population counterpart to updateDir's merge,
// used both for a freshly added directory and for the very first scan
// of a working copy.
func buildTree(root *Entry, path string, sess *Session, action *Action) {
	names, err := readDirNames(path)
	if err != nil {
		return
	}
	sort.Strings(names)

	children := make([]*Entry, 0, len(names))
	for _, nm := range names {
		c := newChildEntry(root, path, nm, sess, action)
		if c != nil {
			children = append(children, c)
		}
	}

	root.byName = children
	root.byInode = append([]*Entry(nil), children...)
	root.toBeSorted = true
	root.EntryCount = len(children)

	action.Dispatch(root)
}

// InitialScan lstats path and, if it is a directory, fully populates
// its subtree via buildTree: this is the entry point for a working
// copy that has no prior dir-file to Load, equivalent to the first
// build_tree call the C original makes before any dir-file exists.
func InitialScan(path string, sess *Session, action *Action) (*Entry, error) {
	root := NewRoot(filepath.Base(path))
	if err := lstatEntry(path, root); err != nil {
		return nil, wrapPath("scan", path, err)
	}
	root.name = filepath.Base(path)
	root.Status = New

	if root.IsDir() {
		// buildTree dispatches root itself once it has finalized
		// root's children (spec §4.7 step 9); dispatching it again
		// here would violate the "dispatched exactly once" property
		// spec §8 requires (see update_test.go's replaced-dir test
		// for the analogous updateEntry/updateDir case).
		buildTree(root, path, sess, action)
		return root, nil
	}
	return root, action.Dispatch(root)
}

// PruneDeleted physically drops every Deleted entry from the tree
// rooted at root, recursively. Callers run this after inspecting an
// UpdateTree result (eg. for display or a commit-equivalent action)
// and before the next Save, since the dir-file format has no tombstone
// representation of its own.
func PruneDeleted(root *Entry) {
	if !root.IsDir() {
		return
	}

	kept := root.byName[:0:0]
	for _, c := range root.byName {
		if c.Status&Deleted != 0 {
			continue
		}
		PruneDeleted(c)
		kept = append(kept, c)
	}

	root.byName = kept
	root.byInode = append([]*Entry(nil), kept...)
	root.toBeSorted = true
	root.EntryCount = len(kept)
}
