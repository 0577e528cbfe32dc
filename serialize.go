// serialize.go - write the entry tree to a dir-file in parent-first,
// inode-approximate order
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
)

// cursorSet tracks one active cursor per open directory while Save
// streams the tree out in parent-first order. Each cursor points at
// the next not-yet-written child within some directory's byInode
// slice; the set stays sorted by the inode of the entry each cursor
// currently points to, so the next entry to write is always at index 0.
//
// This mirrors the dir-file writer's "directory" array: rather than
// resorting on every step, a finished or newly advanced cursor is
// spliced back into position with findPosition, an O(n) shift that is
// cheap because sibling inodes are usually already close to sorted
// (files created near each other in time tend to land near each other
// on disk).
type cursorSet struct {
	cursors [][]*Entry // cursors[i][0] is the next entry for directory i
}

func newCursorSet() *cursorSet {
	return &cursorSet{}
}

func (cs *cursorSet) push(children []*Entry) {
	if len(children) == 0 {
		return
	}
	cs.cursors = append(cs.cursors, children)
}

func (cs *cursorSet) empty() bool {
	return len(cs.cursors) == 0
}

// next pops the lowest-inode entry off cursor 0 (which findPosition
// keeps at the front), advances that cursor, and re-threads it to its
// new sorted position (or drops it if the directory is exhausted).
func (cs *cursorSet) next() *Entry {
	cur := cs.cursors[0]
	e := cur[0]
	rest := cur[1:]

	if len(rest) == 0 {
		cs.cursors = cs.cursors[1:]
		return e
	}

	if len(cs.cursors) == 1 {
		cs.cursors[0] = rest
		return e
	}

	i := findPosition(rest[0], cs.cursors[1:])
	// shift the i directories ahead of the new position down by one,
	// then place the advanced cursor at i.
	copy(cs.cursors[0:i], cs.cursors[1:i+1])
	cs.cursors[i] = rest
	return e
}

// pushDir inserts a newly discovered subdirectory's children into the
// cursor set at their correctly sorted position.
func (cs *cursorSet) pushDir(children []*Entry) {
	if len(children) == 0 {
		return
	}
	i := findPosition(children[0], cs.cursors)
	cs.cursors = append(cs.cursors, nil)
	copy(cs.cursors[i+1:], cs.cursors[i:])
	cs.cursors[i] = children
}

// findPosition returns the index in arr (sorted by the inode of each
// cursor's head entry) at which e belongs, taking two shortcuts the
// original dir-file writer relies on: sequential writes tend to land
// either before the first or after the last active cursor, since
// directories are usually processed in the order the filesystem
// allocated their inodes.
func findPosition(e *Entry, arr [][]*Entry) int {
	n := len(arr)
	if n == 0 {
		return 0
	}
	if lessInode(e, arr[0][0]) {
		return 0
	}
	if n == 1 {
		return 1
	}
	if !lessInode(e, arr[n-1][0]) {
		return n
	}

	lo, hi := 1, n-1
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case lessInode(arr[mid][0], e):
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return hi
}

// Save writes the entry tree rooted at root to w as a dir-file: a
// fixed-width header followed by one record per entry, root first,
// every entry's parent written before it, and children streamed in
// inode order within each directory (spec §4.5, §6.3). sess may be
// nil; if set, its logger records an open/close pair at Debug level
// (spec §9.2).
func Save(root *Entry, w *Handle, sess *Session) error {
	sess.logf("save: writing %s", root.Path())
	if root.toBeSorted {
		root.sortByInode()
	}

	placeholder := blankHeader()
	if _, err := w.Write(placeholder); err != nil {
		return fmt.Errorf("save: header: %w", err)
	}

	root.FileIndex = 1
	rootBuf, err := root.Marshal()
	if err != nil {
		return fmt.Errorf("save: root: %w", err)
	}
	if _, err := w.Write(rootBuf); err != nil {
		return fmt.Errorf("save: root: %w", err)
	}
	if _, err := w.Write([]byte(recordSep)); err != nil {
		return err
	}

	completeCount := 1
	stringSpace := len(root.name) + 1
	root.calcPathLen()
	maxPathLen := root.pathLen
	maxCursors := 1

	if root.EntryCount == 0 {
		if err := finishSave(w, completeCount, maxCursors, stringSpace, maxPathLen); err != nil {
			return err
		}
		sess.logf("save: closed %s: %d entries", root.Path(), completeCount)
		return nil
	}

	cs := newCursorSet()
	cs.push(root.byInode)

	for !cs.empty() {
		if len(cs.cursors) > maxCursors {
			maxCursors = len(cs.cursors)
		}

		e := cs.next()

		if e.Type == TypeIgnored {
			continue
		}

		completeCount++
		e.FileIndex = completeCount

		buf, err := e.Marshal()
		if err != nil {
			return fmt.Errorf("save: %s: %w", e.Path(), err)
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
		if _, err := w.Write([]byte(recordSep)); err != nil {
			return err
		}

		stringSpace += len(e.name) + 1
		e.calcPathLen()
		if e.pathLen > maxPathLen {
			maxPathLen = e.pathLen
		}

		if e.Type == TypeDirectory && e.EntryCount > 0 {
			if e.toBeSorted {
				e.sortByInode()
			}
			cs.pushDir(e.byInode)
		}
	}

	if err := finishSave(w, completeCount, maxCursors, stringSpace, maxPathLen); err != nil {
		return err
	}
	sess.logf("save: closed %s: %d entries", root.Path(), completeCount)
	return nil
}

func finishSave(w *Handle, entryCount, maxCursors, stringSpace, maxPathLen int) error {
	h := &dirHeader{
		Version:      dirFileVersion,
		HeaderLen:    headerLen,
		EntryCount:   entryCount,
		MaxDirCursor: maxCursors,
		StringSpace:  stringSpace + 4,
		MaxPathLen:   maxPathLen + 4,
	}
	hb, err := h.encode()
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}

	if _, err := w.WriteAt(hb, 0); err != nil {
		return fmt.Errorf("save: rewrite header: %w", err)
	}
	return nil
}
