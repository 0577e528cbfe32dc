// load.go - load a dir-file back into an entry tree
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
	"os"

	"github.com/opencoff/go-mmap"
)

// Load reads the dir-file at path in a single mmap'd pass and
// reconstructs the entry tree. name becomes the root's basename. Every
// structural inconsistency (short buffer, bad header, out-of-range
// parent reference, child-count overrun) is reported as ErrDamaged so
// callers can uniformly fall back to a full re-enumeration (spec §4.6,
// §7). sess may be nil; if set, its logger records an open/close pair
// at Debug level (spec §9.2).
func Load(path, name string, sess *Session) (*Entry, error) {
	sess.logf("load: opening %s", path)
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapPath("load", path, err)
	}
	defer f.Close()

	var root *Entry
	_, err = mmap.Reader(f, func(b []byte) error {
		r, err := loadFromBuffer(b, name, sess)
		if err != nil {
			return err
		}
		root = r
		return nil
	})
	if err != nil {
		return nil, wrapPath("load", path, err)
	}
	sess.logf("load: closed %s", path)
	return root, nil
}

// loadFromBuffer parses the full contents of a dir-file already mapped
// into b. It does a single forward pass: each record carries its
// parent's FileIndex, which resolves against a flat slice of every
// entry seen so far (index parentRef-1, since FileIndex is 1-based and
// assigned in write order). This replaces the original C loader's
// reliance on one contiguous allocation block for pointer arithmetic.
// sess may be nil.
func loadFromBuffer(b []byte, name string, sess *Session) (*Entry, error) {
	if len(b) < headerLen+len(recordSep) {
		return nil, fmt.Errorf("load: truncated file: %w", ErrDamaged)
	}
	if b[len(b)-2] != 0 || b[len(b)-1] != '\n' {
		return nil, fmt.Errorf("load: missing trailing record terminator: %w", ErrDamaged)
	}

	h, err := parseHeader(b[:headerLen])
	if err != nil {
		return nil, err
	}
	sess.logf("load: header: %d entries, string_space=%d, max_path_len=%d", h.EntryCount, h.StringSpace, h.MaxPathLen)
	cur := b[headerLen:]

	flat := make([]*Entry, 0, h.EntryCount)

	var root *Entry
	for i := 0; i < h.EntryCount; i++ {
		e := new(Entry)
		n, err := e.Unmarshal(cur)
		if err != nil {
			return nil, fmt.Errorf("load: record %d: %w: %v", i, ErrDamaged, err)
		}
		cur = cur[n:]
		if len(cur) < len(recordSep) || cur[0] != 0 || cur[1] != '\n' {
			return nil, fmt.Errorf("load: record %d: missing separator: %w", i, ErrDamaged)
		}
		cur = cur[len(recordSep):]

		if i == 0 {
			if e.FileIndex != 1 {
				return nil, fmt.Errorf("load: root has file_index %d: %w", e.FileIndex, ErrDamaged)
			}
			e.name = name
			root = e
			flat = append(flat, root)

			if root.EntryCount > 0 {
				root.byInode = make([]*Entry, root.EntryCount)
			}
			continue
		}

		if e.FileIndex != i+1 {
			return nil, fmt.Errorf("load: record %d: out-of-order file_index %d: %w", i, e.FileIndex, ErrDamaged)
		}

		parentIdx := e.parentRef - 1
		if e.parentRef <= 0 || parentIdx >= len(flat) {
			return nil, fmt.Errorf("load: record %d: bad parent reference: %w", i, ErrDamaged)
		}
		parent := flat[parentIdx]

		e.parent = parent
		e.PathLevel = parent.PathLevel + 1

		if parent.childIndex >= parent.EntryCount {
			return nil, fmt.Errorf("load: parent %s: too many children: %w", parent.name, ErrDamaged)
		}
		parent.byInode[parent.childIndex] = e
		parent.childIndex++

		if e.ReposRev != parent.ReposRev {
			for a := parent; a != nil && !a.OtherRevs; a = a.parent {
				a.OtherRevs = true
			}
		}

		if e.Type == TypeDirectory && e.EntryCount > 0 {
			e.byInode = make([]*Entry, e.EntryCount)
		}

		flat = append(flat, e)
	}

	for _, e := range flat {
		if e.IsDir() && e.childIndex != e.EntryCount {
			return nil, fmt.Errorf("load: %s: expected %d children, saw %d: %w",
				e.name, e.EntryCount, e.childIndex, ErrDamaged)
		}
		e.childIndex = 0
		if e.IsDir() {
			e.byName = make([]*Entry, len(e.byInode))
			copy(e.byName, e.byInode)
			sortByNameSlice(e.byName)
		}
	}

	return root, nil
}

func sortByNameSlice(s []*Entry) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1].name > s[j].name; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
