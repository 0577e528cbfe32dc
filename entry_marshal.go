// entry_marshal.go - dir-file record encoding for Entry
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
	"bytes"
	"fmt"
	"io/fs"
	"strconv"
	"time"
)

// recordFieldCount is the number of space-separated integer fields that
// precede the name in a record, in the order encodeFields/decodeFields
// read and write them: version, type, flags, ino, dev, rdev, size,
// mode, uid, gid, nlink, mtime_sec, mtime_nsec, reposrev, otherrevs,
// fileindex, parentindex, entrycount.
const recordFieldCount = 18

const recordVersion = 1

// encodeFields renders e's record as spec §6.3 describes it: integer
// fields separated by single spaces, followed by one more space and
// e's name. The name is not NUL-terminated here — Save appends
// recordSep ("\0\n") after every record, which supplies that
// terminator along with the human-readable line break.
//
// Xattr and URL are deliberately not part of this record: spec §6.3's
// field list is fixed-width integers only, and neither value fits that
// shape without smuggling a length-prefixed blob in among fields meant
// to be plain decimal integers. Xattr is re-derived from a live stat
// during every UpdateTree pass (entry_stat.go), so a freshly Load-ed,
// not-yet-updated entry reports an empty Xattr until its next re-stat.
// URL is not re-derived: nothing in this package sets it, so a Load-ed
// entry's URL is always empty.
func (e *Entry) encodeFields() []byte {
	var b []byte
	b = strconv.AppendInt(b, recordVersion, 10)
	b = appendField(b, int64(e.Type))
	b = appendField(b, int64(e.Flags))
	b = appendFieldU(b, e.Ino)
	b = appendFieldU(b, e.Dev)
	b = appendFieldU(b, e.Rdev)
	b = appendField(b, e.Size)
	b = appendFieldU(b, uint64(e.Mode))
	b = appendFieldU(b, uint64(e.Uid))
	b = appendFieldU(b, uint64(e.Gid))
	b = appendFieldU(b, uint64(e.Nlink))
	b = appendField(b, e.Mtime.Unix())
	b = appendField(b, int64(e.Mtime.Nanosecond()))
	b = appendField(b, e.ReposRev)
	b = appendField(b, boolInt(e.OtherRevs))
	b = appendField(b, int64(e.FileIndex))
	b = appendField(b, int64(parentFileIndex(e)))
	b = appendField(b, int64(e.EntryCount))
	b = append(b, ' ')
	b = append(b, e.name...)
	return b
}

func appendField(b []byte, v int64) []byte {
	b = append(b, ' ')
	return strconv.AppendInt(b, v, 10)
}

func appendFieldU(b []byte, v uint64) []byte {
	b = append(b, ' ')
	return strconv.AppendUint(b, v, 10)
}

func boolInt(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

// parentFileIndex returns the wire value for e's parent reference: 0
// for the root (which has no parent), otherwise the parent's
// FileIndex.
func parentFileIndex(e *Entry) int {
	if e.parent == nil {
		return 0
	}
	return e.parent.FileIndex
}

// MarshalSize returns the number of bytes Marshal will produce for e,
// not including the trailing "\0\n" record terminator.
func (e *Entry) MarshalSize() int {
	return len(e.encodeFields())
}

// MarshalTo encodes e into b, which must be at least e.MarshalSize()
// bytes. It returns the number of bytes written.
func (e *Entry) MarshalTo(b []byte) (int, error) {
	rec := e.encodeFields()
	if len(b) < len(rec) {
		return 0, fmt.Errorf("entry marshal: %s: %w", e.name, ErrTooSmall)
	}
	return copy(b, rec), nil
}

// Marshal encodes e into a freshly allocated, correctly sized buffer.
func (e *Entry) Marshal() ([]byte, error) {
	return e.encodeFields(), nil
}

// Unmarshal decodes one entry record from b into e (parent and
// children are not set; the caller links them) and returns the number
// of bytes consumed — up to, but not including, the NUL that
// terminates the name (spec §6.3: "a single NUL-terminated name
// string"). The caller is expected to find that NUL immediately after
// the returned offset, as part of the record separator.
func (e *Entry) Unmarshal(b []byte) (int, error) {
	cur := b
	fields := make([]int64, recordFieldCount)
	for i := 0; i < recordFieldCount; i++ {
		rest, tok, err := scanField(cur)
		if err != nil {
			return 0, fmt.Errorf("entry unmarshal: field %d: %w", i, err)
		}
		v, err := strconv.ParseInt(string(tok), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("entry unmarshal: field %d: %w: %v", i, ErrDamaged, err)
		}
		fields[i] = v
		cur = rest
	}

	nul := bytes.IndexByte(cur, 0)
	if nul < 0 {
		return 0, fmt.Errorf("entry unmarshal: name: missing NUL terminator: %w", ErrTooSmall)
	}
	e.name = string(cur[:nul])

	ver := fields[0]
	if ver != recordVersion {
		return 0, fmt.Errorf("entry unmarshal: unsupported version %d", ver)
	}
	e.Type = EntryType(fields[1])
	e.Flags = Flags(fields[2])
	e.Ino = uint64(fields[3])
	e.Dev = uint64(fields[4])
	e.Rdev = uint64(fields[5])
	e.Size = fields[6]
	e.Mode = fs.FileMode(fields[7])
	e.Uid = uint32(fields[8])
	e.Gid = uint32(fields[9])
	e.Nlink = uint32(fields[10])
	e.Mtime = time.Unix(fields[11], fields[12])
	e.ReposRev = fields[13]
	e.OtherRevs = fields[14] != 0
	e.FileIndex = int(fields[15])
	e.parentRef = int(fields[16])
	e.EntryCount = int(fields[17])

	consumed := len(b) - len(cur) + nul
	return consumed, nil
}

// scanField splits the next space-terminated token off b, returning
// the token and the remainder with the separating space consumed.
func scanField(b []byte) (rest, token []byte, err error) {
	i := bytes.IndexByte(b, ' ')
	if i < 0 {
		return nil, nil, fmt.Errorf("missing field separator: %w", ErrDamaged)
	}
	return b[i+1:], b[:i], nil
}
