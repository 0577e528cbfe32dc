// dirfile.go - on-disk dir-file header layout
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
	"strings"
)

// dirFileVersion is the on-disk format version written in the header;
// entry records carry their own recordVersion (entry_marshal.go). Bump
// the matching one whenever either framing changes.
const dirFileVersion = 1

// headerLen is the fixed width, in bytes, of a dir-file's header line.
// It is written space-padded and is always terminated by "$\n" so a
// reader can locate the first entry record without parsing the whole
// header.
const headerLen = 96

// headerTemplate is formatted with: version, headerLen, entryCount,
// maxDirCursor, stringSpace, maxPathLen.
const headerTemplate = "WAA-DIRFILE %d %d %d %d %d %d"

// headerPlaceholder is written first, before the real counts are
// known, so a reader that sees it mid-write recognizes an unfinished
// dir-file.
const headerPlaceholder = "UNFINISHED"

// dirHeader is the parsed form of a dir-file's fixed-width header.
type dirHeader struct {
	Version      int
	HeaderLen    int
	EntryCount   int
	MaxDirCursor int // informational only; see SPEC_FULL.md Open Questions
	StringSpace  int
	MaxPathLen   int
}

func blankHeader() []byte {
	b := make([]byte, headerLen)
	copy(b, headerPlaceholder)
	for i := len(headerPlaceholder); i < headerLen; i++ {
		b[i] = '\n'
	}
	return b
}

func (h *dirHeader) encode() ([]byte, error) {
	line := fmt.Sprintf(headerTemplate, h.Version, h.HeaderLen, h.EntryCount,
		h.MaxDirCursor, h.StringSpace, h.MaxPathLen)
	if len(line) > headerLen-2 {
		return nil, fmt.Errorf("dirfile: header line too long (%d > %d)", len(line), headerLen-2)
	}

	b := make([]byte, headerLen)
	copy(b, line)
	for i := len(line); i < headerLen-2; i++ {
		b[i] = ' '
	}
	b[headerLen-2] = '$'
	b[headerLen-1] = '\n'
	return b, nil
}

func parseHeader(b []byte) (*dirHeader, error) {
	if len(b) < headerLen {
		return nil, fmt.Errorf("dirfile: header: %w", ErrDamaged)
	}
	if b[headerLen-1] != '\n' || b[headerLen-2] != '$' {
		return nil, fmt.Errorf("dirfile: bad header terminator: %w", ErrDamaged)
	}

	line := strings.TrimRight(string(b[:headerLen-2]), " ")
	h := new(dirHeader)
	n, err := fmt.Sscanf(line, headerTemplate,
		&h.Version, &h.HeaderLen, &h.EntryCount, &h.MaxDirCursor, &h.StringSpace, &h.MaxPathLen)
	if err != nil || n != 6 {
		return nil, fmt.Errorf("dirfile: malformed header %q: %w", line, ErrDamaged)
	}
	if h.Version != dirFileVersion {
		return nil, fmt.Errorf("dirfile: unsupported version %d: %w", h.Version, ErrDamaged)
	}
	if h.HeaderLen != headerLen {
		return nil, fmt.Errorf("dirfile: header length mismatch %d: %w", h.HeaderLen, ErrDamaged)
	}
	return h, nil
}

// dirFileName is the fan-out-relative filename a Store uses for the
// serialized dir-file itself, as opposed to any other per-path
// extension a future caller might store alongside it.
const dirFileName = "dir"

// recordSep terminates each entry record; the NUL keeps the preceding
// name field unambiguous even though names may contain arbitrary bytes
// other than NUL and '/'.
const recordSep = "\x00\n"
