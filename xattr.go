// xattr.go - extended attribute capture for tracked entries
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

	"github.com/pkg/xattr"
)

// Xattr is the set of extended attributes captured for one entry at
// enumeration time. A change confined to Xattr (nothing else differing)
// marks the owning Entry MetaChanged rather than Changed; see
// SPEC_FULL.md §3.1.
type Xattr map[string]string

// String renders the attribute set as "key=value" lines.
func (x Xattr) String() string {
	var s strings.Builder
	for k, v := range x {
		fmt.Fprintf(&s, "%s=%s\n", k, v)
	}
	return s.String()
}

// Equal reports whether x and y hold the same set of keys and values.
func (x Xattr) Equal(y Xattr) bool {
	if len(x) != len(y) {
		return false
	}
	for k, a := range x {
		if b, ok := y[k]; !ok || a != b {
			return false
		}
	}
	return true
}

// readXattr captures the extended attributes of nm, following symlinks.
func readXattr(nm string) (Xattr, error) {
	return listAndGet(nm, xattr.List, xattr.Get)
}

// readXattrLink captures the extended attributes of nm without
// following a trailing symlink.
func readXattrLink(nm string) (Xattr, error) {
	return listAndGet(nm, xattr.LList, xattr.LGet)
}

// writeXattr replaces the on-disk xattr set of nm with x.
func writeXattr(nm string, x Xattr) error {
	if err := clearAttrs(nm, xattr.List, xattr.Remove); err != nil {
		return err
	}
	for k, v := range x {
		if err := xattr.Set(nm, k, []byte(v)); err != nil {
			return err
		}
	}
	return nil
}

func listAndGet(nm string, list func(string) ([]string, error), get func(string, string) ([]byte, error)) (Xattr, error) {
	keys, err := list(nm)
	if err != nil {
		return nil, err
	}

	x := make(Xattr, len(keys))
	for _, k := range keys {
		v, err := get(nm, k)
		if err != nil {
			return nil, err
		}
		x[k] = string(v)
	}
	return x, nil
}

func clearAttrs(nm string, list func(string) ([]string, error), del func(string, string) error) error {
	keys, err := list(nm)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := del(nm, k); err != nil {
			return err
		}
	}
	return nil
}
