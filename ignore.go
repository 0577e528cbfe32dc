// ignore.go - the ignore-predicate contract
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

import "path"

// Ignore decides whether an entry should be skipped during enumeration
// and update. Implementations are an external collaborator — the WAA
// core only calls this interface, it does not define any ignore-list
// syntax, config file, or pattern language itself.
type Ignore interface {
	// Ignore reports whether e (found at the given path) should be
	// excluded from the tree entirely. For a directory, returning
	// true also skips everything beneath it.
	Ignore(e *Entry, path string) bool
}

// IgnoreFunc adapts a plain function to the Ignore interface.
type IgnoreFunc func(e *Entry, path string) bool

func (f IgnoreFunc) Ignore(e *Entry, path string) bool {
	return f(e, path)
}

// NameGlobIgnore ignores any entry whose basename matches one of the
// given shell-glob patterns, and nothing else. It is the simplest
// useful Ignore implementation and is provided as a convenience, not
// as the policy this package mandates.
type NameGlobIgnore []string

func (patterns NameGlobIgnore) Ignore(e *Entry, _ string) bool {
	for _, pat := range patterns {
		if ok, err := path.Match(pat, e.name); err == nil && ok {
			return true
		}
	}
	return false
}
