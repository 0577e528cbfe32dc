package waa

import "testing"

func TestNameGlobIgnore(t *testing.T) {
	assert := newAsserter(t)

	ig := NameGlobIgnore{"*.tmp", "core"}

	assert(ig.Ignore(&Entry{name: "scratch.tmp"}, ""), "*.tmp should match scratch.tmp")
	assert(ig.Ignore(&Entry{name: "core"}, ""), "exact pattern should match core")
	assert(!ig.Ignore(&Entry{name: "keep.txt"}, ""), "keep.txt should not be ignored")
}

func TestIgnoreFuncAdapts(t *testing.T) {
	assert := newAsserter(t)

	var calledWith string
	var ig Ignore = IgnoreFunc(func(e *Entry, path string) bool {
		calledWith = path
		return e.name == "skip"
	})

	assert(ig.Ignore(&Entry{name: "skip"}, "/a/skip"), "IgnoreFunc should delegate to the wrapped function")
	assert(calledWith == "/a/skip", "IgnoreFunc should pass path through: got %q", calledWith)
	assert(!ig.Ignore(&Entry{name: "other"}, "/a/other"), "non-matching entry should not be ignored")
}

func TestSessionIgnoredHandlesNilIgnore(t *testing.T) {
	assert := newAsserter(t)

	sess := &Session{}
	assert(!sess.ignored(&Entry{name: "anything"}, "/a"), "nil Ignore should never ignore")
}
