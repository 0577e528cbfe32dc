// action.go - the action-registry contract the core dispatches into
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

// Action describes an external operation (status, commit, diff, ...)
// that the WAA core dispatches entries to during a tree walk. The
// core never hard-codes what an action does — it only reads these
// fields and calls Callback per entry. Grounded on spec §6.4's action
// contract; the C original's `names[]`/`help_text`/`i_val` registry
// metadata is omitted here since command-line registration is a CLI
// concern (cmd/waactl), not something the core consumes.
type Action struct {
	// Callback is invoked once per dispatched entry during a tree walk
	// (UpdateTree, UpdateTreeArgs, InitialScan, ConcurrentInitialScan).
	// A nil Callback makes the action a no-op walk.
	Callback func(e *Entry) error

	// Finish is an end-of-run hook carried alongside the action; none
	// of this package's walks calls it.
	Finish func() error

	// IsImportExport marks an import/export action (spec §6.1), one
	// that may be creating the administrative area for the first time.
	// No function in this package reads it, and none of them checks
	// beforehand that a WAA root exists.
	IsImportExport bool

	// IsCompare marks an action that only reads entries (status, diff)
	// and never mutates the tree it walks.
	IsCompare bool

	// KeepChildren suppresses dropping a replaced directory's child
	// arrays (spec §4.7 step 6): some actions (eg. a restore) need the
	// previously known children to still be reachable even though the
	// directory itself changed shape. A deleted directory keeps its
	// child arrays whether or not KeepChildren is set.
	KeepChildren bool
}

// Dispatch invokes a.Callback on e if a and its callback are non-nil;
// it is the single call site UpdateTree, UpdateTreeArgs, InitialScan
// and ConcurrentInitialScan use (DoSortedTree takes a plain handler
// instead), so an Action with no callback is safely usable as a
// dry-run walk.
func (a *Action) Dispatch(e *Entry) error {
	if a == nil || a.Callback == nil {
		return nil
	}
	return a.Callback(e)
}
