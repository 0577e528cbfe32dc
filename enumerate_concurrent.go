// enumerate_concurrent.go - concurrent filesystem enumeration
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
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// EnumOptions controls a ConcurrentEnumerator's traversal.
type EnumOptions struct {
	// Concurrency is the number of worker goroutines; 0 means use
	// runtime.NumCPU().
	Concurrency int

	// FollowSymlinks, when set, resolves symlinks and enumerates
	// their targets instead of recording the link itself.
	FollowSymlinks bool

	// OneFS, when set, does not descend into directories that live on
	// a different device than the roots passed to Enumerate.
	OneFS bool

	// Excludes is a list of shell-glob patterns matched against the
	// basename of each candidate entry; matches are skipped entirely.
	Excludes []string

	// Filter is an optional caller hook; returning true drops the
	// entry (and, for a directory, everything beneath it).
	Filter func(e *Entry) bool

	// Session, if set, suppresses the WAA's own storage directory
	// (Session.WaaRoot/ConfRoot) wherever it is encountered, so a
	// working copy never ends up versioning its own admin area
	// (spec §4.3).
	Session *Session
}

// ConcurrentEnumerator discovers the entries of one or more directory
// subtrees in parallel. It exists purely to populate an EntryMap ahead
// of linking a fresh subtree into the entry tree (the initial scan of
// a brand-new working copy, via ConcurrentInitialScan; UpdateTree fills
// in newly appeared subtrees with the single-threaded buildTree
// instead); the merge kernel itself
// (C7) always runs its own comparisons single-threaded against an
// already-loaded tree.
type ConcurrentEnumerator struct {
	EnumOptions

	work    chan string
	errs    chan error
	dirWait sync.WaitGroup
	workers sync.WaitGroup

	apply func(e *Entry)

	seenFS  sync.Map
	seenIno sync.Map
}

// NewConcurrentEnumerator builds an enumerator from opt (nil for
// defaults).
func NewConcurrentEnumerator(opt *EnumOptions) *ConcurrentEnumerator {
	if opt == nil {
		opt = &EnumOptions{}
	}
	if opt.Concurrency <= 0 {
		opt.Concurrency = runtime.NumCPU()
	}
	return &ConcurrentEnumerator{
		EnumOptions: *opt,
		work:        make(chan string, opt.Concurrency),
		errs:        make(chan error, opt.Concurrency),
	}
}

// Enumerate walks roots concurrently and streams discovered entries on
// the returned channel; errors (eg. a permission-denied subdirectory)
// are streamed on the second channel. Both channels close once the
// walk is complete.
func (c *ConcurrentEnumerator) Enumerate(roots []string) (<-chan *Entry, <-chan error) {
	out := make(chan *Entry, c.Concurrency)
	c.apply = func(e *Entry) { out <- e }

	c.start(roots)

	go func() {
		c.dirWait.Wait()
		close(c.work)
		close(out)
		close(c.errs)
		c.workers.Wait()
	}()

	return out, c.errs
}

// EnumerateFunc is like Enumerate but calls apply for each discovered
// entry instead of using a channel; apply must be concurrency-safe. It
// blocks until the walk completes and returns a joined error if any
// occurred.
func (c *ConcurrentEnumerator) EnumerateFunc(roots []string, apply func(e *Entry) error) error {
	var errMu sync.Mutex
	var errs []error

	c.apply = func(e *Entry) {
		if err := apply(e); err != nil {
			errMu.Lock()
			errs = append(errs, err)
			errMu.Unlock()
		}
	}

	var collectWg sync.WaitGroup
	collectWg.Add(1)
	go func() {
		for err := range c.errs {
			errMu.Lock()
			errs = append(errs, err)
			errMu.Unlock()
		}
		collectWg.Done()
	}()

	c.start(roots)
	c.dirWait.Wait()
	close(c.work)
	close(c.errs)
	c.workers.Wait()
	collectWg.Wait()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (c *ConcurrentEnumerator) start(roots []string) {
	if c.Filter == nil {
		c.Filter = func(*Entry) bool { return false }
	}

	c.workers.Add(c.Concurrency)
	for i := 0; i < c.Concurrency; i++ {
		go c.worker()
	}

	var dirs []string
	for _, raw := range roots {
		nm := strings.TrimSuffix(raw, "/")
		if nm == "" {
			nm = "/"
		}
		if c.matchExclude(nm) {
			continue
		}

		e := new(Entry)
		if err := lstatEntry(nm, e); err != nil {
			c.reportf("lstat %s: %w", nm, err)
			continue
		}
		e.name = nm

		if c.alreadySeen(e) {
			continue
		}
		if c.Session.isAdminArea(e) {
			continue
		}
		if c.Filter(e) {
			continue
		}

		switch {
		case e.Type == TypeDirectory:
			if c.OneFS {
				c.trackDevice(e)
			}
			dirs = append(dirs, nm)
		case e.Type == TypeSymlink:
			dirs = c.followSymlink(e, dirs)
		default:
			c.apply(e)
		}
	}
	c.enqueue(dirs)
}

func (c *ConcurrentEnumerator) worker() {
	for nm := range c.work {
		e := new(Entry)
		if err := lstatEntry(nm, e); err != nil {
			c.reportf("lstat %s: %w", nm, err)
			c.dirWait.Done()
			continue
		}
		e.name = nm
		c.apply(e)
		c.walkDir(nm)
		c.dirWait.Done()
	}
	c.workers.Done()
}

func (c *ConcurrentEnumerator) walkDir(dir string) {
	names, err := readDirNames(dir)
	if err != nil {
		c.reportf("%w", err)
		return
	}

	base := dir
	if base == "/" {
		base = ""
	}

	var dirs []string
	for _, nm := range names {
		fp := fmt.Sprintf("%s/%s", base, nm)

		if c.matchExclude(fp) {
			continue
		}

		e := new(Entry)
		if err := lstatEntry(fp, e); err != nil {
			c.reportf("stat %s: %w", fp, err)
			continue
		}
		e.name = fp

		if c.alreadySeen(e) {
			continue
		}
		if c.Session.isAdminArea(e) {
			continue
		}
		if c.Filter(e) {
			continue
		}

		switch {
		case e.Type == TypeDirectory:
			if !c.OneFS || c.onSeenDevice(e) {
				dirs = append(dirs, fp)
			}
		case e.Type == TypeSymlink:
			dirs = c.followSymlink(e, dirs)
		default:
			c.apply(e)
		}
	}
	c.enqueue(dirs)
}

func (c *ConcurrentEnumerator) followSymlink(e *Entry, dirs []string) []string {
	if !c.FollowSymlinks {
		c.apply(e)
		return dirs
	}

	target, err := filepath.EvalSymlinks(e.name)
	if err != nil {
		c.reportf("symlink %s: %w", e.name, err)
		return dirs
	}

	ne := new(Entry)
	if err := statEntry(target, ne); err != nil {
		c.reportf("symlink stat %s: %w", target, err)
		return dirs
	}
	ne.name = target

	if c.alreadySeen(ne) || c.Session.isAdminArea(ne) {
		return dirs
	}

	if ne.Type == TypeDirectory {
		if !c.OneFS || c.onSeenDevice(ne) {
			dirs = append(dirs, target)
		}
	} else {
		c.apply(ne)
	}
	return dirs
}

func (c *ConcurrentEnumerator) enqueue(dirs []string) {
	if len(dirs) == 0 {
		return
	}
	c.dirWait.Add(len(dirs))
	go func(dirs []string) {
		for _, d := range dirs {
			c.work <- d
		}
	}(dirs)
}

func (c *ConcurrentEnumerator) matchExclude(nm string) bool {
	if len(c.Excludes) == 0 {
		return false
	}
	bn := path.Base(nm)
	for _, pat := range c.Excludes {
		if ok, err := path.Match(pat, bn); err != nil {
			c.errs <- fmt.Errorf("glob %q: %w", pat, err)
		} else if ok {
			return true
		}
	}
	return false
}

func (c *ConcurrentEnumerator) alreadySeen(e *Entry) bool {
	key := fmt.Sprintf("%d:%d:%d", e.Dev, e.Rdev, e.Ino)
	v, loaded := c.seenIno.LoadOrStore(key, e)
	if !loaded {
		return false
	}
	prev := v.(*Entry)
	return prev.Dev == e.Dev && prev.Rdev == e.Rdev && prev.Ino == e.Ino
}

func (c *ConcurrentEnumerator) trackDevice(e *Entry) {
	c.seenFS.Store(fmt.Sprintf("%d:%d", e.Dev, e.Rdev), true)
}

func (c *ConcurrentEnumerator) onSeenDevice(e *Entry) bool {
	_, ok := c.seenFS.Load(fmt.Sprintf("%d:%d", e.Dev, e.Rdev))
	return ok
}

func (c *ConcurrentEnumerator) reportf(format string, args ...any) {
	c.errs <- fmt.Errorf(format, args...)
}

func readDirNames(dir string) ([]string, error) {
	fd, err := os.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("readdir: %s: %w", dir, err)
	}
	defer fd.Close()

	names, err := fd.Readdirnames(-1)
	if err != nil {
		return nil, fmt.Errorf("readdir: %s: %w", dir, err)
	}
	return names, nil
}
