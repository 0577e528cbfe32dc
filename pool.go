// pool.go - a generic fixed-size worker pool
//
// A general-purpose pool for fanning work out across goroutines without
// each caller re-deriving the submit/close/harvest dance. Neither
// ConcurrentEnumerator (which runs its own worker goroutines) nor the
// CLI uses it. A typical use:
//
//	p := NewPool[job](0, func(worker int, j job) error {
//		... process j ...
//		return nil
//	})
//	go func() {
//		for _, j := range jobs {
//			p.Dispatch(j)
//		}
//		p.Shut()
//	}()
//	err := p.Join()
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
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool runs a fixed number of goroutines, each pulling work items of
// type Job off a shared channel and invoking a caller-supplied handler.
type Pool[Job any] struct {
	shut atomic.Bool
	in   chan Job
	errc chan error

	workers sync.WaitGroup
	harvest sync.WaitGroup
	mu      sync.Mutex
	errs    []error
}

// ErrPoolShut is returned by Dispatch once Shut has been called.
var ErrPoolShut = errors.New("pool: already shut")

// NewPool starts n worker goroutines (n<=0 means runtime.NumCPU())
// that each call handler for every job submitted via Dispatch.
func NewPool[Job any](n int, handler func(worker int, j Job) error) *Pool[Job] {
	if n <= 0 {
		n = runtime.NumCPU()
	}

	p := &Pool[Job]{
		in:   make(chan Job, n),
		errc: make(chan error, n),
	}

	p.workers.Add(n)
	for i := 0; i < n; i++ {
		go p.runWorker(i, handler)
	}

	p.harvest.Add(1)
	go func() {
		for err := range p.errc {
			p.mu.Lock()
			p.errs = append(p.errs, err)
			p.mu.Unlock()
		}
		p.harvest.Done()
	}()

	return p
}

func (p *Pool[Job]) runWorker(id int, handler func(int, Job) error) {
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok {
				p.errc <- fmt.Errorf("pool: worker %d panic: %w", id, err)
			} else {
				p.errc <- fmt.Errorf("pool: worker %d panic: %v", id, r)
			}
		}
		p.workers.Done()
	}()

	for j := range p.in {
		if err := handler(id, j); err != nil {
			p.errc <- err
		}
	}
}

// Dispatch submits one job. It panics if called after Shut.
func (p *Pool[Job]) Dispatch(j Job) {
	if p.shut.Load() {
		panic(ErrPoolShut)
	}
	p.in <- j
}

// Shut signals that no more jobs are coming. It is an error to call
// this twice.
func (p *Pool[Job]) Shut() {
	if p.shut.Swap(true) {
		panic("pool: shut twice")
	}
	close(p.in)
}

// Join waits for all outstanding jobs to finish and returns the
// combined error from every failed job (nil if none failed). Shut must
// be called before Join.
func (p *Pool[Job]) Join() error {
	p.workers.Wait()
	close(p.errc)
	p.harvest.Wait()

	if len(p.errs) > 0 {
		return errors.Join(p.errs...)
	}
	return nil
}

// Fail lets an asynchronous caller record an error directly, eg. when
// a job spawns its own sub-goroutines.
func (p *Pool[Job]) Fail(err error) {
	if !p.shut.Load() {
		p.errc <- err
	}
}
