// Package scheduler drives the deferred compilation graph to a
// fixpoint (spec §4.H): a single-threaded cooperative runner that
// retries suspended tasks until none can make further progress.
// Grounded on spec §4.H's API surface directly (the kept Rust source
// did not retain qvm's scheduler file); the ready-queue is modeled as
// a plain FIFO, the external-type resolver queue as a rank-ordered
// container/heap, in the same "small stdlib-backed data structure
// behind a narrow API" shape the teacher's own worker-pool code
// (query/executor.go's goroutine dispatch) favors over a bespoke one.
package scheduler

import (
	"container/heap"
	"sync"

	"github.com/queryscript/qs"
)

// Task is one unit of suspended compilation work. It reports whether
// it made progress (true) or is still blocked (false); an error
// aborts the whole drive() pass.
type Task func() (progress bool, err error)

// Symbol is one published identifier observation, for collaborators
// like autocomplete/LSP tooling (spec §4.H run_on_symbol) — QueryScript's
// core never reads this back itself, it only accumulates it.
type Symbol struct {
	Name   string
	Kind   string
	Origin qs.Position
}

// ExternalResolver is a candidate source for resolving an external
// type (spec §4.H add_external_type): lower Rank runs first (Load
// resolvers rank below ecosystem fallbacks).
type ExternalResolver struct {
	Rank     int
	Resolve  func() (bool, error) // same (progress, error) contract as Task
	resolved bool
}

type resolverHeap []*ExternalResolver

func (h resolverHeap) Len() int            { return len(h) }
func (h resolverHeap) Less(i, j int) bool  { return h[i].Rank < h[j].Rank }
func (h resolverHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *resolverHeap) Push(x interface{}) { *h = append(*h, x.(*ExternalResolver)) }
func (h *resolverHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]

	return item
}

// Scheduler is the single-threaded cooperative runner described in
// spec §4.H. It is not safe for concurrent use from multiple
// goroutines — compilation within one session is expected to run on
// one goroutine, matching the "single-threaded cooperative" framing.
type Scheduler struct {
	mu            sync.Mutex
	tasks         []Task
	resolvers     resolverHeap
	symbols       []Symbol
	allowInlining bool
	maxPasses     int
}

// New creates a Scheduler. maxPasses bounds drive()'s fixpoint loop
// (0 means unbounded); it exists so a pathological non-terminating
// constraint graph fails fast instead of spinning forever.
func New(maxPasses int) *Scheduler {
	s := &Scheduler{maxPasses: maxPasses}
	heap.Init(&s.resolvers)

	return s
}

// AsyncCRef registers a suspended task. Callers typically pair this
// with creating an Unknown cell up front and having the task resolve
// it once its dependencies are Known; the scheduler only needs to
// know the task made progress, not what it produced.
func (s *Scheduler) AsyncCRef(t Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = append(s.tasks, t)
}

// RunOnSymbol publishes a symbol observation. QueryScript's compiler
// doesn't consume this itself; it exists for downstream tooling.
func (s *Scheduler) RunOnSymbol(name, kind string, origin qs.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.symbols = append(s.symbols, Symbol{Name: name, Kind: kind, Origin: origin})
}

// Symbols returns every symbol published so far, in publication order.
func (s *Scheduler) Symbols() []Symbol {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Symbol(nil), s.symbols...)
}

// AllowInlining reports whether the SQL compiler may inline
// user-expression function bodies.
func (s *Scheduler) AllowInlining() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.allowInlining
}

// SetAllowInlining flips the global inlining bit (spec §4.H).
func (s *Scheduler) SetAllowInlining(allow bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.allowInlining = allow
}

// AddExternalResolver registers a candidate resolver for an external
// type, ordered by rank; Drive runs the lowest-rank unresolved
// resolver first on each pass.
func (s *Scheduler) AddExternalResolver(rank int, resolve func() (bool, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	heap.Push(&s.resolvers, &ExternalResolver{Rank: rank, Resolve: resolve})
}

// Drive advances all pending tasks and external resolvers until a
// full pass makes no progress, per spec §4.H. It returns the first
// task error encountered; compilation errors abort the whole pass
// rather than being retried.
func (s *Scheduler) Drive() error {
	passes := 0

	for {
		passes++
		if s.maxPasses > 0 && passes > s.maxPasses {
			return qs.ErrUnimplemented
		}

		progressed, err := s.drivePass()
		if err != nil {
			return err
		}

		if !progressed {
			return nil
		}
	}
}

func (s *Scheduler) drivePass() (bool, error) {
	anyProgress := false

	s.mu.Lock()
	tasks := s.tasks
	s.tasks = nil
	s.mu.Unlock()

	var stillBlocked []Task

	for _, t := range tasks {
		progress, err := t()
		if err != nil {
			return false, err
		}

		if progress {
			anyProgress = true
		} else {
			stillBlocked = append(stillBlocked, t)
		}
	}

	s.mu.Lock()
	s.tasks = append(stillBlocked, s.tasks...)
	s.mu.Unlock()

	if resolverProgressed, err := s.driveResolvers(); err != nil {
		return false, err
	} else if resolverProgressed {
		anyProgress = true
	}

	return anyProgress, nil
}

func (s *Scheduler) driveResolvers() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resolvers.Len() == 0 {
		return false, nil
	}

	top := s.resolvers[0]
	if top.resolved {
		return false, nil
	}

	progress, err := top.Resolve()
	if err != nil {
		return false, err
	}

	if progress {
		top.resolved = true
		heap.Pop(&s.resolvers)
	}

	return progress, nil
}
