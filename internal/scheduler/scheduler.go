// Package scheduler implements the dependency-ordered build scheduler
// (spec §4.3): a single driver goroutine drives a BuildSummary to
// completion on a fixed pool of P worker goroutines, bounding concurrency
// and fan-in through one completion channel, failing fast on the first
// compile error.
package scheduler

import (
	"context"
	"runtime"
	"time"

	elmmake "github.com/abadi199/elm-make"
	"github.com/abadi199/elm-make/internal/analyzer"
	"github.com/abadi199/elm-make/internal/project"
	"github.com/abadi199/elm-make/internal/queue"
	"github.com/abadi199/elm-make/internal/timeline"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// CompileResult is what a successful compile produces: the interface
// downstream modules compile against, and the raw object bytes to
// persist alongside it.
type CompileResult struct {
	Interface elmmake.Interface
	Object    []byte
}

// CompileFunc is the compiler collaborator's signature (spec §6): given a
// module, its source location, and the already-built interfaces of its
// ready dependencies, produce a compiled result or a CompileError.
type CompileFunc func(ctx context.Context, id elmmake.ModuleID, loc elmmake.Location, ready map[elmmake.ModuleID]elmmake.Interface) (CompileResult, error)

// CompileError wraps a worker's compile failure with the module it was
// trying to build.
type CompileError struct {
	Module elmmake.ModuleID
	Path   string
	Cause  error
}

func (e *CompileError) Error() string {
	return xerrors.Errorf("%s (%s): %w", e.Module, e.Path, e.Cause).Error()
}

func (e *CompileError) Unwrap() error { return e.Cause }

// Options configures one call to Run.
type Options struct {
	// Workers is P, the worker pool size. Zero or negative defaults to
	// runtime.NumCPU().
	Workers int
	// Store persists each successfully compiled module's artifacts. May
	// be nil, in which case results are kept only in memory (useful for
	// tests and dry runs).
	Store analyzer.ArtifactStore
	// Timeline, if non-nil, receives one Observe call per dispatched job
	// plus a wrapping "build" phase covering the whole run.
	Timeline *timeline.Recorder
	// OnProgress, if non-nil, is called by the driver after every
	// completion (success or failure) with the number of modules
	// finished so far and the total in this build. Called from the
	// driver goroutine only.
	OnProgress func(done, total int)
}

type job struct {
	id    elmmake.ModuleID
	data  project.BuildData
	ready map[elmmake.ModuleID]elmmake.Interface
}

type completion struct {
	id        elmmake.ModuleID
	iface     elmmake.Interface
	object    []byte
	err       error
	start     time.Time
	end       time.Time
}

// Run drives build to completion, returning every module's interface
// (both reused-from-cache entries seeded via build's Ready maps, and
// freshly compiled ones) or the first error encountered.
func Run(ctx context.Context, build project.BuildSummary, compile CompileFunc, opts Options) (map[elmmake.ModuleID]elmmake.Interface, error) {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	s := &scheduler{
		opts:      opts,
		compile:   compile,
		blocked:   make(map[elmmake.ModuleID]project.BuildData, len(build)),
		ready:     queue.New[elmmake.ModuleID](),
		completed: make(map[elmmake.ModuleID]elmmake.Interface, len(build)),
		total:     len(build),
		jobs:      make(chan job),
		results:   make(chan completion, len(build)),
	}

	// Initialisation: partition the summary and pre-populate completed
	// with the already-valid interfaces discovered during analysis.
	var initial []elmmake.ModuleID
	for id, data := range build {
		for dep, iface := range data.Ready {
			s.completed[dep] = iface
		}
		s.blocked[id] = data
		if len(data.Blocking) == 0 {
			initial = append(initial, id)
		}
	}
	s.ready.Enqueue(initial)

	if s.opts.Timeline != nil {
		var result map[elmmake.ModuleID]elmmake.Interface
		err := s.opts.Timeline.Phase("build", func() error {
			var runErr error
			result, runErr = s.run(ctx)
			return runErr
		})
		return result, err
	}
	return s.run(ctx)
}

type scheduler struct {
	opts    Options
	compile CompileFunc

	blocked map[elmmake.ModuleID]project.BuildData
	ready   *queue.Queue[elmmake.ModuleID]

	jobsInFlight int
	completed    map[elmmake.ModuleID]elmmake.Interface
	firstError   error
	total        int
	done         int

	jobs    chan job
	results chan completion
}

// run launches the worker pool and drives it to completion.
func (s *scheduler) run(ctx context.Context) (map[elmmake.ModuleID]elmmake.Interface, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < s.opts.Workers; i++ {
		eg.Go(func() error { return s.worker(ctx) })
	}

	draining := false
	for s.ready.Size() > 0 || len(s.blocked) > 0 || s.jobsInFlight > 0 {
		// Step 1: dispatch as many ready jobs as the pool allows.
		for !draining && s.jobsInFlight < s.opts.Workers && s.ready.Size() > 0 {
			ids := s.ready.Dequeue(1)
			id := ids[0]
			data := s.blocked[id]
			delete(s.blocked, id)

			snapshot := make(map[elmmake.ModuleID]elmmake.Interface, len(data.Ready))
			for dep, iface := range data.Ready {
				snapshot[dep] = iface
			}
			s.jobsInFlight++
			select {
			case s.jobs <- job{id: id, data: data, ready: snapshot}:
			case <-ctx.Done():
				close(s.jobs)
				eg.Wait()
				return nil, ctx.Err()
			}
		}

		if s.jobsInFlight == 0 && (draining || s.ready.Size() == 0) {
			// Either nothing left to dispatch, or we're draining and no
			// worker remains that could ever send a completion: stop
			// waiting on s.results before it blocks forever.
			break
		}

		// Step 2: wait for one completion.
		c := <-s.results
		s.jobsInFlight--
		s.done++
		if s.opts.OnProgress != nil {
			s.opts.OnProgress(s.done, s.total)
		}

		if s.opts.Timeline != nil {
			s.opts.Timeline.Observe("compile "+c.id.String(), c.start, c.end)
		}

		if c.err != nil {
			// Step 4: sticky first error, stop dispatching, keep draining.
			// Outstanding jobs already handed to workers are left to run
			// to completion; compile is trusted to terminate on its own.
			if s.firstError == nil {
				s.firstError = c.err
				draining = true
			}
			continue
		}

		// Step 3: publish the interface and promote newly-unblocked
		// dependents.
		s.completed[c.id] = c.iface
		if s.opts.Store != nil {
			if err := s.opts.Store.Persist(c.id, c.iface, c.object); err != nil && s.firstError == nil {
				s.firstError = err
				draining = true
			}
		}

		var unblocked []elmmake.ModuleID
		for dependent, data := range s.blocked {
			idx := indexOf(data.Blocking, c.id)
			if idx < 0 {
				continue
			}
			data.Blocking = removeAt(data.Blocking, idx)
			if data.Ready == nil {
				data.Ready = make(map[elmmake.ModuleID]elmmake.Interface, 1)
			}
			data.Ready[c.id] = c.iface
			s.blocked[dependent] = data
			if len(data.Blocking) == 0 {
				unblocked = append(unblocked, dependent)
			}
		}
		s.ready.Enqueue(unblocked)
	}

	close(s.jobs)
	if err := eg.Wait(); err != nil && s.firstError == nil {
		s.firstError = err
	}

	if s.firstError != nil {
		return nil, s.firstError
	}
	return s.completed, nil
}

// worker repeatedly compiles dispatched jobs until the driver closes the
// jobs channel. It never reads scheduler state other than what the
// driver hands it in each job.
func (s *scheduler) worker(ctx context.Context) error {
	for j := range s.jobs {
		start := time.Now()
		var c completion
		c.id = j.id
		c.start = start

		result, err := s.compile(ctx, j.id, j.data.Location, j.ready)
		c.end = time.Now()
		if err != nil {
			c.err = &CompileError{Module: j.id, Path: j.data.Location.Path, Cause: err}
		} else {
			c.iface = result.Interface
			c.object = result.Object
		}
		s.results <- c
	}
	return nil
}

func indexOf(ids []elmmake.ModuleID, target elmmake.ModuleID) int {
	for i, id := range ids {
		if id == target {
			return i
		}
	}
	return -1
}

func removeAt(ids []elmmake.ModuleID, idx int) []elmmake.ModuleID {
	out := make([]elmmake.ModuleID, 0, len(ids)-1)
	out = append(out, ids[:idx]...)
	out = append(out, ids[idx+1:]...)
	return out
}
