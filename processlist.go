package xquery

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
	"gopkg.in/src-d/go-errors.v1"

	"gopkg.in/src-d/go-xquery.v0/query"
)

var (
	// ErrQueryAlreadyRunning is returned when a query is added twice to the
	// process list.
	ErrQueryAlreadyRunning = errors.NewKind("query %s is already running")

	// ErrLockConflict is returned when the locks of a query conflict with
	// the ones of a running query.
	ErrLockConflict = errors.NewKind("query %s conflicts with running query %s (%s)")
)

// Process is a running query.
type Process struct {
	ID        uuid.UUID
	Locks     *query.LockResult
	StartedAt time.Time
	Kill      context.CancelFunc
}

// Done cancels the context of the process.
func (p *Process) Done() {
	if p.Kill != nil {
		p.Kill()
	}
}

// Seconds returns the number of seconds the process has been running.
func (p *Process) Seconds() int64 {
	return int64(time.Since(p.StartedAt) / time.Second)
}

// ProcessList is a structure that keeps track of all the running queries and
// the resources they lock.
type ProcessList struct {
	mu    sync.RWMutex
	procs map[uuid.UUID]*Process
}

// NewProcessList creates a new process list.
func NewProcessList() *ProcessList {
	return &ProcessList{
		procs: make(map[uuid.UUID]*Process),
	}
}

// Processes returns the running processes, oldest first.
func (pl *ProcessList) Processes() []Process {
	pl.mu.RLock()
	defer pl.mu.RUnlock()

	result := make([]Process, 0, len(pl.procs))
	for _, proc := range pl.procs {
		result = append(result, *proc)
	}
	slices.SortFunc(result, func(a, b Process) bool {
		return a.StartedAt.Before(b.StartedAt)
	})
	return result
}

// Conflicts returns the ids of the running processes whose locks are not
// compatible with the given ones.
func (pl *ProcessList) Conflicts(locks *query.LockResult) []uuid.UUID {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	return pl.conflicts(locks)
}

func (pl *ProcessList) conflicts(locks *query.LockResult) []uuid.UUID {
	var ids []uuid.UUID
	for id, proc := range pl.procs {
		if !locks.Compatible(proc.Locks) {
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) bool {
		return a.String() < b.String()
	})
	return ids
}

// AddProcess adds the query of the context with the given locks to the list.
// If exclusive is set, it fails if the locks conflict with a running query.
// The returned context is cancelled when the process is done or killed.
func (pl *ProcessList) AddProcess(
	ctx *query.Context,
	locks *query.LockResult,
	exclusive bool,
) (*query.Context, error) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	if _, ok := pl.procs[ctx.ID()]; ok {
		return nil, ErrQueryAlreadyRunning.New(ctx.ID())
	}

	if exclusive {
		if ids := pl.conflicts(locks); len(ids) > 0 {
			return nil, ErrLockConflict.New(ctx.ID(), ids[0], locks)
		}
	}

	newCtx, cancel := context.WithCancel(ctx.Context)
	ctx = ctx.WithContext(newCtx)

	pl.procs[ctx.ID()] = &Process{
		ID:        ctx.ID(),
		Locks:     locks,
		StartedAt: time.Now(),
		Kill:      cancel,
	}

	return ctx, nil
}

// Kill terminates the query with the given id. It reports whether the query
// was running.
func (pl *ProcessList) Kill(id uuid.UUID) bool {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	proc, ok := pl.procs[id]
	if !ok {
		return false
	}
	logrus.Infof("kill query: %s", id)
	proc.Done()
	delete(pl.procs, id)
	return true
}

// Done removes the finished process with the given id from the process list.
// If the process does not exist, it will do nothing.
func (pl *ProcessList) Done(id uuid.UUID) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	if proc, ok := pl.procs[id]; ok {
		proc.Done()
	}

	delete(pl.procs, id)
}

// trackedIter notifies when the wrapped iterator is exhausted, fails or is
// closed. It stops with the context error once the query is killed.
type trackedIter struct {
	query.Iter
	ctx    context.Context
	notify func()
}

func (i *trackedIter) done() {
	if i.notify != nil {
		i.notify()
		i.notify = nil
	}
}

func (i *trackedIter) Next() (query.Item, error) {
	if i.ctx != nil {
		select {
		case <-i.ctx.Done():
			i.done()
			return nil, i.ctx.Err()
		default:
		}
	}
	it, err := i.Iter.Next()
	if err != nil || it == nil {
		i.done()
	}
	return it, err
}

func (i *trackedIter) Close() error {
	i.done()
	return i.Iter.Close()
}
