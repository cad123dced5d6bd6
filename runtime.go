package coop

import (
	"errors"
	"os"
)

// ErrCapacityExceeded is returned by Spawn when every non-base slot is
// occupied. No existing task is affected by a rejected Spawn.
var ErrCapacityExceeded = errors.New("coop: task slot capacity exceeded")

// slot is one entry of the runtime's task table. Its index is its
// identity and never changes. The execution context is opaque to the
// scheduler; only the context layer interprets it.
type slot struct {
	id    int
	state State
	entry func(*Task)
	task  *Task
	ctx   executionContext
}

// Runtime multiplexes tasks onto the single flow of control that drives
// it. The slot table is allocated once at construction and never grows;
// slot 0 is the base context, representing the caller of Run, and never
// holds a spawned task.
//
// A Runtime and the Task handles it hands out must be used from the flow
// of control they belong to. Exactly one slot executes at any instant, so
// runtime-internal state needs no locking.
type Runtime struct {
	slots   []slot
	current int
}

// New constructs a runtime with the given slot capacity, including the
// base slot. A runtime of capacity n can run up to n-1 tasks at once.
// New panics if capacity is not positive.
func New(capacity int) *Runtime {
	if capacity <= 0 {
		panic("coop.New: capacity must be positive")
	}
	r := &Runtime{slots: make([]slot, capacity)}
	for i := range r.slots {
		r.slots[i].id = i
	}
	r.slots[0].state = StateRunning
	initRuntime(r)
	return r
}

// Spawn installs entry into the first available slot and marks it ready
// to run. The entry does not start executing until the scheduler selects
// its slot. Spawn returns ErrCapacityExceeded when no slot is free.
func (r *Runtime) Spawn(entry func(*Task)) error {
	for i := range r.slots {
		s := &r.slots[i]
		if s.state != StateAvailable {
			continue
		}
		// Rebuild the context from zero so a reused slot starts with no
		// residual state from its previous occupant.
		s.ctx = executionContext{}
		s.entry = entry
		s.task = &Task{runtime: r, slot: s}
		bootstrap(r, s)
		s.state = StateReady
		return nil
	}
	return ErrCapacityExceeded
}

// Run drives the scheduler until no runnable work remains, then
// terminates the process with a success status. It never returns: the
// runtime owns process lifetime once started.
func (r *Runtime) Run() {
	for r.schedule() {
	}
	os.Exit(0)
}

// schedule performs one scheduling step: it scans forward from the slot
// after the current one, wrapping around, for the first Ready slot. If
// none exists it reports false without switching. Otherwise it demotes an
// unfinished current slot to Ready, promotes the chosen slot to Running,
// and transfers control to it. The call reports true when some later step
// resumes this slot.
func (r *Runtime) schedule() bool {
	capacity := len(r.slots)
	next := -1
	for i := 1; i < capacity; i++ {
		if id := (r.current + i) % capacity; r.slots[id].state == StateReady {
			next = id
			break
		}
	}
	if next < 0 {
		return false
	}

	prev := &r.slots[r.current]
	if prev.state != StateAvailable {
		prev.state = StateReady
	}
	r.slots[next].state = StateRunning
	r.current = next

	switchContext(&prev.ctx, &r.slots[next].ctx)
	return true
}

// returnFromTask retires the slot whose entry just returned. It is called
// only by the guard trampoline, the fixed landing point a task reaches
// when its entry function returns normally. The base slot never runs an
// entry, so retiring it is a no-op.
func (r *Runtime) returnFromTask() {
	s := &r.slots[r.current]
	if s.id == 0 {
		return
	}
	s.state = StateAvailable
	s.entry = nil
	s.task = nil
	retireContext(&s.ctx)
	r.schedule()
}
