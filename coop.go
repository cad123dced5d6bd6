// Package coop implements a minimal cooperative green-thread runtime:
// many lightweight tasks multiplexed onto a single flow of control,
// switching only at explicit yield points.
//
// A Runtime owns a fixed-capacity table of task slots. Spawn installs a
// task body into a free slot, and Run drives a round-robin scheduler until
// no runnable work remains. Tasks suspend themselves by calling Yield on
// the Task handle passed to their body; nothing ever preempts a running
// task.
//
// The package ships two implementations of the context layer selected by
// build tag. The default build parks each task on its own goroutine and
// transfers control through channel handoffs, which works in any ordinary
// Go program. The rawstack build (amd64 only) bootstraps raw stack buffers
// and switches callee-saved registers in assembly; it is meant for
// freestanding environments that run without the full Go runtime.
package coop

// Task is the handle a task body uses to reach the runtime that is
// executing it. A Task is only valid inside the entry function it was
// passed to; keeping it after the entry returns and calling Yield through
// it is a programming error.
type Task struct {
	runtime *Runtime
	slot    *slot
}

// ID returns the index of the slot the task occupies. Slot indexes start
// at 1; slot 0 is the scheduler's base context and never runs a task.
func (t *Task) ID() int { return t.slot.id }

// Yield suspends the task and hands control to the next runnable slot in
// round-robin order. It returns when the scheduler selects this task
// again.
//
// The method panics when called through a stale handle, that is a handle
// whose task already returned or whose slot has been reused by a later
// Spawn.
func (t *Task) Yield() {
	if t.slot.task != t || t.slot.state != StateRunning {
		panic("coop.Yield: task is not running")
	}
	t.runtime.schedule()
}
