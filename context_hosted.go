//go:build !rawstack

package coop

// This file implements the context layer for ordinary Go programs. A
// suspended task is a goroutine parked on an unbuffered handoff channel;
// transferring control is a send to the new context followed by a receive
// on the old one. The goroutine's own stack plays the role of the slot's
// stack buffer, which keeps the pinning invariant without any unsafe
// code: the Go runtime guarantees a goroutine stack stays valid for as
// long as the goroutine lives.

// executionContext is a suspended point of execution. The scheduler
// treats it as opaque data; only the functions in this file interpret it.
type executionContext struct {
	// resume is the handoff channel the context's goroutine parks on
	// between the moments it is scheduled.
	resume chan struct{}

	// done is set when the context belongs to a task whose entry has
	// returned. A done context is switched away from exactly once more
	// and never parked again.
	done bool
}

// initRuntime prepares the base slot's context so that the flow of
// control driving the runtime can itself be suspended and resumed like
// any task.
func initRuntime(r *Runtime) {
	r.slots[0].ctx.resume = make(chan struct{})
}

// bootstrap arms a freshly spawned slot: it starts the slot's goroutine
// parked on a new handoff channel. The goroutine does not touch the entry
// until the scheduler first switches to it.
//
// The epilogue after entry returns is the guard trampoline: the fixed
// landing point that retires the slot and hands control back to the
// scheduler instead of letting the goroutine fall off the end while it
// still owns the flow of control.
func bootstrap(r *Runtime, s *slot) {
	resume := make(chan struct{})
	s.ctx.resume = resume
	entry, task := s.entry, s.task

	go func() {
		<-resume
		entry(task)
		r.returnFromTask()
	}()
}

// switchContext transfers control from old to new. The call does not
// return to its caller right away: it returns when a later invocation,
// naming old as its new, resumes this context. When old is done the
// handoff is one-way and switchContext returns immediately so the
// finished goroutine can exit.
func switchContext(old, new *executionContext) {
	if old.done {
		new.resume <- struct{}{}
		return
	}
	new.resume <- struct{}{}
	<-old.resume
}

// retireContext marks a finished task's context so the next switch away
// from it releases its goroutine.
func retireContext(c *executionContext) {
	c.done = true
}
