//go:build rawstack && amd64

package coop

import "unsafe"

// This file implements the context layer on raw stacks: each slot owns a
// fixed-size contiguous buffer, and control moves by saving and restoring
// the stack pointer and callee-saved registers in assembly. It targets
// freestanding environments that schedule without the full Go runtime; in
// a hosted process the trampolines would run without a valid goroutine
// and must not be reached.

// stackSize is the size of each slot's stack buffer. Stacks are fixed;
// they never grow.
const stackSize = 32 * 1024

// stackCanary is written at the lowest word of every bootstrapped stack
// and checked at each scheduling step. A task that grows past the bottom
// of its buffer tramples it.
const stackCanary uintptr = 0x57acca4a57acca4a

// executionContext is a suspended point of execution: the stack pointer
// plus every register the System V calling convention requires a routine
// to preserve across calls. The field order and sizes are a contract with
// switch_rawstack_amd64.s, which addresses them by byte offset; they must
// never be reordered.
type executionContext struct {
	rsp uintptr
	r15 uintptr
	r14 uintptr
	r13 uintptr
	r12 uintptr
	rbx uintptr
	rbp uintptr

	// stack is the slot's stack buffer. Once its address is captured in
	// rsp the buffer must not move or be reallocated until the slot is
	// respawned. It is nil for the base context, which runs on the stack
	// the runtime was constructed on.
	stack []byte
}

// activeRuntime is how the trampolines locate the runtime: they begin
// executing on a bare stack with no way to receive arguments. It is
// published at construction and must stay valid for the runtime's entire
// lifetime, which limits this build to one live runtime per process.
var activeRuntime *Runtime

func initRuntime(r *Runtime) {
	activeRuntime = r
}

// bootstrap lays out a fresh stack so that the first switch into the
// slot's context starts the task. From the 16-byte-aligned high end of
// the buffer downward it writes the guard trampoline's address, then the
// entry trampoline's address, and records the lower slot as the saved
// stack pointer. The switch primitive's RET then lands in the entry
// trampoline with ABI-correct alignment, and a normal return from it
// lands in the guard.
func bootstrap(r *Runtime, s *slot) {
	c := &s.ctx
	c.stack = make([]byte, stackSize)

	base := uintptr(unsafe.Pointer(&c.stack[0]))
	*(*uintptr)(unsafe.Pointer(base)) = stackCanary

	top := (base + stackSize) &^ 15
	top -= 8
	*(*uintptr)(unsafe.Pointer(top)) = funcPC(guardTrampoline)
	top -= 8
	*(*uintptr)(unsafe.Pointer(top)) = funcPC(entryTrampoline)
	c.rsp = top
}

// entryTrampoline is the first code a bootstrapped stack executes. It
// runs the task's entry with its handle; when the entry returns, the
// return address left just above it on the stack diverts control into
// guardTrampoline.
func entryTrampoline() {
	r := activeRuntime
	s := &r.slots[r.current]
	s.entry(s.task)
}

// guardTrampoline retires the finished slot and hands control back to the
// scheduler. It runs at most once per occupancy and only as the natural
// return target of a task's entry, never called directly.
func guardTrampoline() {
	activeRuntime.returnFromTask()
	// Not reached once another slot is scheduled: the retired context is
	// never selected again.
	for {
	}
}

// switchContext transfers control from old to new. The call site does not
// resume when it returns; a later invocation naming old as its new is
// what brings execution back here.
func switchContext(old, new *executionContext) {
	if old.stack != nil && *(*uintptr)(unsafe.Pointer(&old.stack[0])) != stackCanary {
		panic("coop: task stack overflow")
	}
	rawSwitch(old, new)
}

// retireContext is a no-op in this build: a retired slot's saved
// registers are dead data, and its stack buffer must stay allocated until
// the guard trampoline has switched away from it. Both are replaced
// wholesale when the slot is respawned.
func retireContext(*executionContext) {}

// funcPC extracts the code pointer of a function value. fn must be a
// top-level function, not a closure: only the code address survives the
// trip onto a raw stack.
func funcPC(fn func()) uintptr {
	return **(**uintptr)(unsafe.Pointer(&fn))
}

// rawSwitch is implemented in switch_rawstack_amd64.s.
func rawSwitch(old, new *executionContext)
