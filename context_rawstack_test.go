//go:build rawstack && amd64

package coop

import (
	"reflect"
	"testing"
	"unsafe"
)

// These tests verify the bootstrapped stack layout by inspecting memory;
// they never invoke the switch primitive, so they can run in a hosted
// process.

func TestBootstrapStackLayout(t *testing.T) {
	r := New(2)
	if err := r.Spawn(func(*Task) {}); err != nil {
		t.Fatal(err)
	}
	c := &r.slots[1].ctx

	if c.stack == nil {
		t.Fatal("bootstrap did not allocate a stack buffer")
	}
	base := uintptr(unsafe.Pointer(&c.stack[0]))
	if c.rsp <= base || c.rsp >= base+stackSize {
		t.Fatalf("saved stack pointer 0x%x outside the stack buffer [0x%x, 0x%x)", c.rsp, base, base+stackSize)
	}

	// The entry slot sits 16 bytes below the aligned top so that the
	// switch primitive's RET leaves the stack pointer congruent to 8 mod
	// 16 at the entry's first instruction, as the ABI requires.
	if c.rsp&15 != 0 {
		t.Errorf("saved stack pointer 0x%x is not 16-byte aligned", c.rsp)
	}

	gotEntry := *(*uintptr)(unsafe.Pointer(c.rsp))
	if want := funcPC(entryTrampoline); gotEntry != want {
		t.Errorf("entry slot: got 0x%x, want entry trampoline 0x%x", gotEntry, want)
	}

	gotGuard := *(*uintptr)(unsafe.Pointer(c.rsp + 8))
	if want := funcPC(guardTrampoline); gotGuard != want {
		t.Errorf("fallback slot: got 0x%x, want guard trampoline 0x%x", gotGuard, want)
	}

	if got := *(*uintptr)(unsafe.Pointer(base)); got != stackCanary {
		t.Errorf("canary: got 0x%x, want 0x%x", got, stackCanary)
	}
}

func TestBootstrapResetsRegisters(t *testing.T) {
	r := New(2)
	if err := r.Spawn(func(*Task) {}); err != nil {
		t.Fatal(err)
	}

	// Simulate the slot's occupant finishing with register state behind,
	// then respawn and verify nothing of it survives.
	s := &r.slots[1]
	s.ctx.r15 = 0xbad
	s.ctx.rbp = 0xbad
	s.state = StateAvailable
	s.entry = nil
	s.task = nil

	if err := r.Spawn(func(*Task) {}); err != nil {
		t.Fatal(err)
	}
	if s.ctx.r15 != 0 || s.ctx.r14 != 0 || s.ctx.r13 != 0 || s.ctx.r12 != 0 || s.ctx.rbx != 0 || s.ctx.rbp != 0 {
		t.Errorf("respawned context carries residual registers: %+v", s.ctx)
	}
	if got := *(*uintptr)(unsafe.Pointer(s.ctx.rsp)); got != funcPC(entryTrampoline) {
		t.Errorf("respawned entry slot: got 0x%x, want entry trampoline", got)
	}
}

func TestFuncPC(t *testing.T) {
	got := funcPC(entryTrampoline)
	want := reflect.ValueOf(entryTrampoline).Pointer()
	if got == 0 || got != want {
		t.Fatalf("funcPC mismatch: got 0x%x, want 0x%x", got, want)
	}
}

func TestRuntimePublishedForTrampolines(t *testing.T) {
	r := New(2)
	if activeRuntime != r {
		t.Error("New did not publish the runtime for the trampolines")
	}
}
