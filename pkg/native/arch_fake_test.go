package native

import (
	"fmt"

	"github.com/go-delve/nativedbg/pkg/logflags"
)

// fakeRegs and fakeArch let the bookkeeping layers be exercised without a
// tracee: register reads hand out canned mirrors and the debug slot
// programming is tracked per thread.
type fakeRegs struct {
	pc, sp uint64
}

func (r *fakeRegs) PC() uint64      { return r.pc }
func (r *fakeRegs) SetPC(pc uint64) { r.pc = pc }
func (r *fakeRegs) SP() uint64      { return r.sp }

type fakeFpRegs struct{}

func (fakeFpRegs) Size() int { return 512 }

type fakeSlotKey struct {
	tid  int
	addr uint64
}

type fakeArch struct {
	pcByTid     map[int]uint64
	failGetRegs map[int]bool

	slotsPerThread int
	slots          map[fakeSlotKey]bool
	hits           map[fakeSlotKey]bool

	stepsOverHWBreakpoints bool
}

func newFakeArch() *fakeArch {
	return &fakeArch{
		pcByTid:        make(map[int]uint64),
		failGetRegs:    make(map[int]bool),
		slotsPerThread: 4,
		slots:          make(map[fakeSlotKey]bool),
		hits:           make(map[fakeSlotKey]bool),
	}
}

func newFakeProcess(pid int, arch Arch) *Process {
	return &Process{
		pid:   pid,
		arch:  arch,
		log:   logflags.TracerLogger(),
		bplog: logflags.BreakpointsLogger(),
	}
}

func (a *fakeArch) Name() string           { return "fake" }
func (a *fakeArch) NewRegs() Registers     { return &fakeRegs{} }
func (a *fakeArch) NewFpRegs() FpRegisters { return fakeFpRegs{} }

func (a *fakeArch) GetRegs(tid int) (Registers, error) {
	if a.failGetRegs[tid] {
		return nil, fmt.Errorf("no such process")
	}
	return &fakeRegs{pc: a.pcByTid[tid]}, nil
}

func (a *fakeArch) SetRegs(tid int, regs Registers) error       { return nil }
func (a *fakeArch) GetFpRegs(tid int, fpregs FpRegisters) error { return nil }
func (a *fakeArch) SetFpRegs(tid int, fpregs FpRegisters) error { return nil }

func (a *fakeArch) installedCount(tid int) int {
	n := 0
	for k, ok := range a.slots {
		if ok && k.tid == tid {
			n++
		}
	}
	return n
}

func (a *fakeArch) InstallHWBreakpoint(bp *HardwareBreakpoint) error {
	if a.installedCount(bp.Tid) >= a.slotsPerThread {
		return ErrHWBreakpointsExhausted
	}
	a.slots[fakeSlotKey{bp.Tid, bp.Addr}] = true
	return nil
}

func (a *fakeArch) RemoveHWBreakpoint(bp *HardwareBreakpoint) error {
	key := fakeSlotKey{bp.Tid, bp.Addr}
	if !a.slots[key] {
		return ErrNoSuchBreakpoint
	}
	delete(a.slots, key)
	return nil
}

func (a *fakeArch) HWBreakpointHit(bp *HardwareBreakpoint) bool {
	return a.hits[fakeSlotKey{bp.Tid, bp.Addr}]
}

func (a *fakeArch) RemainingHWBreakpointCount(tid int) (int, error) {
	return a.slotsPerThread - a.installedCount(tid), nil
}

func (a *fakeArch) RemainingHWWatchpointCount(tid int) (int, error) {
	return a.RemainingHWBreakpointCount(tid)
}

func (a *fakeArch) StepsOverHWBreakpoints() bool { return a.stepsOverHWBreakpoints }

func (a *fakeArch) PatchBreakpointWord(word uint64) uint64 {
	return (word &^ 0xff) | 0xcc
}

func (a *fakeArch) IsCall(window []byte) bool { return false }
func (a *fakeArch) IsRet(window []byte) bool  { return false }

func (a *fakeArch) IsSWBreakpoint(window []byte) bool {
	return len(window) > 0 && window[0] == 0xcc
}

func (a *fakeArch) PeekUser(tid int, addr uint64) (uint64, error) { return 0, nil }
func (a *fakeArch) PokeUser(tid int, addr, word uint64) error     { return nil }
