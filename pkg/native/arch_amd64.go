//go:build linux && amd64
// +build linux,amd64

package native

import (
	"golang.org/x/arch/x86/x86asm"

	"github.com/go-delve/nativedbg/pkg/amd64util"
	"github.com/go-delve/nativedbg/pkg/linutil"
)

// breakpointOpcode is INT 3, spliced into the low byte of the patched word.
const breakpointOpcode = 0xcc

type amd64Arch struct {
	flavor   amd64util.FpFlavor
	useXsave bool
}

func newArch(cfg Config) Arch {
	return &amd64Arch{flavor: cfg.FpFlavor, useXsave: cfg.UseXsave}
}

func (a *amd64Arch) Name() string { return "amd64" }

func (a *amd64Arch) NewRegs() Registers { return &linutil.AMD64PtraceRegs{} }

func (a *amd64Arch) NewFpRegs() FpRegisters {
	x := &amd64util.AMD64Xstate{}
	if a.useXsave {
		x.Xsave = make([]byte, a.flavor.XstateSize())
	}
	return x
}

func (a *amd64Arch) GetRegs(tid int) (Registers, error) {
	regs := new(linutil.AMD64PtraceRegs)
	if err := ptraceGetRegs(tid, regs); err != nil {
		return nil, err
	}
	return regs, nil
}

func (a *amd64Arch) SetRegs(tid int, regs Registers) error {
	return ptraceSetRegs(tid, regs.(*linutil.AMD64PtraceRegs))
}

func (a *amd64Arch) GetFpRegs(tid int, fpregs FpRegisters) error {
	x := fpregs.(*amd64util.AMD64Xstate)
	if !a.useXsave {
		return ptraceGetFpRegs(tid, &x.AMD64PtraceFpRegs)
	}
	if err := ptraceGetXstate(tid, x.Xsave); err != nil {
		return err
	}
	return amd64util.AMD64XstateRead(x.Xsave, true, x)
}

func (a *amd64Arch) SetFpRegs(tid int, fpregs FpRegisters) error {
	x := fpregs.(*amd64util.AMD64Xstate)
	if !a.useXsave {
		return ptraceSetFpRegs(tid, &x.AMD64PtraceFpRegs)
	}
	if err := amd64util.AMD64XstateWrite(x); err != nil {
		return err
	}
	return ptraceSetXstate(tid, x.Xsave)
}

// withDebugRegisters reads DR0-DR3, DR6 and DR7 out of the user area, calls
// f on the resulting model and writes the registers back if f changed them.
// DR4 and DR5 are skipped, Linux returns EIO for them.
func (a *amd64Arch) withDebugRegisters(tid int, f func(*amd64util.DebugRegisters) error) error {
	debugregs := make([]uint64, 8)
	for i := range debugregs {
		if i == 4 || i == 5 {
			continue
		}
		var err error
		debugregs[i], err = ptracePeekUser(tid, debugRegUserOffset+uintptr(i)*8)
		if err != nil {
			return err
		}
	}
	drs := amd64util.NewDebugRegisters(&debugregs[0], &debugregs[1], &debugregs[2], &debugregs[3], &debugregs[6], &debugregs[7])
	ferr := f(drs)
	if drs.Dirty {
		for i := range debugregs {
			if i == 4 || i == 5 {
				continue
			}
			if err := ptracePokeUser(tid, debugRegUserOffset+uintptr(i)*8, debugregs[i]); err != nil {
				return err
			}
		}
	}
	return ferr
}

func (a *amd64Arch) InstallHWBreakpoint(bp *HardwareBreakpoint) error {
	return a.withDebugRegisters(bp.Tid, func(drs *amd64util.DebugRegisters) error {
		idx, err := drs.FreeSlot()
		if err != nil {
			return ErrHWBreakpointsExhausted
		}
		sz := bp.Len
		if bp.Kind == HWExecute {
			// execute breakpoints require a length field of 1
			sz = 1
		}
		read := bp.Kind == HWReadWrite
		write := bp.Kind == HWWrite || bp.Kind == HWReadWrite
		return drs.SetBreakpoint(idx, bp.Addr, read, write, sz)
	})
}

func (a *amd64Arch) RemoveHWBreakpoint(bp *HardwareBreakpoint) error {
	return a.withDebugRegisters(bp.Tid, func(drs *amd64util.DebugRegisters) error {
		idx, ok := drs.FindSlot(bp.Addr)
		if !ok {
			return ErrNoSuchBreakpoint
		}
		drs.ClearBreakpoint(idx)
		return nil
	})
}

func (a *amd64Arch) HWBreakpointHit(bp *HardwareBreakpoint) bool {
	hit := false
	err := a.withDebugRegisters(bp.Tid, func(drs *amd64util.DebugRegisters) error {
		if idx, ok := drs.HitIndex(); ok {
			hit = drs.Addr(idx) == bp.Addr
		}
		return nil
	})
	return err == nil && hit
}

func (a *amd64Arch) RemainingHWBreakpointCount(tid int) (int, error) {
	count := 0
	err := a.withDebugRegisters(tid, func(drs *amd64util.DebugRegisters) error {
		count = drs.RemainingCount()
		return nil
	})
	return count, err
}

// RemainingHWWatchpointCount returns the same value as the breakpoint
// count: the four slots are shared between both uses on this architecture.
func (a *amd64Arch) RemainingHWWatchpointCount(tid int) (int, error) {
	return a.RemainingHWBreakpointCount(tid)
}

func (a *amd64Arch) StepsOverHWBreakpoints() bool { return false }

func (a *amd64Arch) PatchBreakpointWord(word uint64) uint64 {
	return (word &^ 0xff) | breakpointOpcode
}

func (a *amd64Arch) IsSWBreakpoint(window []byte) bool {
	return len(window) > 0 && window[0] == breakpointOpcode
}

func (a *amd64Arch) IsCall(window []byte) bool {
	inst, err := x86asm.Decode(window, 64)
	if err != nil {
		// windows we cannot classify count as non-calls
		return false
	}
	return inst.Op == x86asm.CALL || inst.Op == x86asm.LCALL
}

func (a *amd64Arch) IsRet(window []byte) bool {
	inst, err := x86asm.Decode(window, 64)
	if err != nil {
		return false
	}
	return inst.Op == x86asm.RET || inst.Op == x86asm.LRET
}

func (a *amd64Arch) PeekUser(tid int, addr uint64) (uint64, error) {
	return ptracePeekUser(tid, uintptr(addr))
}

func (a *amd64Arch) PokeUser(tid int, addr, word uint64) error {
	return ptracePokeUser(tid, uintptr(addr), word)
}
