//go:build linux && arm64
// +build linux,arm64

package native

import (
	"encoding/binary"

	sys "golang.org/x/sys/unix"

	"golang.org/x/arch/arm64/arm64asm"

	"github.com/go-delve/nativedbg/pkg/linutil"
)

// brkInstruction is BRK #0, spliced over the whole instruction word.
const brkInstruction = 0xd4200000

type arm64Arch struct{}

func newArch(cfg Config) Arch {
	return &arm64Arch{}
}

func (a *arm64Arch) Name() string { return "arm64" }

func (a *arm64Arch) NewRegs() Registers { return &linutil.ARM64Registers{} }

func (a *arm64Arch) NewFpRegs() FpRegisters { return &linutil.ARM64PtraceFpRegs{} }

func (a *arm64Arch) GetRegs(tid int) (Registers, error) {
	regs := new(linutil.ARM64Registers)
	if err := ptraceGetGRegs(tid, &regs.Regs); err != nil {
		return nil, err
	}
	return regs, nil
}

func (a *arm64Arch) SetRegs(tid int, regs Registers) error {
	r := regs.(*linutil.ARM64Registers)
	if r.OverrideSyscallNumber {
		// the override is sticky: one write, then the flag drops
		r.OverrideSyscallNumber = false
		if err := ptraceSetSyscallRegset(tid, r.Regs.Regs[8]); err != nil {
			return err
		}
	}
	return ptraceSetGRegs(tid, &r.Regs)
}

func (a *arm64Arch) GetFpRegs(tid int, fpregs FpRegisters) error {
	return ptraceGetFpRegset(tid, fpregs.(*linutil.ARM64PtraceFpRegs))
}

func (a *arm64Arch) SetFpRegs(tid int, fpregs FpRegisters) error {
	return ptraceSetFpRegset(tid, fpregs.(*linutil.ARM64PtraceFpRegs))
}

func hwDebugNoteType(kind HWBreakpointKind) uintptr {
	if kind == HWExecute {
		return _NT_ARM_HW_BREAK
	}
	return _NT_ARM_HW_WATCH
}

func hwDebugCondition(kind HWBreakpointKind) uint64 {
	switch kind {
	case HWExecute:
		return 0
	case HWWrite:
		return 2
	default:
		return 3
	}
}

func (a *arm64Arch) InstallHWBreakpoint(bp *HardwareBreakpoint) error {
	nt := hwDebugNoteType(bp.Kind)
	state, err := ptraceGetHWDebugState(bp.Tid, nt)
	if err != nil {
		return err
	}
	idx := -1
	for i := 0; i < int(state.num); i++ {
		if state.addr(i) == 0 {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrHWBreakpointsExhausted
	}

	if bp.Kind == HWExecute {
		// hardware breakpoints can only be of length 4
		bp.Len = 4
	}

	length := uint64((1 << bp.Len) - 1) // length expressed as an address bitmask
	control := (length << 5) | (hwDebugCondition(bp.Kind) << 3) | (2 << 1) | 1
	state.set(idx, bp.Addr, control)
	return ptraceSetHWDebugState(bp.Tid, nt, state)
}

func (a *arm64Arch) RemoveHWBreakpoint(bp *HardwareBreakpoint) error {
	nt := hwDebugNoteType(bp.Kind)
	state, err := ptraceGetHWDebugState(bp.Tid, nt)
	if err != nil {
		return err
	}
	for i := 0; i < int(state.num); i++ {
		if state.addr(i) == bp.Addr {
			state.set(i, 0, 0)
			return ptraceSetHWDebugState(bp.Tid, nt, state)
		}
	}
	return ErrNoSuchBreakpoint
}

// HWBreakpointHit reports whether the last stop of the owning thread was
// caused by bp: a SIGTRAP with si_code TRAP_HWBKPT and si_addr equal to the
// breakpoint address.
func (a *arm64Arch) HWBreakpointHit(bp *HardwareBreakpoint) bool {
	siginfo, err := ptraceGetSiginfo(bp.Tid)
	if err != nil {
		return false
	}
	if siginfo.signo != uint32(sys.SIGTRAP) || (siginfo.code&0xffff) != _TRAP_HWBKPT {
		return false
	}
	return siginfo.addr == bp.Addr
}

func (a *arm64Arch) RemainingHWBreakpointCount(tid int) (int, error) {
	state, err := ptraceGetHWDebugState(tid, _NT_ARM_HW_BREAK)
	if err != nil {
		return 0, err
	}
	return int(state.num), nil
}

func (a *arm64Arch) RemainingHWWatchpointCount(tid int) (int, error) {
	state, err := ptraceGetHWDebugState(tid, _NT_ARM_HW_WATCH)
	if err != nil {
		return 0, err
	}
	return int(state.num), nil
}

func (a *arm64Arch) StepsOverHWBreakpoints() bool { return true }

func (a *arm64Arch) PatchBreakpointWord(word uint64) uint64 {
	return (word &^ 0xffffffff) | brkInstruction
}

func (a *arm64Arch) IsSWBreakpoint(window []byte) bool {
	return len(window) >= 4 && binary.LittleEndian.Uint32(window) == brkInstruction
}

func (a *arm64Arch) IsCall(window []byte) bool {
	inst, err := arm64asm.Decode(window)
	if err != nil {
		// windows we cannot classify count as non-calls
		return false
	}
	return inst.Op == arm64asm.BL || inst.Op == arm64asm.BLR
}

func (a *arm64Arch) IsRet(window []byte) bool {
	inst, err := arm64asm.Decode(window)
	if err != nil {
		return false
	}
	return inst.Op == arm64asm.RET
}

func (a *arm64Arch) PeekUser(tid int, addr uint64) (uint64, error) {
	return ptracePeekUser(tid, uintptr(addr))
}

func (a *arm64Arch) PokeUser(tid int, addr, word uint64) error {
	return ptracePokeUser(tid, uintptr(addr), word)
}
