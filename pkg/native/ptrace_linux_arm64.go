//go:build linux && arm64
// +build linux,arm64

package native

import (
	"debug/elf"
	"fmt"
	"syscall"
	"unsafe"

	sys "golang.org/x/sys/unix"

	"github.com/go-delve/nativedbg/pkg/linutil"
)

const (
	_NT_ARM_HW_BREAK    = 0x402
	_NT_ARM_HW_WATCH    = 0x403
	_NT_ARM_SYSTEM_CALL = 0x404

	_TRAP_HWBKPT = 0x4

	// the high bit of a user-area address selects the watchpoint register
	// set instead of the breakpoint one
	hwWatchUserArea = 0x1000

	maxHWDebugSlots = 16
)

func ptraceGetGRegs(tid int, regs *linutil.ARM64PtraceRegs) error {
	return ptraceGetRegset(tid, uintptr(elf.NT_PRSTATUS), unsafe.Pointer(regs), int(unsafe.Sizeof(*regs)))
}

func ptraceSetGRegs(tid int, regs *linutil.ARM64PtraceRegs) error {
	return ptraceSetRegset(tid, uintptr(elf.NT_PRSTATUS), unsafe.Pointer(regs), int(unsafe.Sizeof(*regs)))
}

// ptraceSetSyscallRegset rewrites the number of the syscall the stopped
// thread is entering through the NT_ARM_SYSTEM_CALL register set.
func ptraceSetSyscallRegset(tid int, nr uint64) error {
	return ptraceSetRegset(tid, _NT_ARM_SYSTEM_CALL, unsafe.Pointer(&nr), int(unsafe.Sizeof(nr)))
}

func ptraceGetFpRegset(tid int, fpregs *linutil.ARM64PtraceFpRegs) error {
	return ptraceGetRegset(tid, uintptr(elf.NT_FPREGSET), unsafe.Pointer(fpregs), int(unsafe.Sizeof(*fpregs)))
}

func ptraceSetFpRegset(tid int, fpregs *linutil.ARM64PtraceFpRegs) error {
	return ptraceSetRegset(tid, uintptr(elf.NT_FPREGSET), unsafe.Pointer(fpregs), int(unsafe.Sizeof(*fpregs)))
}

type ptraceSiginfoArm64 struct {
	signo uint32
	errno uint32
	code  uint32
	addr  uint64    // only valid if signo is SIGTRAP, SIGFPE, SIGILL, SIGBUS or SIGEMT
	pad   [128]byte // the total size of siginfo_t on ARM64 is 128 bytes so this is more than enough padding for all the fields we don't care about
}

func ptraceGetSiginfo(tid int) (*ptraceSiginfoArm64, error) {
	var siginfo ptraceSiginfoArm64
	_, _, err := syscall.Syscall6(syscall.SYS_PTRACE, sys.PTRACE_GETSIGINFO, uintptr(tid), 0, uintptr(unsafe.Pointer(&siginfo)), 0, 0)
	if err != syscall.Errno(0) {
		return nil, err
	}
	return &siginfo, nil
}

// hwDebugState is the user_hwdebug_state register set described in
// arch/arm64/include/uapi/asm/ptrace.h: one 64bit word holding the slot
// count and debug architecture version, followed by an address word and a
// control word per slot.
type hwDebugState struct {
	num   uint8
	words []uint64
}

func (s *hwDebugState) addr(idx int) uint64 {
	return s.words[1+idx*2]
}

func (s *hwDebugState) ctrl(idx int) uint64 {
	return s.words[1+idx*2+1]
}

func (s *hwDebugState) set(idx int, addr, ctrl uint64) {
	s.words[1+idx*2] = addr
	s.words[1+idx*2+1] = ctrl
}

// ptraceGetHWDebugState reads the NT_ARM_HW_BREAK or NT_ARM_HW_WATCH
// register set. The words slice is trimmed to the slots that actually
// exist so that writing it back cannot fail with ENOSPC.
func ptraceGetHWDebugState(tid int, nt uintptr) (*hwDebugState, error) {
	words := make([]uint64, maxHWDebugSlots*2+1)
	err := ptraceGetRegset(tid, nt, unsafe.Pointer(&words[0]), len(words)*8)
	if err != nil {
		return nil, err
	}
	state := &hwDebugState{num: uint8(words[0] & 0xff), words: words}
	if state.num > maxHWDebugSlots {
		state.num = maxHWDebugSlots
	}
	state.words = state.words[:int(state.num)*2+1]
	return state, nil
}

func ptraceSetHWDebugState(tid int, nt uintptr, state *hwDebugState) error {
	return ptraceSetRegset(tid, nt, unsafe.Pointer(&state.words[0]), len(state.words)*8)
}

// ptracePeekUser emulates PTRACE_PEEKUSER, which does not exist on arm64:
// off is a byte offset into the user_hwdebug_state payload, with
// hwWatchUserArea selecting the watchpoint register set.
func ptracePeekUser(tid int, off uintptr) (uint64, error) {
	nt := uintptr(_NT_ARM_HW_BREAK)
	if off&hwWatchUserArea != 0 {
		nt = _NT_ARM_HW_WATCH
		off &^= hwWatchUserArea
	}
	state, err := ptraceGetHWDebugState(tid, nt)
	if err != nil {
		return 0, err
	}
	idx := int(off / 8)
	if idx >= len(state.words) {
		return 0, fmt.Errorf("user area offset %#x beyond the %d available debug slots", off, state.num)
	}
	return state.words[idx], nil
}

// ptracePokeUser is the write half of the PTRACE_POKEUSER emulation.
func ptracePokeUser(tid int, off uintptr, val uint64) error {
	nt := uintptr(_NT_ARM_HW_BREAK)
	if off&hwWatchUserArea != 0 {
		nt = _NT_ARM_HW_WATCH
		off &^= hwWatchUserArea
	}
	state, err := ptraceGetHWDebugState(tid, nt)
	if err != nil {
		return err
	}
	idx := int(off / 8)
	if idx >= len(state.words) {
		return fmt.Errorf("user area offset %#x beyond the %d available debug slots", off, state.num)
	}
	state.words[idx] = val
	return ptraceSetHWDebugState(tid, nt, state)
}
