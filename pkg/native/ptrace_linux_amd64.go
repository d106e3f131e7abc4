//go:build linux && amd64
// +build linux,amd64

package native

import (
	"syscall"
	"unsafe"

	sys "golang.org/x/sys/unix"

	"github.com/go-delve/nativedbg/pkg/amd64util"
	"github.com/go-delve/nativedbg/pkg/linutil"
)

const _NT_X86_XSTATE = 0x202

// debugRegUserOffset is the offset of the debug registers in the user
// struct, see arch/x86/kernel/ptrace.c
const debugRegUserOffset = 848

func ptraceGetRegs(tid int, regs *linutil.AMD64PtraceRegs) error {
	return sys.PtraceGetRegs(tid, (*sys.PtraceRegs)(regs))
}

func ptraceSetRegs(tid int, regs *linutil.AMD64PtraceRegs) error {
	return sys.PtraceSetRegs(tid, (*sys.PtraceRegs)(regs))
}

// ptraceGetFpRegs reads the legacy user_fpregs_struct, used when the XSTATE
// transport is disabled.
func ptraceGetFpRegs(tid int, fpregs *amd64util.AMD64PtraceFpRegs) error {
	_, _, err := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_GETFPREGS, uintptr(tid), 0, uintptr(unsafe.Pointer(fpregs)), 0, 0)
	if err != syscall.Errno(0) {
		return err
	}
	return nil
}

func ptraceSetFpRegs(tid int, fpregs *amd64util.AMD64PtraceFpRegs) error {
	_, _, err := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_SETFPREGS, uintptr(tid), 0, uintptr(unsafe.Pointer(fpregs)), 0, 0)
	if err != syscall.Errno(0) {
		return err
	}
	return nil
}

// ptraceGetXstate reads the XSAVE area through the NT_X86_XSTATE register
// set. The payload size selects the layout flavor.
func ptraceGetXstate(tid int, xsave []byte) error {
	return ptraceGetRegset(tid, _NT_X86_XSTATE, unsafe.Pointer(&xsave[0]), len(xsave))
}

func ptraceSetXstate(tid int, xsave []byte) error {
	return ptraceSetRegset(tid, _NT_X86_XSTATE, unsafe.Pointer(&xsave[0]), len(xsave))
}

// ptracePeekUser reads one word from the tracee's user area.
func ptracePeekUser(tid int, off uintptr) (uint64, error) {
	var val uint64
	_, _, err := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_PEEKUSR, uintptr(tid), off, uintptr(unsafe.Pointer(&val)), 0, 0)
	if err != syscall.Errno(0) {
		return 0, err
	}
	return val, nil
}

// ptracePokeUser writes one word into the tracee's user area.
func ptracePokeUser(tid int, off uintptr, val uint64) error {
	_, _, err := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_POKEUSR, uintptr(tid), off, uintptr(val), 0, 0)
	if err != syscall.Errno(0) {
		return err
	}
	return nil
}
