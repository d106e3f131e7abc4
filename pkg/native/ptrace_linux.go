package native

import (
	"encoding/binary"
	"syscall"
	"unsafe"

	sys "golang.org/x/sys/unix"
)

// ptraceAttach executes the sys.PtraceAttach call.
func ptraceAttach(pid int) error {
	return sys.PtraceAttach(pid)
}

// ptraceTraceMe turns the calling process into a tracee of its parent.
// Meant to be called between fork and exec in the child.
func ptraceTraceMe() error {
	_, _, err := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_TRACEME, 0, 0, 0, 0, 0)
	if err != syscall.Errno(0) {
		return err
	}
	return nil
}

// ptraceDetach calls ptrace(PTRACE_DETACH).
func ptraceDetach(tid, sig int) error {
	_, _, err := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_DETACH, uintptr(tid), 1, uintptr(sig), 0, 0)
	if err != syscall.Errno(0) {
		return err
	}
	return nil
}

// ptraceCont executes ptrace PTRACE_CONT, delivering sig to the tracee.
func ptraceCont(tid, sig int) error {
	return sys.PtraceCont(tid, sig)
}

// ptraceSyscall executes ptrace PTRACE_SYSCALL, a continue that also stops
// at the next syscall entry or exit.
func ptraceSyscall(tid, sig int) error {
	return sys.PtraceSyscall(tid, sig)
}

// ptraceSingleStep executes ptrace PTRACE_SINGLESTEP, delivering sig to the
// tracee.
func ptraceSingleStep(tid, sig int) error {
	_, _, e1 := sys.Syscall6(sys.SYS_PTRACE, uintptr(sys.PTRACE_SINGLESTEP), uintptr(tid), uintptr(0), uintptr(sig), 0, 0)
	if e1 != 0 {
		return e1
	}
	return nil
}

func ptraceSetOptions(tid int, options int) error {
	return sys.PtraceSetOptions(tid, options)
}

// ptracePeekData reads one word of tracee memory. The raw request conflates
// a -1 word with failure; going through the buffer variant keeps value and
// error on separate channels.
func ptracePeekData(tid int, addr uint64) (uint64, error) {
	var buf [8]byte
	if _, err := sys.PtracePeekData(tid, uintptr(addr), buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// ptracePokeData writes one word of tracee memory.
func ptracePokeData(tid int, addr, word uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], word)
	_, err := sys.PtracePokeData(tid, uintptr(addr), buf[:])
	return err
}

func ptraceGetEventMsg(tid int) (uint, error) {
	return sys.PtraceGetEventMsg(tid)
}

// ptraceGetRegset reads the register set identified by the note type nt
// into the size bytes at p.
func ptraceGetRegset(tid int, nt uintptr, p unsafe.Pointer, size int) error {
	iov := sys.Iovec{Base: (*byte)(p), Len: uint64(size)}
	_, _, err := syscall.Syscall6(syscall.SYS_PTRACE, sys.PTRACE_GETREGSET, uintptr(tid), nt, uintptr(unsafe.Pointer(&iov)), 0, 0)
	if err != syscall.Errno(0) {
		return err
	}
	return nil
}

// ptraceSetRegset writes the size bytes at p into the register set
// identified by the note type nt.
func ptraceSetRegset(tid int, nt uintptr, p unsafe.Pointer, size int) error {
	iov := sys.Iovec{Base: (*byte)(p), Len: uint64(size)}
	_, _, err := syscall.Syscall6(syscall.SYS_PTRACE, sys.PTRACE_SETREGSET, uintptr(tid), nt, uintptr(unsafe.Pointer(&iov)), 0, 0)
	if err != syscall.Errno(0) {
		return err
	}
	return nil
}

// waitpid wraps wait4. A negative pid waits on the process group, WNOHANG
// in options polls without blocking.
func waitpid(pid int, options int) (int, sys.WaitStatus, error) {
	var status sys.WaitStatus
	wpid, err := sys.Wait4(pid, &status, options, nil)
	return wpid, status, err
}

// isGroupStop reports whether status is exactly a stop by SIGSTOP (the raw
// wait status 4991 on Linux). Reaping it right after stepping a thread off
// a breakpoint means a pending group-stop raced with the step; the step
// must be reissued.
func isGroupStop(status sys.WaitStatus) bool {
	return status.Stopped() && status.StopSignal() == sys.SIGSTOP
}
