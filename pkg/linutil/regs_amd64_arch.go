package linutil

import "unsafe"

// AMD64PtraceRegs is the struct used by the linux kernel to return the
// general purpose registers for AMD64 CPUs. It is convertible to
// golang.org/x/sys/unix.PtraceRegs on linux/amd64.
type AMD64PtraceRegs struct {
	R15      uint64
	R14      uint64
	R13      uint64
	R12      uint64
	Rbp      uint64
	Rbx      uint64
	R11      uint64
	R10      uint64
	R9       uint64
	R8       uint64
	Rax      uint64
	Rcx      uint64
	Rdx      uint64
	Rsi      uint64
	Rdi      uint64
	Orig_rax uint64
	Rip      uint64
	Cs       uint64
	Eflags   uint64
	Rsp      uint64
	Ss       uint64
	Fs_base  uint64
	Gs_base  uint64
	Ds       uint64
	Es       uint64
	Fs       uint64
	Gs       uint64
}

var _ = [1]struct{}{}[unsafe.Sizeof(AMD64PtraceRegs{})-27*8]

// PC returns the current program counter.
func (r *AMD64PtraceRegs) PC() uint64 {
	return r.Rip
}

// SetPC changes the program counter in the mirror. The change reaches the
// tracee the next time the mirror is flushed.
func (r *AMD64PtraceRegs) SetPC(pc uint64) {
	r.Rip = pc
}

// SP returns the current stack pointer.
func (r *AMD64PtraceRegs) SP() uint64 {
	return r.Rsp
}
