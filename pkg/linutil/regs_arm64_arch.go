package linutil

import "unsafe"

// ARM64PtraceRegs mirrors user_pt_regs in
// arch/arm64/include/uapi/asm/ptrace.h, the payload of the NT_PRSTATUS
// register set.
type ARM64PtraceRegs struct {
	Regs   [31]uint64
	Sp     uint64
	Pc     uint64
	Pstate uint64
}

var _ = [1]struct{}{}[unsafe.Sizeof(ARM64PtraceRegs{})-34*8]

// ARM64Registers is the general purpose register mirror for a thread on
// linux/arm64. The syscall number override is sticky: when set, the next
// flush additionally writes the NT_ARM_SYSTEM_CALL register set with the
// value of x8, then drops the flag.
type ARM64Registers struct {
	Regs                  ARM64PtraceRegs
	OverrideSyscallNumber bool
}

// PC returns the current program counter.
func (r *ARM64Registers) PC() uint64 {
	return r.Regs.Pc
}

// SetPC changes the program counter in the mirror. The change reaches the
// tracee the next time the mirror is flushed.
func (r *ARM64Registers) SetPC(pc uint64) {
	r.Regs.Pc = pc
}

// SP returns the current stack pointer.
func (r *ARM64Registers) SP() uint64 {
	return r.Regs.Sp
}

// SetSyscallNumber overrides the number of the syscall the tracee is about
// to enter. Only meaningful during a syscall-entry stop.
func (r *ARM64Registers) SetSyscallNumber(n uint64) {
	r.Regs.Regs[8] = n
	r.OverrideSyscallNumber = true
}

// ARM64PtraceFpRegs mirrors user_fpsimd_state in
// arch/arm64/include/uapi/asm/ptrace.h, the payload of the NT_FPREGSET
// register set.
type ARM64PtraceFpRegs struct {
	Vregs [32][16]byte
	Fpsr  uint32
	Fpcr  uint32
	_     [2]uint32
}

var _ = [1]struct{}{}[unsafe.Sizeof(ARM64PtraceFpRegs{})-528]

// Size returns the byte length of the kernel transport payload.
func (fp *ARM64PtraceFpRegs) Size() int {
	return int(unsafe.Sizeof(*fp))
}
