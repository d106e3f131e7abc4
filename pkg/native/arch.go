package native

// Registers is the cached general purpose register mirror of one thread.
// The concrete type depends on the architecture: *linutil.AMD64PtraceRegs
// on amd64, *linutil.ARM64Registers on arm64. The mirror is authoritative
// between a stop and the next resume; the controller flushes it back to the
// kernel before resuming.
type Registers interface {
	PC() uint64
	SetPC(uint64)
	SP() uint64
}

// FpRegisters is the cached floating point register mirror of one thread.
// The concrete type is *amd64util.AMD64Xstate on amd64 and
// *linutil.ARM64PtraceFpRegs on arm64.
type FpRegisters interface {
	// Size returns the byte length of the kernel transport payload.
	Size() int
}

// Arch hides the register layout, breakpoint encoding and debug register
// programming differences between the supported architectures. The rest of
// the package only ever talks to this interface; arch_amd64.go and
// arch_arm64.go provide the implementation for the host.
type Arch interface {
	Name() string

	NewRegs() Registers
	NewFpRegs() FpRegisters
	GetRegs(tid int) (Registers, error)
	SetRegs(tid int, regs Registers) error
	GetFpRegs(tid int, fpregs FpRegisters) error
	SetFpRegs(tid int, fpregs FpRegisters) error

	InstallHWBreakpoint(bp *HardwareBreakpoint) error
	RemoveHWBreakpoint(bp *HardwareBreakpoint) error
	HWBreakpointHit(bp *HardwareBreakpoint) bool
	RemainingHWBreakpointCount(tid int) (int, error)
	RemainingHWWatchpointCount(tid int) (int, error)
	// StepsOverHWBreakpoints reports whether a thread stopped on a hardware
	// breakpoint must have it removed, be stepped past it and have it
	// reinstalled before it can resume. arm64 stops report the breakpoint
	// address, so resuming without this dance re-triggers it immediately;
	// amd64 records hits in DR6 and resumes fine.
	StepsOverHWBreakpoints() bool

	// PatchBreakpointWord splices the architecture's breakpoint opcode into
	// the memory word read at a breakpoint address.
	PatchBreakpointWord(word uint64) uint64
	IsCall(window []byte) bool
	IsRet(window []byte) bool
	IsSWBreakpoint(window []byte) bool

	PeekUser(tid int, addr uint64) (uint64, error)
	PokeUser(tid int, addr, word uint64) error
}
