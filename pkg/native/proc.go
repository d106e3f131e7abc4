package native

import (
	"fmt"

	sys "golang.org/x/sys/unix"

	"github.com/go-delve/nativedbg/pkg/amd64util"
	"github.com/go-delve/nativedbg/pkg/logflags"
)

// traceOptions is set on the main thread right after the first stop so
// that fork, vfork, clone, exec and exit events, and syscall stops, can be
// told apart from plain signal stops.
const traceOptions = sys.PTRACE_O_TRACEFORK | sys.PTRACE_O_TRACEVFORK | sys.PTRACE_O_TRACECLONE | sys.PTRACE_O_TRACEEXEC | sys.PTRACE_O_TRACEEXIT | sys.PTRACE_O_TRACESYSGOOD

// Config selects the amd64 floating point transport. It is ignored on
// arm64, where there is only one layout.
type Config struct {
	FpFlavor amd64util.FpFlavor
	UseXsave bool // use the XSTATE register set instead of the legacy fp requests
}

func defaultConfig() Config {
	return Config{FpFlavor: amd64util.FpAVX, UseXsave: true}
}

// Process holds the complete mirror of one tracee: its live and dead
// threads, both breakpoint tables and the syscall tracing flag. It is the
// explicit context of every operation so that several tracees can be
// driven side by side. Operations are not reentrant; the caller serializes
// them, and the tracee's threads are stopped whenever the mirror is read
// or written.
type Process struct {
	pid  int
	arch Arch

	// head is the most recently registered thread; the main thread is
	// registered first and therefore stays at the tail, detach loops
	// depend on processing it last.
	threads     []*Thread
	deadThreads []*Thread

	swBreakpoints []*SoftwareBreakpoint // sorted by ascending address
	hwBreakpoints []*HardwareBreakpoint

	traceSyscalls bool

	log   logflags.Logger
	bplog logflags.Logger
}

func newProcess(pid int, cfg *Config) *Process {
	c := defaultConfig()
	if cfg != nil {
		c = *cfg
	}
	return &Process{
		pid:   pid,
		arch:  newArch(c),
		log:   logflags.TracerLogger(),
		bplog: logflags.BreakpointsLogger(),
	}
}

// Attach attaches to the existing process pid, waits for the initial stop,
// enables the trace events and registers the main thread. A nil cfg uses
// the defaults.
func Attach(pid int, cfg *Config) (*Process, error) {
	p := newProcess(pid, cfg)
	if err := ptraceAttach(pid); err != nil {
		return nil, fmt.Errorf("could not attach to pid %d: %v", pid, err)
	}
	if _, _, err := waitpid(pid, 0); err != nil {
		return nil, err
	}
	if err := ptraceSetOptions(pid, traceOptions); err != nil {
		return nil, err
	}
	if _, err := p.RegisterThread(pid); err != nil {
		return nil, err
	}
	return p, nil
}

// NewTracedChild adopts a forked child that called TraceMe before exec:
// it waits for the execve stop, enables the trace events and registers the
// main thread.
func NewTracedChild(pid int, cfg *Config) (*Process, error) {
	p := newProcess(pid, cfg)
	if _, _, err := waitpid(pid, 0); err != nil {
		return nil, fmt.Errorf("waiting for target execve failed: %v", err)
	}
	if err := ptraceSetOptions(pid, traceOptions); err != nil {
		return nil, err
	}
	if _, err := p.RegisterThread(pid); err != nil {
		return nil, err
	}
	return p, nil
}

// TraceMe turns the calling process into a tracee of its parent. Meant to
// be called between fork and exec in the child.
func TraceMe() error {
	return ptraceTraceMe()
}

// Pid returns the tracee's process id.
func (p *Process) Pid() int { return p.pid }

// SetTraceSyscalls selects, for every subsequent resume, between a plain
// continue and one that also stops on syscall entry and exit.
func (p *Process) SetTraceSyscalls(enabled bool) { p.traceSyscalls = enabled }

// TraceSyscalls reports whether syscall stops are enabled.
func (p *Process) TraceSyscalls() bool { return p.traceSyscalls }

// PeekData reads one word of tracee memory.
func (p *Process) PeekData(addr uint64) (uint64, error) {
	return ptracePeekData(p.pid, addr)
}

// PokeData writes one word of tracee memory.
func (p *Process) PokeData(addr, word uint64) error {
	return ptracePokeData(p.pid, addr, word)
}

// PeekUser reads one word from the user area of tid. On arm64, where the
// request does not exist, it is emulated over the debug register sets.
func (p *Process) PeekUser(tid int, addr uint64) (uint64, error) {
	return p.arch.PeekUser(tid, addr)
}

// PokeUser writes one word into the user area of tid.
func (p *Process) PokeUser(tid int, addr, word uint64) error {
	return p.arch.PokeUser(tid, addr, word)
}

// GetEventMsg retrieves the message of the last trace event of tid, e.g.
// the tid of a newly cloned thread.
func (p *Process) GetEventMsg(tid int) (uint, error) {
	return ptraceGetEventMsg(tid)
}

// Close drops all thread and breakpoint bookkeeping. It does not detach;
// use one of the detach variants first.
func (p *Process) Close() {
	p.FreeThreadList()
	p.FreeBreakpoints()
}
