package native

import (
	"errors"
	"sort"
)

var (
	// ErrNoSuchBreakpoint is returned when no record matches the given
	// address (and thread, for hardware breakpoints).
	ErrNoSuchBreakpoint = errors.New("no such breakpoint")
	// ErrBreakpointExists is returned when a hardware breakpoint is already
	// registered for the same (tid, address) pair.
	ErrBreakpointExists = errors.New("breakpoint already registered")
	// ErrHWBreakpointsExhausted is returned when no debug slot is free.
	ErrHWBreakpointsExhausted = errors.New("hardware breakpoints exhausted")
)

// SoftwareBreakpoint is one patched instruction word. While the tracee
// runs the patched word is in memory; at every stop the original word is
// restored so that reads of tracee memory see the pristine image.
type SoftwareBreakpoint struct {
	Addr               uint64
	Instruction        uint64 // original memory word
	PatchedInstruction uint64
	Enabled            bool
}

// HWBreakpointKind is the condition a debug slot fires on.
type HWBreakpointKind string

const (
	HWExecute   HWBreakpointKind = "x"
	HWWrite     HWBreakpointKind = "w"
	HWReadWrite HWBreakpointKind = "rw"
)

// HardwareBreakpoint is one reserved debug slot on one thread.
type HardwareBreakpoint struct {
	Addr    uint64
	Tid     int
	Kind    HWBreakpointKind
	Len     int // 1, 2, 4 or 8; execute breakpoints are coerced to 4 on arm64
	Enabled bool
}

// RegisterBreakpoint patches the breakpoint opcode into the tracee at addr
// and records it. Registering an already known address only re-enables the
// record, the memory word saved the first time stays authoritative.
func (p *Process) RegisterBreakpoint(addr uint64) error {
	for _, b := range p.swBreakpoints {
		if b.Addr == addr {
			b.Enabled = true
			return nil
		}
	}

	word, err := ptracePeekData(p.pid, addr)
	if err != nil {
		return err
	}
	patched := p.arch.PatchBreakpointWord(word)
	if err := ptracePokeData(p.pid, addr, patched); err != nil {
		return err
	}
	p.insertSWBreakpoint(&SoftwareBreakpoint{
		Addr:               addr,
		Instruction:        word,
		PatchedInstruction: patched,
		Enabled:            true,
	})
	return nil
}

// insertSWBreakpoint keeps the table sorted by ascending address so that
// overlapping breakpoints cannot save each other's patched bytes as
// original memory.
func (p *Process) insertSWBreakpoint(b *SoftwareBreakpoint) {
	i := sort.Search(len(p.swBreakpoints), func(i int) bool {
		return p.swBreakpoints[i].Addr > b.Addr
	})
	p.swBreakpoints = append(p.swBreakpoints, nil)
	copy(p.swBreakpoints[i+1:], p.swBreakpoints[i:])
	p.swBreakpoints[i] = b
}

// UnregisterBreakpoint drops the record at addr. The patched bytes are NOT
// restored. Every wait puts back the original word of each enabled
// breakpoint, so after a wait memory holds the original word; the patch
// written by RegisterBreakpoint during the current stop stays in memory
// unless the original word is rewritten through PokeData.
// Unregistering an unknown address is a no-op.
func (p *Process) UnregisterBreakpoint(addr uint64) {
	for i, b := range p.swBreakpoints {
		if b.Addr == addr {
			p.swBreakpoints = append(p.swBreakpoints[:i], p.swBreakpoints[i+1:]...)
			return
		}
	}
}

// EnableBreakpoint marks the record at addr enabled. Memory is not touched
// here; the patch is applied on the next resume.
func (p *Process) EnableBreakpoint(addr uint64) error {
	for _, b := range p.swBreakpoints {
		if b.Addr == addr {
			b.Enabled = true
			return nil
		}
	}
	return ErrNoSuchBreakpoint
}

// DisableBreakpoint marks the record at addr disabled. Memory is not
// touched here; the next resume does not write the patch. A patch already
// in memory, such as the one RegisterBreakpoint writes, stays there: the
// restore at the next stop only covers enabled breakpoints.
func (p *Process) DisableBreakpoint(addr uint64) error {
	for _, b := range p.swBreakpoints {
		if b.Addr == addr {
			b.Enabled = false
			return nil
		}
	}
	return ErrNoSuchBreakpoint
}

// SoftwareBreakpoints returns the table in address order.
func (p *Process) SoftwareBreakpoints() []*SoftwareBreakpoint {
	return p.swBreakpoints
}

// FreeBreakpoints drops both breakpoint tables without touching the tracee.
func (p *Process) FreeBreakpoints() {
	p.swBreakpoints = nil
	p.hwBreakpoints = nil
}

// RegisterHWBreakpoint reserves and immediately programs a free debug slot
// of tid. A second registration for the same (tid, addr) pair is rejected;
// when no slot is free the registration fails with
// ErrHWBreakpointsExhausted and already programmed slots are untouched.
func (p *Process) RegisterHWBreakpoint(tid int, addr uint64, kind HWBreakpointKind, length int) error {
	for _, b := range p.hwBreakpoints {
		if b.Addr == addr && b.Tid == tid {
			return ErrBreakpointExists
		}
	}
	bp := &HardwareBreakpoint{Addr: addr, Tid: tid, Kind: kind, Len: length, Enabled: true}
	if err := p.arch.InstallHWBreakpoint(bp); err != nil {
		return err
	}
	p.hwBreakpoints = append([]*HardwareBreakpoint{bp}, p.hwBreakpoints...)
	return nil
}

// UnregisterHWBreakpoint clears the debug slot if the record is enabled
// and always drops the record.
func (p *Process) UnregisterHWBreakpoint(tid int, addr uint64) error {
	for i, b := range p.hwBreakpoints {
		if b.Addr == addr && b.Tid == tid {
			if b.Enabled {
				if err := p.arch.RemoveHWBreakpoint(b); err != nil {
					p.bplog.Errorf("could not clear debug slot of breakpoint %#x on thread %d: %v", addr, tid, err)
				}
			}
			p.hwBreakpoints = append(p.hwBreakpoints[:i], p.hwBreakpoints[i+1:]...)
			return nil
		}
	}
	return ErrNoSuchBreakpoint
}

// EnableHWBreakpoint programs the slot again if the record was disabled.
func (p *Process) EnableHWBreakpoint(tid int, addr uint64) error {
	for _, b := range p.hwBreakpoints {
		if b.Addr == addr && b.Tid == tid {
			if !b.Enabled {
				if err := p.arch.InstallHWBreakpoint(b); err != nil {
					return err
				}
			}
			b.Enabled = true
			return nil
		}
	}
	return ErrNoSuchBreakpoint
}

// DisableHWBreakpoint clears the slot without dropping the record.
func (p *Process) DisableHWBreakpoint(tid int, addr uint64) error {
	for _, b := range p.hwBreakpoints {
		if b.Addr == addr && b.Tid == tid {
			if b.Enabled {
				if err := p.arch.RemoveHWBreakpoint(b); err != nil {
					return err
				}
			}
			b.Enabled = false
			return nil
		}
	}
	return ErrNoSuchBreakpoint
}

// HitHWBreakpoint returns the address of the first hardware breakpoint
// owned by tid that caused the thread's current stop, or 0 when none did.
func (p *Process) HitHWBreakpoint(tid int) uint64 {
	for _, b := range p.hwBreakpoints {
		if b.Tid == tid && p.arch.HWBreakpointHit(b) {
			return b.Addr
		}
	}
	return 0
}

// RemainingHWBreakpointCount reports the execute slot count of tid. On
// amd64 it is the number of slots from the first free one to the last; on
// arm64 it is the total number of breakpoint slots the kernel reports, not
// reduced by the slots in use.
func (p *Process) RemainingHWBreakpointCount(tid int) (int, error) {
	return p.arch.RemainingHWBreakpointCount(tid)
}

// RemainingHWWatchpointCount reports the watch slot count of tid. On amd64
// the four slots are shared, so this is the same value as
// RemainingHWBreakpointCount; only arm64 counts the two kinds separately,
// and there it is the total number of watchpoint slots the kernel reports,
// not reduced by the slots in use.
func (p *Process) RemainingHWWatchpointCount(tid int) (int, error) {
	return p.arch.RemainingHWWatchpointCount(tid)
}
