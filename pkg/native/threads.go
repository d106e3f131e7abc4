package native

import (
	"errors"

	sys "golang.org/x/sys/unix"
)

// ErrNoSuchThread is returned when a tid is not in the live thread list.
var ErrNoSuchThread = errors.New("no such thread")

// Thread mirrors one tracee thread. The register caches are authoritative
// between a stop and the next resume; the controller flushes them back to
// the kernel before resuming.
type Thread struct {
	ID int

	regs            Registers
	fpregs          FpRegisters
	signalToForward int // 0 = none, delivered and cleared on the next resume
}

// ThreadStatus is one (tid, wait status) pair reaped during a stop. The
// slice returned by WaitAllAndUpdateRegs is never retained across resumes.
type ThreadStatus struct {
	Tid    int
	Status sys.WaitStatus
}

// RegisterThread adds tid to the live list and fetches its initial general
// purpose registers. Registering a known tid is idempotent and returns the
// existing mirror.
func (p *Process) RegisterThread(tid int) (Registers, error) {
	if t := p.thread(tid); t != nil {
		return t.regs, nil
	}
	t := &Thread{ID: tid, fpregs: p.arch.NewFpRegs()}
	regs, err := p.arch.GetRegs(tid)
	if err != nil {
		// the thread may not have settled into a trace stop yet; keep a
		// zero mirror, the next wait refreshes it
		p.log.Errorf("could not fetch initial registers of thread %d: %v", tid, err)
		regs = p.arch.NewRegs()
	}
	t.regs = regs
	p.threads = append([]*Thread{t}, p.threads...)
	return t.regs, nil
}

// UnregisterThread moves tid to the dead list. The record stays allocated
// until Close so that statuses reaped earlier remain resolvable.
func (p *Process) UnregisterThread(tid int) error {
	for i, t := range p.threads {
		if t.ID == tid {
			p.threads = append(p.threads[:i], p.threads[i+1:]...)
			p.deadThreads = append(p.deadThreads, t)
			return nil
		}
	}
	return ErrNoSuchThread
}

func (p *Process) thread(tid int) *Thread {
	for _, t := range p.threads {
		if t.ID == tid {
			return t
		}
	}
	return nil
}

// Threads returns the tids of all live threads, head first.
func (p *Process) Threads() []int {
	tids := make([]int, len(p.threads))
	for i, t := range p.threads {
		tids[i] = t.ID
	}
	return tids
}

// Registers returns the cached general purpose register mirror of tid.
// Mutations through the concrete type reach the tracee at the next resume.
func (p *Process) Registers(tid int) (Registers, error) {
	t := p.thread(tid)
	if t == nil {
		return nil, ErrNoSuchThread
	}
	return t.regs, nil
}

// FpRegs returns the cached floating point mirror of tid.
func (p *Process) FpRegs(tid int) (FpRegisters, error) {
	t := p.thread(tid)
	if t == nil {
		return nil, ErrNoSuchThread
	}
	return t.fpregs, nil
}

// GetFpRegs refreshes the floating point mirror of tid from the kernel.
func (p *Process) GetFpRegs(tid int) error {
	t := p.thread(tid)
	if t == nil {
		return ErrNoSuchThread
	}
	return p.arch.GetFpRegs(t.ID, t.fpregs)
}

// SetFpRegs stores the floating point mirror of tid back into the kernel.
func (p *Process) SetFpRegs(tid int) error {
	t := p.thread(tid)
	if t == nil {
		return ErrNoSuchThread
	}
	return p.arch.SetFpRegs(t.ID, t.fpregs)
}

// SetSignalToForward arranges for sig to be delivered to tid when it next
// resumes. A sig of 0 clears a pending delivery.
func (p *Process) SetSignalToForward(tid, sig int) error {
	t := p.thread(tid)
	if t == nil {
		return ErrNoSuchThread
	}
	t.signalToForward = sig
	return nil
}

// FreeThreadList drops every live and dead thread record.
func (p *Process) FreeThreadList() {
	p.threads = nil
	p.deadThreads = nil
}
