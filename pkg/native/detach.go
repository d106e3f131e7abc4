package native

import (
	sys "golang.org/x/sys/unix"
)

// DetachForKill detaches from every thread and kills it. Threads still
// running are stopped first so the detach can take effect. The live list
// keeps the main thread at the tail; it has to be processed last or the
// remaining threads could not be reaped.
func (p *Process) DetachForKill() error {
	for _, t := range p.threads {
		// a register read only succeeds on a stopped thread
		if regs, err := p.arch.GetRegs(t.ID); err != nil {
			if err := sys.Tgkill(p.pid, t.ID, sys.SIGSTOP); err != nil {
				p.log.Errorf("could not stop thread %d: %v", t.ID, err)
			}
			if _, _, err := waitpid(t.ID, 0); err != nil {
				p.log.Errorf("could not wait for thread %d: %v", t.ID, err)
			}
		} else {
			t.regs = regs
		}
		if err := ptraceDetach(t.ID, 0); err != nil {
			p.log.Errorf("ptrace detach failed for thread %d: %v", t.ID, err)
		}
		if err := sys.Tgkill(p.pid, t.ID, sys.SIGKILL); err != nil {
			p.log.Errorf("could not kill thread %d: %v", t.ID, err)
		}
	}
	_, _, err := waitpid(p.pid, 0)
	return err
}

// DetachForMigration flushes every thread's registers, freezes it with
// SIGSTOP and detaches, so that another debugger can attach to the frozen
// process. The main thread sits at the tail of the list and is detached
// last.
func (p *Process) DetachForMigration() {
	for _, t := range p.threads {
		// the caller may have edited the mirror, so probe with a register
		// write; failure means the thread is still running
		if err := p.arch.SetRegs(t.ID, t.regs); err != nil {
			_ = sys.Tgkill(p.pid, t.ID, sys.SIGSTOP)
			_, _, _ = waitpid(t.ID, 0)
			if err := p.arch.SetRegs(t.ID, t.regs); err != nil {
				p.log.Errorf("could not flush registers of thread %d: %v", t.ID, err)
			}
		}
		// keep the thread frozen across the reattach
		_ = sys.Tgkill(p.pid, t.ID, sys.SIGSTOP)
		if err := ptraceDetach(t.ID, 0); err != nil {
			p.log.Errorf("ptrace detach failed for thread %d: %v", t.ID, err)
		}
	}
}

// ReattachFromGDB attaches to every thread again after a migration detach
// and refreshes the register mirrors. The threads are still frozen by the
// SIGSTOPs delivered on the way out, so no wait is needed in between. The
// main thread is attached last.
func (p *Process) ReattachFromGDB() {
	for _, t := range p.threads {
		if err := ptraceAttach(t.ID); err != nil {
			p.log.Errorf("ptrace attach failed for thread %d: %v", t.ID, err)
		}
		if regs, err := p.arch.GetRegs(t.ID); err != nil {
			p.log.Errorf("could not fetch registers of thread %d: %v", t.ID, err)
		} else {
			t.regs = regs
		}
	}
}

// DetachAndCont performs a migration detach and then lets the whole
// process resume with a SIGCONT.
func (p *Process) DetachAndCont() {
	p.DetachForMigration()
	_ = sys.Kill(p.pid, sys.SIGCONT)
}
