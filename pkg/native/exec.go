package native

import (
	"encoding/binary"

	sys "golang.org/x/sys/unix"
)

// flushRegisters stores every live thread's register mirror back into the
// kernel, and returns the pending signal of tid (clearing it). Pass a tid
// of 0 when no thread is about to resume individually.
func (p *Process) flushRegisters(tid int) int {
	sig := 0
	for _, t := range p.threads {
		if err := p.arch.SetRegs(t.ID, t.regs); err != nil {
			p.log.Errorf("could not flush registers of thread %d: %v", t.ID, err)
		}
		if t.ID == tid {
			sig = t.signalToForward
			t.signalToForward = 0
		}
	}
	return sig
}

// prepareForRun is the fixed sequence executed before every resume: flush
// the register mirrors, step every thread parked on a software breakpoint
// address past it, step threads stopped on a hardware breakpoint past it
// where the architecture requires that, then write every enabled patch
// into tracee memory. It returns the last status reaped while stepping, or
// zero.
func (p *Process) prepareForRun() (sys.WaitStatus, error) {
	var status sys.WaitStatus

	p.flushRegisters(0)

	for _, t := range p.threads {
		ip := t.regs.PC()
		hit := false
		for _, b := range p.swBreakpoints {
			if b.Addr == ip {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}
		// step past the breakpoint before its patch goes back into memory
		if err := ptraceSingleStep(t.ID, 0); err != nil {
			return status, err
		}
		var err error
		if _, status, err = waitpid(t.ID, 0); err != nil {
			return status, err
		}
		if isGroupStop(status) {
			// the step raced with a pending group-stop, this only happens
			// in multithreaded tracees; reissue it once
			if err := ptraceSingleStep(t.ID, 0); err != nil {
				return status, err
			}
			if _, status, err = waitpid(t.ID, 0); err != nil {
				return status, err
			}
		}
	}

	if p.arch.StepsOverHWBreakpoints() {
		for _, t := range p.threads {
			for _, bp := range p.hwBreakpoints {
				if bp.Tid != t.ID || !bp.Enabled || !p.arch.HWBreakpointHit(bp) {
					continue
				}
				if err := p.arch.RemoveHWBreakpoint(bp); err != nil {
					return status, err
				}
				if err := ptraceSingleStep(t.ID, 0); err != nil {
					return status, err
				}
				var err error
				if _, status, err = waitpid(t.ID, 0); err != nil {
					return status, err
				}
				if err := p.arch.InstallHWBreakpoint(bp); err != nil {
					return status, err
				}
				break
			}
		}
	}

	for _, b := range p.swBreakpoints {
		if b.Enabled {
			if err := ptracePokeData(p.pid, b.Addr, b.PatchedInstruction); err != nil {
				p.bplog.Errorf("could not write breakpoint word at %#x: %v", b.Addr, err)
			}
		}
	}

	return status, nil
}

// restoreBreakpointWords puts the original instruction back at every
// enabled software breakpoint so that memory reads during a stop see the
// pristine image.
func (p *Process) restoreBreakpointWords() {
	for _, b := range p.swBreakpoints {
		if b.Enabled {
			if err := ptracePokeData(p.pid, b.Addr, b.Instruction); err != nil {
				p.bplog.Errorf("could not restore original word at %#x: %v", b.Addr, err)
			}
		}
	}
}

// ContAll resumes every live thread, forwarding and clearing each one's
// pending signal. The syscall tracing flag selects between a plain
// continue and one that stops at syscall entry and exit. The returned
// status is the one reaped by prepareForRun, or zero.
func (p *Process) ContAll() (sys.WaitStatus, error) {
	status, err := p.prepareForRun()
	if err != nil {
		return status, err
	}
	for _, t := range p.threads {
		sig := t.signalToForward
		t.signalToForward = 0
		var err error
		if p.traceSyscalls {
			err = ptraceSyscall(t.ID, sig)
		} else {
			err = ptraceCont(t.ID, sig)
		}
		if err != nil {
			p.log.Errorf("could not continue thread %d with signal %d: %v", t.ID, sig, err)
		}
	}
	return status, nil
}

// WaitAllAndUpdateRegs blocks until some thread of the tracee stops, then
// brings every other live thread into a stop as well: threads whose
// registers can still be read are already stopped, the rest get a targeted
// SIGSTOP and are reaped. Whatever other statuses are ready are drained
// without blocking. Finally every register mirror is refreshed and the
// original words of all enabled software breakpoints are restored. The
// chain of reaped statuses is returned, most recently reaped first.
func (p *Process) WaitAllAndUpdateRegs() ([]ThreadStatus, error) {
	pgid, err := sys.Getpgid(p.pid)
	if err != nil {
		return nil, err
	}
	wpid, status, err := waitpid(-pgid, 0)
	if err != nil {
		return nil, err
	}
	statuses := []ThreadStatus{{Tid: wpid, Status: status}}

	for _, t := range p.threads {
		if t.ID == wpid {
			continue
		}
		if regs, err := p.arch.GetRegs(t.ID); err == nil {
			// a register read only succeeds on a stopped thread, no
			// interrupt needed
			t.regs = regs
			continue
		}
		if err := sys.Tgkill(p.pid, t.ID, sys.SIGSTOP); err != nil {
			p.log.Errorf("could not stop thread %d: %v", t.ID, err)
			continue
		}
		tid, st, err := waitpid(t.ID, 0)
		if err != nil {
			p.log.Errorf("could not wait for thread %d: %v", t.ID, err)
			continue
		}
		// the status might carry useful information, keep it
		statuses = append([]ThreadStatus{{Tid: tid, Status: st}}, statuses...)
	}

	for {
		tid, st, err := waitpid(-pgid, sys.WNOHANG)
		if err != nil || tid <= 0 {
			break
		}
		statuses = append([]ThreadStatus{{Tid: tid, Status: st}}, statuses...)
	}

	for _, t := range p.threads {
		if regs, err := p.arch.GetRegs(t.ID); err == nil {
			t.regs = regs
		} else {
			p.log.Errorf("could not refresh registers of thread %d: %v", t.ID, err)
		}
	}

	p.restoreBreakpointWords()
	return statuses, nil
}

// SingleStep steps tid by one instruction, forwarding and clearing its
// pending signal; the caller reaps the resulting stop. On architectures
// where a thread stopped on a hardware breakpoint cannot step over it, the
// breakpoint is removed around the step and reinstalled.
func (p *Process) SingleStep(tid int) error {
	if p.thread(tid) == nil {
		return ErrNoSuchThread
	}
	sig := p.flushRegisters(tid)

	if p.arch.StepsOverHWBreakpoints() {
		for _, bp := range p.hwBreakpoints {
			if bp.Tid == tid && bp.Enabled && p.arch.HWBreakpointHit(bp) {
				if err := p.arch.RemoveHWBreakpoint(bp); err != nil {
					return err
				}
				err := ptraceSingleStep(tid, sig)
				if ierr := p.arch.InstallHWBreakpoint(bp); ierr != nil && err == nil {
					err = ierr
				}
				return err
			}
		}
	}
	return ptraceSingleStep(tid, sig)
}

// StepUntil single-steps tid until the program counter reaches addr or the
// step budget runs out; a maxSteps of -1 removes the bound. A step that
// leaves the program counter unchanged is a hardware breakpoint retry and
// does not consume budget.
func (p *Process) StepUntil(tid int, addr uint64, maxSteps int) error {
	t := p.thread(tid)
	if t == nil {
		return ErrNoSuchThread
	}
	p.flushRegisters(0)

	count := 0
	for maxSteps == -1 || count < maxSteps {
		if err := ptraceSingleStep(tid, 0); err != nil {
			return err
		}
		if _, _, err := waitpid(tid, 0); err != nil {
			return err
		}
		previousPC := t.regs.PC()
		regs, err := p.arch.GetRegs(tid)
		if err != nil {
			return err
		}
		t.regs = regs
		if t.regs.PC() == addr {
			break
		}
		if t.regs.PC() == previousPC {
			continue
		}
		count++
	}
	return nil
}

// SteppingFinish runs tid to the end of the current function: it
// single-steps while counting call and return instructions and stops when
// the nesting count drops to zero, then performs one more step to land
// after the return. Stepping ends early when the program counter freezes
// (a hardware breakpoint retry) or lands on a software breakpoint opcode,
// those stops belong to the caller. The original words of all enabled
// software breakpoints are restored on every exit path.
func (p *Process) SteppingFinish(tid int) error {
	if _, err := p.prepareForRun(); err != nil {
		return err
	}
	t := p.thread(tid)
	if t == nil {
		return ErrNoSuchThread
	}

	defer p.restoreBreakpointWords()

	nestedCalls := 1
	for {
		if err := ptraceSingleStep(tid, 0); err != nil {
			return err
		}
		if _, _, err := waitpid(tid, 0); err != nil {
			return err
		}
		previousPC := t.regs.PC()
		regs, err := p.arch.GetRegs(tid)
		if err != nil {
			return err
		}
		t.regs = regs
		currentPC := t.regs.PC()

		var window [8]byte
		if word, err := ptracePeekData(tid, currentPC); err == nil {
			binary.LittleEndian.PutUint64(window[:], word)
		}

		if currentPC == previousPC || p.arch.IsSWBreakpoint(window[:]) {
			return nil
		}

		if p.arch.IsCall(window[:]) {
			nestedCalls++
		} else if p.arch.IsRet(window[:]) {
			nestedCalls--
		}
		if nestedCalls == 0 {
			break
		}
	}

	// sitting on the return instruction, do the landing step
	if err := ptraceSingleStep(tid, 0); err != nil {
		return err
	}
	if _, _, err := waitpid(tid, 0); err != nil {
		return err
	}
	regs, err := p.arch.GetRegs(tid)
	if err != nil {
		return err
	}
	t.regs = regs
	return nil
}
