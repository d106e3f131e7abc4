package amd64util

import (
	"errors"
	"fmt"
)

// ErrHWBreakpointsExhausted is returned when all four address slots of the
// debug register file are in use.
var ErrHWBreakpointsExhausted = errors.New("hardware breakpoints exhausted")

// DebugRegisters represents the x86 debug registers described in the Intel
// 64 and IA-32 Architectures Software Developer's Manual, Vol. 3B, section
// 17.2
type DebugRegisters struct {
	pAddrs     [4]*uint64
	pDR6, pDR7 *uint64
	Dirty      bool
}

func NewDebugRegisters(pDR0, pDR1, pDR2, pDR3, pDR6, pDR7 *uint64) *DebugRegisters {
	return &DebugRegisters{
		pAddrs: [4]*uint64{pDR0, pDR1, pDR2, pDR3},
		pDR6:   pDR6,
		pDR7:   pDR7,
		Dirty:  false,
	}
}

func lenrwBitsOffset(idx uint8) uint8 {
	return 16 + idx*4
}

func enableBitOffset(idx uint8) uint8 {
	return idx * 2
}

// FreeSlot returns the index of the first address slot that holds no
// address. Slots are allocated first-fit.
func (drs *DebugRegisters) FreeSlot() (uint8, error) {
	for idx := uint8(0); idx < 4; idx++ {
		if *(drs.pAddrs[idx]) == 0 {
			return idx, nil
		}
	}
	return 0, ErrHWBreakpointsExhausted
}

// FindSlot returns the index of the slot that holds addr.
func (drs *DebugRegisters) FindSlot(addr uint64) (uint8, bool) {
	for idx := uint8(0); idx < 4; idx++ {
		if *(drs.pAddrs[idx]) == addr {
			return idx, true
		}
	}
	return 0, false
}

// SetBreakpoint programs the address slot at index 'idx' with the specified
// address, condition and size. Condition is encoded by the read/write pair:
// neither set means an execute breakpoint, write alone a write watchpoint,
// both a read-write watchpoint.
func (drs *DebugRegisters) SetBreakpoint(idx uint8, addr uint64, read, write bool, sz int) error {
	if int(idx) >= len(drs.pAddrs) {
		return ErrHWBreakpointsExhausted
	}
	if read && !write {
		return errors.New("break on read only not supported")
	}

	*(drs.pAddrs[idx]) = addr
	var lenrw uint64
	if write {
		lenrw |= 0x1
	}
	if read {
		lenrw |= 0x2
	}
	switch sz {
	case 1:
		// already ok
	case 2:
		lenrw |= 0x1 << 2
	case 4:
		lenrw |= 0x3 << 2
	case 8:
		lenrw |= 0x2 << 2
	default:
		return fmt.Errorf("data breakpoint of size %d not supported", sz)
	}
	*(drs.pDR7) &^= (0xf << lenrwBitsOffset(idx)) // clear old settings
	*(drs.pDR7) |= lenrw << lenrwBitsOffset(idx)
	*(drs.pDR7) |= 1 << enableBitOffset(idx) // local enable
	drs.Dirty = true
	return nil
}

// ClearBreakpoint disables the slot at index 'idx' and drops its address so
// that first-fit allocation can reuse it. If the slot was already clear it
// does nothing.
func (drs *DebugRegisters) ClearBreakpoint(idx uint8) {
	if *(drs.pDR7)&(1<<enableBitOffset(idx)) == 0 && *(drs.pAddrs[idx]) == 0 {
		return
	}
	*(drs.pDR7) &^= (0xf << lenrwBitsOffset(idx))
	*(drs.pDR7) &^= (1 << enableBitOffset(idx))
	*(drs.pAddrs[idx]) = 0
	drs.Dirty = true
}

// Addr returns the address held by the slot at index 'idx'.
func (drs *DebugRegisters) Addr(idx uint8) uint64 {
	return *(drs.pAddrs[idx])
}

// HitIndex decodes the low four bits of DR6 into the index of the slot that
// triggered the last debug exception. The condition bits are left untouched,
// hit lookups must stay valid for the whole stop.
func (drs *DebugRegisters) HitIndex() (uint8, bool) {
	for idx := uint8(0); idx < 4; idx++ {
		if *(drs.pDR6)&(1<<idx) != 0 {
			return idx, true
		}
	}
	return 0, false
}

// RemainingCount reports how many address slots are still free, counting
// from the first free slot onward the way first-fit allocation fills them.
func (drs *DebugRegisters) RemainingCount() int {
	idx := uint8(0)
	for ; idx < 4; idx++ {
		if *(drs.pAddrs[idx]) == 0 {
			break
		}
	}
	return int(4 - idx)
}
