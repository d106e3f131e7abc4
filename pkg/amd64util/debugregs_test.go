package amd64util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDebugRegisters() (*DebugRegisters, []uint64) {
	regs := make([]uint64, 8)
	drs := NewDebugRegisters(&regs[0], &regs[1], &regs[2], &regs[3], &regs[6], &regs[7])
	return drs, regs
}

func TestSetBreakpointEncoding(t *testing.T) {
	for _, tc := range []struct {
		name        string
		read, write bool
		sz          int
		wantLenrw   uint64
	}{
		{"execute", false, false, 1, 0x0},
		{"write-1", false, true, 1, 0x1},
		{"write-2", false, true, 2, 0x5},
		{"write-8", false, true, 8, 0x9},
		{"rw-4", true, true, 4, 0xf},
	} {
		t.Run(tc.name, func(t *testing.T) {
			drs, regs := newTestDebugRegisters()
			require.NoError(t, drs.SetBreakpoint(1, 0x1000, tc.read, tc.write, tc.sz))
			require.Equal(t, uint64(0x1000), regs[1])
			require.Equal(t, tc.wantLenrw, (regs[7]>>20)&0xf) // lenrw field of slot 1
			require.Equal(t, uint64(1), (regs[7]>>2)&1)       // local enable of slot 1
			require.True(t, drs.Dirty)
		})
	}
}

func TestSetBreakpointBadSize(t *testing.T) {
	drs, _ := newTestDebugRegisters()
	require.Error(t, drs.SetBreakpoint(0, 0x1000, false, true, 3))
}

func TestSetBreakpointReadOnly(t *testing.T) {
	drs, _ := newTestDebugRegisters()
	require.Error(t, drs.SetBreakpoint(0, 0x1000, true, false, 1))
}

func TestFreeSlotFirstFit(t *testing.T) {
	drs, _ := newTestDebugRegisters()

	for i := 0; i < 4; i++ {
		idx, err := drs.FreeSlot()
		require.NoError(t, err)
		require.Equal(t, uint8(i), idx)
		require.NoError(t, drs.SetBreakpoint(idx, 0x1000+uint64(i)*8, false, true, 8))
	}

	_, err := drs.FreeSlot()
	require.ErrorIs(t, err, ErrHWBreakpointsExhausted)

	// clearing a middle slot frees it for the next scan
	drs.ClearBreakpoint(2)
	idx, err := drs.FreeSlot()
	require.NoError(t, err)
	require.Equal(t, uint8(2), idx)
}

func TestFindSlot(t *testing.T) {
	drs, _ := newTestDebugRegisters()
	require.NoError(t, drs.SetBreakpoint(3, 0xdeadbeef, false, true, 1))

	idx, ok := drs.FindSlot(0xdeadbeef)
	require.True(t, ok)
	require.Equal(t, uint8(3), idx)
	require.Equal(t, uint64(0xdeadbeef), drs.Addr(3))

	_, ok = drs.FindSlot(0xcafe)
	require.False(t, ok)
}

func TestClearBreakpoint(t *testing.T) {
	drs, regs := newTestDebugRegisters()
	require.NoError(t, drs.SetBreakpoint(0, 0x1000, true, true, 4))
	drs.Dirty = false

	drs.ClearBreakpoint(0)
	require.True(t, drs.Dirty)
	require.Equal(t, uint64(0), regs[0])
	require.Equal(t, uint64(0), regs[7]&1)          // local enable gone
	require.Equal(t, uint64(0), (regs[7]>>16)&0xf) // lenrw gone

	drs.Dirty = false
	drs.ClearBreakpoint(0) // already clear, no-op
	require.False(t, drs.Dirty)
}

func TestHitIndex(t *testing.T) {
	drs, regs := newTestDebugRegisters()

	_, ok := drs.HitIndex()
	require.False(t, ok)

	regs[6] = 0x4 // DR6 bit 2
	idx, ok := drs.HitIndex()
	require.True(t, ok)
	require.Equal(t, uint8(2), idx)

	// the condition bits must survive repeated lookups within one stop
	idx, ok = drs.HitIndex()
	require.True(t, ok)
	require.Equal(t, uint8(2), idx)
}

func TestRemainingCount(t *testing.T) {
	drs, _ := newTestDebugRegisters()
	require.Equal(t, 4, drs.RemainingCount())

	require.NoError(t, drs.SetBreakpoint(0, 0x1000, false, true, 1))
	require.Equal(t, 3, drs.RemainingCount())

	require.NoError(t, drs.SetBreakpoint(1, 0x2000, false, true, 1))
	require.NoError(t, drs.SetBreakpoint(2, 0x3000, false, true, 1))
	require.NoError(t, drs.SetBreakpoint(3, 0x4000, false, true, 1))
	require.Equal(t, 0, drs.RemainingCount())
}
