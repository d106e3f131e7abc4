//go:build linux && arm64
// +build linux,arm64

package native

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestARM64PatchBreakpointWord(t *testing.T) {
	a := &arm64Arch{}
	require.Equal(t, uint64(0x11223344d4200000), a.PatchBreakpointWord(0x1122334455667788))
}

func TestARM64IsSWBreakpoint(t *testing.T) {
	a := &arm64Arch{}
	require.True(t, a.IsSWBreakpoint([]byte{0x00, 0x00, 0x20, 0xd4, 0, 0, 0, 0}))
	require.False(t, a.IsSWBreakpoint([]byte{0x1f, 0x20, 0x03, 0xd5, 0, 0, 0, 0})) // nop
	require.False(t, a.IsSWBreakpoint([]byte{0x00, 0x00}))
}

func TestARM64IsCall(t *testing.T) {
	a := &arm64Arch{}
	for _, tc := range []struct {
		name   string
		window []byte
		want   bool
	}{
		{"bl", []byte{0x00, 0x00, 0x00, 0x94, 0, 0, 0, 0}, true},
		{"blr x1", []byte{0x20, 0x00, 0x3f, 0xd6, 0, 0, 0, 0}, true},
		{"ret", []byte{0xc0, 0x03, 0x5f, 0xd6, 0, 0, 0, 0}, false},
		{"nop", []byte{0x1f, 0x20, 0x03, 0xd5, 0, 0, 0, 0}, false},
		{"b", []byte{0x00, 0x00, 0x00, 0x14, 0, 0, 0, 0}, false},
		{"truncated", []byte{0x00, 0x00}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, a.IsCall(tc.window))
		})
	}
}

func TestARM64IsRet(t *testing.T) {
	a := &arm64Arch{}
	require.True(t, a.IsRet([]byte{0xc0, 0x03, 0x5f, 0xd6, 0, 0, 0, 0}))
	require.False(t, a.IsRet([]byte{0x00, 0x00, 0x00, 0x94, 0, 0, 0, 0}))
}

func TestHWDebugNoteType(t *testing.T) {
	require.Equal(t, uintptr(_NT_ARM_HW_BREAK), hwDebugNoteType(HWExecute))
	require.Equal(t, uintptr(_NT_ARM_HW_WATCH), hwDebugNoteType(HWWrite))
	require.Equal(t, uintptr(_NT_ARM_HW_WATCH), hwDebugNoteType(HWReadWrite))
}

func TestHWDebugCondition(t *testing.T) {
	require.Equal(t, uint64(0), hwDebugCondition(HWExecute))
	require.Equal(t, uint64(2), hwDebugCondition(HWWrite))
	require.Equal(t, uint64(3), hwDebugCondition(HWReadWrite))
}

func TestHWDebugStateSlots(t *testing.T) {
	words := make([]uint64, maxHWDebugSlots*2+1)
	words[0] = 6 // slot count reported by dbg_info
	state := &hwDebugState{num: 6, words: words[:6*2+1]}

	state.set(2, 0x1000, 0x1e5)
	require.Equal(t, uint64(0x1000), state.addr(2))
	require.Equal(t, uint64(0x1e5), state.ctrl(2))
	require.Equal(t, uint64(0), state.addr(3))
}
