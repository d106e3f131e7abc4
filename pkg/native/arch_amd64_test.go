//go:build linux && amd64
// +build linux,amd64

package native

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAMD64PatchBreakpointWord(t *testing.T) {
	a := &amd64Arch{}
	require.Equal(t, uint64(0x11223344556677cc), a.PatchBreakpointWord(0x1122334455667788))
	require.Equal(t, uint64(0xcc), a.PatchBreakpointWord(0))
}

func TestAMD64IsSWBreakpoint(t *testing.T) {
	a := &amd64Arch{}
	require.True(t, a.IsSWBreakpoint([]byte{0xcc, 0, 0, 0, 0, 0, 0, 0}))
	require.False(t, a.IsSWBreakpoint([]byte{0xc3, 0, 0, 0, 0, 0, 0, 0}))
	require.False(t, a.IsSWBreakpoint(nil))
}

func TestAMD64IsCall(t *testing.T) {
	a := &amd64Arch{}
	for _, tc := range []struct {
		name   string
		window []byte
		want   bool
	}{
		{"call rel32", []byte{0xe8, 0x10, 0x00, 0x00, 0x00, 0x90, 0x90, 0x90}, true},
		{"call rax", []byte{0xff, 0xd0, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90}, true},
		{"call [rax]", []byte{0xff, 0x10, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90}, true},
		{"ret", []byte{0xc3, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90}, false},
		{"nop", []byte{0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90}, false},
		{"jmp rel32", []byte{0xe9, 0x10, 0x00, 0x00, 0x00, 0x90, 0x90, 0x90}, false},
		{"truncated", []byte{0xe8}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, a.IsCall(tc.window))
		})
	}
}

func TestAMD64IsRet(t *testing.T) {
	a := &amd64Arch{}
	for _, tc := range []struct {
		name   string
		window []byte
		want   bool
	}{
		{"ret", []byte{0xc3, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90}, true},
		{"ret imm16", []byte{0xc2, 0x08, 0x00, 0x90, 0x90, 0x90, 0x90, 0x90}, true},
		{"retf", []byte{0xcb, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90}, true},
		{"retf imm16", []byte{0xca, 0x08, 0x00, 0x90, 0x90, 0x90, 0x90, 0x90}, true},
		{"call rel32", []byte{0xe8, 0x10, 0x00, 0x00, 0x00, 0x90, 0x90, 0x90}, false},
		{"nop", []byte{0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, a.IsRet(tc.window))
		})
	}
}
