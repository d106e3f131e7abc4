package amd64util

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unsafe"
)

// FpFlavor selects the floating point register bank layout used when
// talking to the kernel. The transport payload grows with each extension.
type FpFlavor int

const (
	FpLegacy FpFlavor = iota // x87 and SSE state only
	FpAVX                    // adds the YMM upper halves
	FpAVX512                 // adds ZMM state and the high ZMM registers
)

// XstateSize returns the size in bytes of the XSAVE transport payload for
// the flavor.
func (f FpFlavor) XstateSize() int {
	switch f {
	case FpAVX:
		return _XSAVE_AVX_SIZE
	case FpAVX512:
		return _XSAVE_AVX512_SIZE
	default:
		return _XSAVE_LEGACY_SIZE
	}
}

func (f FpFlavor) String() string {
	switch f {
	case FpAVX:
		return "avx"
	case FpAVX512:
		return "avx512"
	default:
		return "legacy"
	}
}

// AMD64PtraceFpRegs tracks user_fpregs_struct in /usr/include/x86_64-linux-gnu/sys/user.h
type AMD64PtraceFpRegs struct {
	Cwd      uint16
	Swd      uint16
	Ftw      uint16
	Fop      uint16
	Rip      uint64
	Rdp      uint64
	Mxcsr    uint32
	MxcrMask uint32
	StSpace  [32]uint32
	XmmSpace [256]byte
	Padding  [24]uint32
}

// AMD64Xstate represents the amd64 XSAVE area. See Section 13.1 (and
// following) of Intel® 64 and IA-32 Architectures Software Developer's
// Manual, Volume 1: Basic Architecture.
type AMD64Xstate struct {
	AMD64PtraceFpRegs
	Xsave       []byte // raw xsave area, nil when the legacy transport is used
	AvxState    bool   // contains AVX state
	YmmSpace    [256]byte
	Avx512State bool // contains AVX512 state
	ZmmSpace    [512]byte
}

// Size returns the byte length of the kernel transport payload.
func (xsave *AMD64Xstate) Size() int {
	if xsave.Xsave != nil {
		return len(xsave.Xsave)
	}
	return int(unsafe.Sizeof(xsave.AMD64PtraceFpRegs))
}

const (
	_XSAVE_LEGACY_SIZE = 512
	_XSAVE_AVX_SIZE    = 896
	_XSAVE_AVX512_SIZE = 2696

	_XSAVE_HEADER_START            = 512
	_XSAVE_HEADER_LEN              = 64
	_XSAVE_EXTENDED_REGION_START   = 576
	_XSAVE_AVX512_ZMM_REGION_START = 1152
)

// The kernel hands the register banks over as raw byte blobs whose layout
// is fixed by the hardware. The structs below exist so the sizes are
// checked when this package is compiled.
type xsaveAvxArea struct {
	legacy AMD64PtraceFpRegs
	header [_XSAVE_HEADER_LEN]byte
	ymm    [256]byte
	_      [64]byte
}

type xsaveAvx512Area struct {
	legacy   AMD64PtraceFpRegs
	header   [_XSAVE_HEADER_LEN]byte
	ymm      [256]byte
	_        [320]byte // MPX state and padding up to the ZMM_Hi256 region
	zmmHi256 [512]byte
	hi16Zmm  [1024]byte
	_        [8]byte
}

var _ = [1]struct{}{}[unsafe.Sizeof(AMD64PtraceFpRegs{})-_XSAVE_LEGACY_SIZE]
var _ = [1]struct{}{}[unsafe.Sizeof(xsaveAvxArea{})-_XSAVE_AVX_SIZE]
var _ = [1]struct{}{}[unsafe.Sizeof(xsaveAvx512Area{})-_XSAVE_AVX512_SIZE]

// AMD64XstateRead reads a byte array containing an XSAVE area into regset.
// If readLegacy is true regset.AMD64PtraceFpRegs will be filled with the
// contents of the legacy region of the XSAVE area. Extended regions are
// decoded in flavor order and decoding stops at the first one that is
// absent from XSTATE_BV or does not fit in the payload.
// See Section 13.1 (and following) of Intel® 64 and IA-32 Architectures
// Software Developer's Manual, Volume 1: Basic Architecture.
func AMD64XstateRead(xstateargs []byte, readLegacy bool, regset *AMD64Xstate) error {
	if len(xstateargs) < _XSAVE_HEADER_START {
		return nil
	}
	if readLegacy {
		rdr := bytes.NewReader(xstateargs[:_XSAVE_HEADER_START])
		if err := binary.Read(rdr, binary.LittleEndian, &regset.AMD64PtraceFpRegs); err != nil {
			return err
		}
	}
	if len(xstateargs) <= _XSAVE_HEADER_START+_XSAVE_HEADER_LEN {
		return nil
	}
	header := xstateargs[_XSAVE_HEADER_START:]
	xstateBv := binary.LittleEndian.Uint64(header[:8])
	xcompBv := binary.LittleEndian.Uint64(header[8:16])

	if xcompBv&(1<<63) != 0 {
		// compact format not supported
		return nil
	}

	regions := []struct {
		bit     uint // component bit in XSTATE_BV
		start   int
		dst     []byte
		present *bool
	}{
		{2, _XSAVE_EXTENDED_REGION_START, regset.YmmSpace[:], &regset.AvxState},
		{6, _XSAVE_AVX512_ZMM_REGION_START, regset.ZmmSpace[:], &regset.Avx512State},
	}
	for _, r := range regions {
		if xstateBv&(1<<r.bit) == 0 || len(xstateargs) < r.start+len(r.dst) {
			break
		}
		*r.present = true
		copy(r.dst, xstateargs[r.start:])
	}
	return nil
}

// AMD64XstateWrite serializes the legacy region of regset, and the YMM and
// ZMM regions that are marked present and fit in the raw area, back into
// the raw area so that a subsequent SETREGSET stores what the caller
// changed.
func AMD64XstateWrite(regset *AMD64Xstate) error {
	if regset.Xsave == nil {
		return fmt.Errorf("no xsave area to write")
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &regset.AMD64PtraceFpRegs); err != nil {
		return err
	}
	copy(regset.Xsave[:_XSAVE_HEADER_START], buf.Bytes())
	if regset.AvxState && len(regset.Xsave) >= _XSAVE_EXTENDED_REGION_START+len(regset.YmmSpace) {
		copy(regset.Xsave[_XSAVE_EXTENDED_REGION_START:], regset.YmmSpace[:])
	}
	if regset.Avx512State && len(regset.Xsave) >= _XSAVE_AVX512_ZMM_REGION_START+len(regset.ZmmSpace) {
		copy(regset.Xsave[_XSAVE_AVX512_ZMM_REGION_START:], regset.ZmmSpace[:])
	}
	return nil
}
