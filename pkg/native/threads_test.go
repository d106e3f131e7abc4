package native

import (
	"testing"

	"github.com/stretchr/testify/require"
	sys "golang.org/x/sys/unix"
)

func TestRegisterThreadFetchesInitialRegisters(t *testing.T) {
	arch := newFakeArch()
	arch.pcByTid[100] = 0x401000
	p := newFakeProcess(100, arch)

	regs, err := p.RegisterThread(100)
	require.NoError(t, err)
	require.Equal(t, uint64(0x401000), regs.PC())
}

func TestRegisterThreadIdempotent(t *testing.T) {
	arch := newFakeArch()
	p := newFakeProcess(100, arch)

	first, err := p.RegisterThread(100)
	require.NoError(t, err)
	first.SetPC(0xbeef)

	again, err := p.RegisterThread(100)
	require.NoError(t, err)
	require.Equal(t, uint64(0xbeef), again.PC())
	require.Len(t, p.threads, 1)
}

func TestThreadListKeepsMainAtTail(t *testing.T) {
	arch := newFakeArch()
	p := newFakeProcess(100, arch)

	// the main thread is registered first, clones as they appear
	for _, tid := range []int{100, 101, 102, 103} {
		_, err := p.RegisterThread(tid)
		require.NoError(t, err)
	}

	require.Equal(t, []int{103, 102, 101, 100}, p.Threads())
}

func TestUnregisterThreadMovesToGraveyard(t *testing.T) {
	arch := newFakeArch()
	p := newFakeProcess(100, arch)
	_, _ = p.RegisterThread(100)
	_, _ = p.RegisterThread(101)

	require.NoError(t, p.UnregisterThread(101))
	require.Equal(t, []int{100}, p.Threads())
	require.Len(t, p.deadThreads, 1)
	require.Equal(t, 101, p.deadThreads[0].ID)

	require.ErrorIs(t, p.UnregisterThread(101), ErrNoSuchThread)

	p.FreeThreadList()
	require.Empty(t, p.threads)
	require.Empty(t, p.deadThreads)
}

func TestRegisterThreadSurvivesRegisterFetchFailure(t *testing.T) {
	arch := newFakeArch()
	arch.failGetRegs[101] = true
	p := newFakeProcess(100, arch)

	regs, err := p.RegisterThread(101)
	require.NoError(t, err)
	require.Equal(t, uint64(0), regs.PC())
	require.Equal(t, []int{101}, p.Threads())
}

func TestRegistersLookup(t *testing.T) {
	arch := newFakeArch()
	arch.pcByTid[100] = 0x1234
	p := newFakeProcess(100, arch)
	_, _ = p.RegisterThread(100)

	regs, err := p.Registers(100)
	require.NoError(t, err)
	require.Equal(t, uint64(0x1234), regs.PC())

	_, err = p.Registers(999)
	require.ErrorIs(t, err, ErrNoSuchThread)

	_, err = p.FpRegs(999)
	require.ErrorIs(t, err, ErrNoSuchThread)

	fp, err := p.FpRegs(100)
	require.NoError(t, err)
	require.Equal(t, 512, fp.Size())
}

func TestSetSignalToForward(t *testing.T) {
	arch := newFakeArch()
	p := newFakeProcess(100, arch)
	_, _ = p.RegisterThread(100)

	require.NoError(t, p.SetSignalToForward(100, int(sys.SIGUSR1)))
	require.Equal(t, int(sys.SIGUSR1), p.thread(100).signalToForward)

	require.NoError(t, p.SetSignalToForward(100, 0))
	require.Equal(t, 0, p.thread(100).signalToForward)

	require.ErrorIs(t, p.SetSignalToForward(999, 1), ErrNoSuchThread)
}
