package native

import (
	"testing"

	"github.com/stretchr/testify/require"
	sys "golang.org/x/sys/unix"
)

func TestIsGroupStop(t *testing.T) {
	// 4991 is the raw wait status of a SIGSTOP stop
	require.True(t, isGroupStop(sys.WaitStatus(4991)))

	// a SIGTRAP stop, the normal single-step result
	require.False(t, isGroupStop(sys.WaitStatus(0x57f)))

	// exit with status 0
	require.False(t, isGroupStop(sys.WaitStatus(0)))

	// terminated by SIGKILL
	require.False(t, isGroupStop(sys.WaitStatus(0x9)))
}
