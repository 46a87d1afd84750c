package profiling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartWritesProfiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "prof")

	stop, err := Start(dir, 0)
	require.NoError(t, err)

	stop()
	stop()

	for _, name := range []string{"cpu.prof", "trace.prof", "memory.prof"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.False(t, info.IsDir())
	}
}
