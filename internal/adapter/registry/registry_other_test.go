//go:build !windows

package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHomeRoots(t *testing.T) {
	require.Equal(t, []string{"/Users/u/Library/Application Support/Steam"}, homeRoots("darwin", "/Users/u"))
	require.Contains(t, homeRoots("linux", "/home/u"), "/home/u/.steam/steam")
	require.Contains(t, homeRoots("linux", "/home/u"), "/home/u/.local/share/Steam")
}
