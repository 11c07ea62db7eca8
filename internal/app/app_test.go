package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jgivc/nebula/internal/config"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}

	log, err := newLogger(buf, config.LogLevelWarn)
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")

	_, err = newLogger(buf, "verbose")
	require.Error(t, err)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	dataFile := filepath.Join(dir, "library.json")
	cfgPath := filepath.Join(dir, "config.yml")

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "steam", "steamapps"), 0o750))
	require.NoError(t, os.WriteFile(cfgPath, []byte("log_level: debug\nsteam:\n  root: "+filepath.Join(dir, "steam")+"\n"), 0o600))
	t.Setenv(config.EnvDataFile, dataFile)

	a := New()
	a.logOut = &bytes.Buffer{}

	srv, log, err := a.Open(context.Background(), cfgPath)
	require.NoError(t, err)
	require.NotNil(t, log)

	entries, err := srv.ListEntries(context.Background())
	require.NoError(t, err)
	require.Empty(t, entries)

	titles, err := srv.ListAvailableSteamTitles(context.Background())
	require.NoError(t, err)
	require.Empty(t, titles)

	require.Equal(t, dataFile, a.cfg.DataFile)
}
