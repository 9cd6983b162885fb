package main

import (
	"context"
	"path/filepath"
	"testing"

	"alertbridge/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	t.Setenv(envDataDir, "/var/lib/alertbridge")

	f, err := parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/alertbridge", f.dataDir)
	assert.False(t, f.once)

	f, err = parseFlags([]string{"-once", "-data-dir", "/tmp/ab", "-log-level", "debug", "-config", "c.yml"})
	require.NoError(t, err)
	assert.True(t, f.once)
	assert.Equal(t, "/tmp/ab", f.dataDir)
	assert.Equal(t, "debug", f.logLevel)
	assert.Equal(t, "c.yml", f.configPath)

	_, err = parseFlags([]string{"-bogus"})
	assert.Error(t, err)
}

func TestOpenJournal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Store.Path = ""
	db, err := openJournal(ctx, dir, cfg)
	require.NoError(t, err)
	assert.Nil(t, db)
	assert.Nil(t, journalLister(db))

	cfg.Store.Path = "journal.db"
	db, err = openJournal(ctx, dir, cfg)
	require.NoError(t, err)
	require.NotNil(t, db)
	defer db.Close()
	assert.NotNil(t, journalLister(db))
	assert.FileExists(t, filepath.Join(dir, "journal.db"))
}
