package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"kenny/internal/config"
	"kenny/internal/engine"
)

func setTestConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	c := config.DefaultConfig()
	c.Store.Path = filepath.Join(dir, "kenny.db")
	c.Audit.Path = filepath.Join(dir, "audit", "events.ndjson")
	c.Embedding.Provider = "ollama"
	cfg = c
}

func TestRunInitReportsVersion(t *testing.T) {
	setTestConfig(t)
	require.NoError(t, runInit(&cobra.Command{}, nil))
}

func TestRunIngestWithNoSourcesSucceeds(t *testing.T) {
	setTestConfig(t)
	ingestFull, ingestSources = true, nil
	defer func() { ingestFull, ingestSources = false, nil }()

	require.NoError(t, runIngest(&cobra.Command{}, nil))
}

func TestRunPlanThenExecuteReminderRoundTrip(t *testing.T) {
	setTestConfig(t)

	e, err := engine.New(cfg, nil)
	require.NoError(t, err)
	defer e.Close()

	p, err := e.Run(context.Background(), "remind me to call the vet")
	require.NoError(t, err)
	require.NotEmpty(t, p.OperationHash)
	e.Close()

	cmd := &cobra.Command{}
	executeHash = p.OperationHash
	defer func() { executeHash = "" }()
	require.NoError(t, runExecute(cmd, []string{p.ID}))
}

func TestRunExecuteRejectsWrongHash(t *testing.T) {
	setTestConfig(t)

	e, err := engine.New(cfg, nil)
	require.NoError(t, err)

	p, err := e.Run(context.Background(), "remind me to pay rent")
	require.NoError(t, err)
	e.Close()

	executeHash = "not-the-real-hash"
	defer func() { executeHash = "" }()
	require.Error(t, runExecute(&cobra.Command{}, []string{p.ID}))
}

func TestRunStatsReportsZeroedCounts(t *testing.T) {
	setTestConfig(t)
	require.NoError(t, runStats(&cobra.Command{}, nil))
}

func TestRunSearchWithNoResultsSucceeds(t *testing.T) {
	setTestConfig(t)
	searchLimit = 10
	searchTypes = nil
	require.NoError(t, runSearch(&cobra.Command{}, []string{"nonexistent"}))
}
