package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/polar-layers/internal/domain"
	"github.com/couchcryptid/polar-layers/internal/pipeline"
)

type stubReady struct{ err error }

func (s stubReady) CheckReadiness(context.Context) error { return s.err }

func TestReadiness_AllMustPass(t *testing.T) {
	notYet := errors.New("build running")
	assert.NoError(t, readiness{stubReady{}, stubReady{}}.CheckReadiness(context.Background()))
	assert.ErrorIs(t, readiness{stubReady{}, stubReady{err: notYet}}.CheckReadiness(context.Background()), notYet)
}

func TestPrintReport(t *testing.T) {
	start := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	printReport(&buf, pipeline.Report{
		RunID:    "run-9",
		Started:  start,
		Finished: start.Add(1500 * time.Millisecond),
		Results: []pipeline.Result{
			{Dataset: domain.Bioregions, Status: pipeline.StatusOK, Cells: 812, Path: "/cache/plot_bioregions.gob.zst"},
			{Dataset: domain.HabitatImportance, Status: pipeline.StatusFailed, Err: errors.New("load stage: boom")},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "run run-9 (1.5s)")
	assert.Contains(t, out, "bioregions")
	assert.Contains(t, out, "/cache/plot_bioregions.gob.zst")
	assert.Contains(t, out, "load stage: boom")
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"build", "serve", "view", "export", "ls"}, names)
}

func TestExport_RejectsUnknownFormat(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"export", "bioregions", "--format", "tiff"})
	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tiff")
}

func TestLs_JSON(t *testing.T) {
	t.Setenv("CACHE_DIR", t.TempDir())

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"ls", "--json"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	var entries []struct {
		Dataset   string `json:"dataset"`
		Available bool   `json:"available"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &entries))
	require.Len(t, entries, 4)
	assert.Equal(t, "bioregions", entries[0].Dataset)
	assert.False(t, entries[0].Available)
}
