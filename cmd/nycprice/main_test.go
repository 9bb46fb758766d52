package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/nycprice/dataset/datasettest"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		cmd       string
		cmdArgs   []string
		overrides []string
		wantErr   bool
	}{
		{"default run", nil, cmdRun, nil, nil, false},
		{"overrides only", []string{"main.steps=download", "etl.min_price=20"}, cmdRun, nil,
			[]string{"main.steps=download", "etl.min_price=20"}, false},
		{"log level flag", []string{"-log-level", "debug", "run"}, cmdRun, nil, []string{"log.level=debug"}, false},
		{"promote", []string{"promote", "random_forest_export:v1", "prod"}, cmdPromote,
			[]string{"random_forest_export:v1", "prod"}, nil, false},
		{"artifacts with override", []string{"artifacts", "sample.csv", "tracking.dir=/tmp/t"}, cmdArtifacts,
			[]string{"sample.csv"}, []string{"tracking.dir=/tmp/t"}, false},
		{"promote missing alias", []string{"promote", "random_forest_export:v1"}, "", nil, nil, true},
		{"unknown command", []string{"deploy"}, "", nil, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := parseArgs(tt.args, io.Discard)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cmd, c.name)
			assert.Equal(t, tt.cmdArgs, c.args)
			assert.Equal(t, tt.overrides, c.load.Overrides)
		})
	}

	_, err := parseArgs([]string{"-h"}, io.Discard)
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestRunPromoteAndList(t *testing.T) {
	dir := t.TempDir()
	sample := filepath.Join(dir, "sample.csv")
	require.NoError(t, datasettest.Synthetic(60, 5).WriteCSVFile(sample))
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("main:\n  steps: download\n"), 0o644))

	common := []string{"-config", cfgPath, "-env", filepath.Join(dir, "missing.env"), "-log-level", "warn"}
	overrides := []string{"etl.sample=" + sample, "tracking.dir=" + filepath.Join(dir, "tracking")}
	ctx := context.Background()
	var out bytes.Buffer

	require.NoError(t, run(ctx, append(append(common, "run"), overrides...), &out, io.Discard))
	require.NoError(t, run(ctx, append(append(common, "promote", "sample.csv:v0", "reference"), overrides...), &out, io.Discard))

	out.Reset()
	require.NoError(t, run(ctx, append(append(common, "artifacts", "sample.csv"), overrides...), &out, io.Discard))
	assert.Contains(t, out.String(), "sample.csv:v0")
	assert.Contains(t, out.String(), "latest,reference")
	assert.Contains(t, out.String(), "raw_data")

	err := run(ctx, append(append(common, "promote", "sample.csv:v9", "prod"), overrides...), &out, io.Discard)
	assert.Error(t, err)
}
