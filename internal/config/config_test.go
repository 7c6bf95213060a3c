// SPDX-License-Identifier: Apache-2.0

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemaplan/core/internal/config"
)

func TestLoadWithoutFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.DefaultEnvironment)
	assert.Equal(t, 80.0, cfg.CoverageThreshold)
	assert.Equal(t, "main", cfg.RequireBranch)
}

func TestLoadFromTOMLFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schemaplan.toml")
	contents := "default_environment = \"production\"\ncoverage_threshold = 92.5\nrequire_branch = \"release\"\n"
	require.NoError(t, writeFile(path, contents))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.DefaultEnvironment)
	assert.Equal(t, 92.5, cfg.CoverageThreshold)
	assert.Equal(t, "release", cfg.RequireBranch)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := config.Load("/nonexistent/schemaplan.toml")
	assert.Error(t, err)
}

func TestEncodeRoundTripsThroughLoad(t *testing.T) {
	original := config.Config{DefaultEnvironment: "staging", CoverageThreshold: 75, RequireBranch: "develop"}

	encoded, err := config.Encode(original)
	require.NoError(t, err)
	assert.Contains(t, encoded, "staging")

	dir := t.TempDir()
	path := filepath.Join(dir, "schemaplan.toml")
	require.NoError(t, writeFile(path, encoded))

	reloaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, original, reloaded)
}

func writeFile(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0o644)
}
