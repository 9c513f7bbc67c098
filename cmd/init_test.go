package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamusis/catmatch/internal/config"
)

func TestInit_WritesConfigAndDotEnvOnce(t *testing.T) {
	srv := fakeModel(t)
	home := setupEnv(t, srv)

	_, err := runCLI(t, "init", "--candidates", "/srv/cats")
	require.NoError(t, err)

	cfg, err := config.Load(filepath.Join(home, "catmatch.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/srv/cats", cfg.CandidateDir)
	assert.Equal(t, "match_result.csv", cfg.Output)

	envPath := filepath.Join(home, ".env")
	info, err := os.Stat(envPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, os.WriteFile(envPath, []byte("CATMATCH_MODEL_NAME=mine\n"), 0o600))
	stdoutText, err := runCLI(t, "init", "--candidates", "/elsewhere")
	require.NoError(t, err)
	assert.Contains(t, stdoutText, "Config already exists")
	assert.Contains(t, stdoutText, ".env already exists")

	cfg, err = config.Load(filepath.Join(home, "catmatch.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/srv/cats", cfg.CandidateDir)
	data, err := os.ReadFile(envPath)
	require.NoError(t, err)
	assert.Equal(t, "CATMATCH_MODEL_NAME=mine\n", string(data))
}

func TestDoctor_ReportsHealthyEnvironment(t *testing.T) {
	srv := fakeModel(t)
	home := setupEnv(t, srv)
	cands := filepath.Join(t.TempDir(), "handdrawn")
	makeCandidates(t, cands)
	require.NoError(t, config.Save(filepath.Join(home, "catmatch.yaml"), &config.Config{
		CandidateDir: cands,
		Output:       "match_result.csv",
	}))

	stdoutText, err := runCLI(t, "doctor")
	require.NoError(t, err)
	assert.Contains(t, stdoutText, "3 candidate image(s)")
	assert.Contains(t, stdoutText, "clip-server:test-clip ready")
	assert.Contains(t, stdoutText, "All checks passed")
}

func TestDoctor_FailsWhenModelDown(t *testing.T) {
	srv := fakeModel(t)
	setupEnv(t, srv)
	srv.Close()

	_, err := runCLI(t, "doctor")
	require.Error(t, err)
}

func TestDoctorFix_RemovesLeftovers(t *testing.T) {
	srv := fakeModel(t)
	home := setupEnv(t, srv)
	leftover := filepath.Join(home, ".index.tmp-123")
	require.NoError(t, os.MkdirAll(leftover, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(home, "index.bak"), 0o755))

	_, err := runCLI(t, "doctor", "fix")
	require.NoError(t, err)
	assert.NoDirExists(t, leftover)
	assert.NoDirExists(t, filepath.Join(home, "index.bak"))
}

func TestVersion_PrintsBuildInfo(t *testing.T) {
	stdoutText, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdoutText, "Version:")
	assert.Contains(t, stdoutText, "Go Version:")
}
