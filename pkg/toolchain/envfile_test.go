package toolchain

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvExportsOnlyExportedVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env")
	require.NoError(t, os.WriteFile(path, []byte(
		"export GM_ENV_A=\"alpha beta\"\nGM_ENV_B=hidden\n",
	), 0644))
	t.Cleanup(func() {
		os.Unsetenv("GM_ENV_A")
		os.Unsetenv("GM_ENV_B")
	})

	require.NoError(t, LoadEnv(context.Background(), path))

	assert.Equal(t, "alpha beta", os.Getenv("GM_ENV_A"))
	_, defined := os.LookupEnv("GM_ENV_B")
	assert.False(t, defined, "unexported assignments must not leak into the process")
}

func TestLoadEnvExpandsAgainstTheCurrentEnvironment(t *testing.T) {
	t.Setenv("GM_ENV_BASE", "/opt/toolchain")
	path := filepath.Join(t.TempDir(), "env")
	require.NoError(t, os.WriteFile(path, []byte(
		"export GM_ENV_PATH=\"$GM_ENV_BASE/bin\"\n",
	), 0644))
	t.Cleanup(func() { os.Unsetenv("GM_ENV_PATH") })

	require.NoError(t, LoadEnv(context.Background(), path))
	assert.Equal(t, "/opt/toolchain/bin", os.Getenv("GM_ENV_PATH"))
}

func TestLoadEnvRejectsBrokenFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env")
	require.NoError(t, os.WriteFile(path, []byte("export GM_ENV_C=(((\n"), 0644))

	require.Error(t, LoadEnv(context.Background(), path))
}
