package download

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTarGz(t *testing.T, entries map[string]string) string {
	t.Helper()

	var buf bytes.Buffer
	gzWriter := gzip.NewWriter(&buf)
	tarWriter := tar.NewWriter(gzWriter)

	for name, content := range entries {
		mode := int64(0644)
		if filepath.Ext(name) == "" && filepath.Base(filepath.Dir(name)) == "bin" {
			mode = 0755
		}

		require.NoError(t, tarWriter.WriteHeader(&tar.Header{
			Name: name,
			Mode: mode,
			Size: int64(len(content)),
		}))
		_, err := tarWriter.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, tarWriter.Close())
	require.NoError(t, gzWriter.Close())

	path := filepath.Join(t.TempDir(), "toolchain.tar.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func TestExtractTarGzStripsPrefix(t *testing.T) {
	arPath := buildTarGz(t, map[string]string{
		"toolchain-1.0/bin/tool": "#!/bin/sh\n",
		"toolchain-1.0/README":   "docs\n",
	})

	handle, err := os.Open(arPath)
	require.NoError(t, err)
	defer handle.Close()

	dest := t.TempDir()
	err = Extract(handle, "https://example.com/toolchain.tar.gz", ArchiveSpec{
		Dest:     dest,
		Strip:    1,
		MarkExec: []string{"bin/tool"},
	})
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dest, "README"))
	require.NoError(t, err)
	assert.Equal(t, "docs\n", string(content))

	info, err := os.Stat(filepath.Join(dest, "bin", "tool"))
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.NotZero(t, info.Mode()&0100, "bin/tool should be executable")
	}
}

func TestExtractRejectsUnknownFormats(t *testing.T) {
	arPath := buildTarGz(t, map[string]string{"toolchain/README": "docs\n"})

	handle, err := os.Open(arPath)
	require.NoError(t, err)
	defer handle.Close()

	err = Extract(handle, "https://example.com/toolchain.tar.br", ArchiveSpec{Dest: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}
