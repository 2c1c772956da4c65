package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInput(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(append(args, "--log-level", "ERROR"))
	err := cmd.Execute()
	return out.String(), err
}

func TestQuery(t *testing.T) {
	path := writeInput(t, "cacao\ncake\t42\n# comment\ncat\tfeline\n")
	out, err := execute(t, "query", path, "cacao", "cake", "cat", "ca")
	require.NoError(t, err)
	assert.Equal(t, "cacao\t1\ncake\t42\ncat\tfeline\nca\tabsent\n", out)
}

func TestQueryDense(t *testing.T) {
	path := writeInput(t, "0\n01\n011\n")
	out, err := execute(t, "query", path, "011", "1", "--kind", "dense", "--degree", "2")
	require.NoError(t, err)
	assert.Equal(t, "011\t3\n1\tabsent\n", out)
}

func TestLoadReportsStats(t *testing.T) {
	path := writeInput(t, "cat\ndog\n")
	out, err := execute(t, "load", path, "--query", "dog", "--concurrency", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Load wall time")
	assert.Contains(t, out, "2 inserted")
	assert.Contains(t, out, "dog\t2\n")
}

func TestLoadInvalid(t *testing.T) {
	path := writeInput(t, "12\n1x\n")
	_, err := execute(t, "load", path, "--kind", "dense", "--degree", "10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	out, err := execute(t, "query", path, "12", "--kind", "dense", "--degree", "10", "--skip-invalid")
	require.NoError(t, err)
	assert.Equal(t, "12\t1\n", out)
}

func TestBadConfig(t *testing.T) {
	_, err := execute(t, "query", writeInput(t, "a\n"), "a", "--kind", "radix")
	assert.Error(t, err)
	_, err = execute(t, "query", writeInput(t, "a\n"), "a", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
