// cmd/linhashctl/main_test.go
package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func devNull(t *testing.T) *os.File {
	t.Helper()
	f, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestRun_PutGetRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli.linhash")
	out, errOut := devNull(t), devNull(t)

	code := run([]string{"--db", dbPath, "--keysize", "2", "--valsize", "2", "put", "0102", "0304"}, out, errOut)
	require.Equal(t, 0, code)

	code = run([]string{"--db", dbPath, "--keysize", "2", "--valsize", "2", "get", "0102"}, out, errOut)
	require.Equal(t, 0, code)
}

func TestRun_GetMissingKey(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli.linhash")
	out, errOut := devNull(t), devNull(t)

	code := run([]string{"--db", dbPath, "--keysize", "2", "--valsize", "2", "get", "ffff"}, out, errOut)
	require.Equal(t, 1, code)
}

func TestRun_UnknownCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli.linhash")
	out, errOut := devNull(t), devNull(t)

	code := run([]string{"--db", dbPath, "--keysize", "2", "--valsize", "2", "frobnicate"}, out, errOut)
	require.Equal(t, 2, code)
}

func TestRun_MissingArgs(t *testing.T) {
	out, errOut := devNull(t), devNull(t)
	code := run(nil, out, errOut)
	require.Equal(t, 2, code)
}
