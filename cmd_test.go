package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// runCLI executes the root command in a scratch data dir and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func setupCLI(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("TASKDESK_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("TASKDESK_LOG_LEVEL", "error")
	return dir
}

func TestUserAddAndList(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "user", "add", "ana", "-p", "secret", "-r", "Leader", "-b", "Mzone,UNIPRO")
	require.NoError(t, err)
	assert.Contains(t, out, "User ana created (Leader)")

	out, err = runCLI(t, "user", "add", "ana", "-p", "changed", "-r", "Worker")
	require.NoError(t, err)
	assert.Contains(t, out, "User ana updated (Worker)")

	out, err = runCLI(t, "user", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "USER")
	assert.Contains(t, out, "ana")
	assert.Contains(t, out, "Worker")
}

func TestUserAddKeepsRoleAndBranchesOnPasswordChange(t *testing.T) {
	setupCLI(t)

	_, err := runCLI(t, "user", "add", "boss", "-p", "old", "-r", "Owner", "-b", "Mzone")
	require.NoError(t, err)

	out, err := runCLI(t, "user", "add", "boss", "-p", "new")
	require.NoError(t, err)
	assert.Contains(t, out, "User boss updated (Owner)")

	out, err = runCLI(t, "user", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Owner")
	assert.Contains(t, out, "Mzone")
	assert.NotContains(t, out, "Worker")
}

func TestUserAddRequiresPassword(t *testing.T) {
	setupCLI(t)

	_, err := runCLI(t, "user", "add", "ana")
	assert.Error(t, err)
}

func TestStatsExport(t *testing.T) {
	dir := setupCLI(t)
	_, err := runCLI(t, "user", "add", "ana", "-p", "pw")
	require.NoError(t, err)
	_, err = runCLI(t, "user", "add", "bob", "-p", "pw")
	require.NoError(t, err)

	target := filepath.Join(dir, "out.xlsx")
	out, err := runCLI(t, "stats", "export", "-o", target, "-u", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 1 report(s)")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Performance")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "bob", rows[1][0])

	_, err = runCLI(t, "stats", "export", "-o", target, "-u", "nobody")
	assert.Error(t, err)
}
