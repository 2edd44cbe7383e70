package cmd

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRootCommand_FailureReportedOnce leaves error reporting to the updater log.
func TestRootCommand_FailureReportedOnce(t *testing.T) {
	dir := t.TempDir()
	wd, wdErr := os.Getwd()
	require.NoError(t, wdErr)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	var stdout, stderr bytes.Buffer

	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{"--source", "torrent", "--no-wait", dir})

	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	err := rootCmd.Execute()
	require.ErrorContains(t, err, "torrent")
	require.NotContains(t, stderr.String(), "Error:")
	require.NotContains(t, stdout.String(), "Error:")
	require.NotContains(t, stdout.String(), "Usage:")
}
