package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitop-dev/relay/pkg/config"
	"github.com/bitop-dev/relay/pkg/history"
)

// isolate points every lookup the CLI makes at a fresh temp tree.
func isolate(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(root, "data"))
	for _, k := range []string{config.EnvAPIKey, config.EnvChannelSecret, config.EnvChannelAccessToken, config.EnvDefaultWorkdir} {
		t.Setenv(k, "")
	}
	return root
}

func executeCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	isolate(t)
	stdout, _, err := executeCLI(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "relay dev ("))
}

func TestInvalidConfig(t *testing.T) {
	root := isolate(t)
	path := writeConfig(t, root, "provider: nope\n")

	_, _, err := executeCLI(t, "", "--config", path, "history", "U1")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestHistory_PrintsWindow(t *testing.T) {
	root := isolate(t)
	dir := filepath.Join(root, "hist")
	path := writeConfig(t, root, "history:\n  path: "+dir+"\n")

	store, err := history.OpenJSONL(dir)
	require.NoError(t, err)
	require.NoError(t, store.Append(context.Background(), "U1", "hello", "hi there"))
	require.NoError(t, store.Close())

	stdout, _, err := executeCLI(t, "", "--config", path, "history", "U1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "user")
	assert.Contains(t, stdout, "hello")
	assert.Contains(t, stdout, "model")
	assert.Contains(t, stdout, "hi there")

	stdout, _, err = executeCLI(t, "", "--config", path, "history", "U2")
	require.NoError(t, err)
	assert.Equal(t, "[no history]\n", stdout)
}

func TestChat_RequiresAPIKey(t *testing.T) {
	isolate(t)
	_, _, err := executeCLI(t, "!pwd\n", "chat")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestChat_PwdAndCd(t *testing.T) {
	root := isolate(t)
	work := filepath.Join(root, "work")
	require.NoError(t, os.MkdirAll(filepath.Join(work, "sub"), 0o755))
	t.Setenv(config.EnvAPIKey, "k")
	t.Setenv(config.EnvDefaultWorkdir, work)

	stdout, _, err := executeCLI(t, "!pwd\n\n!cd sub\n!cd missing\n", "chat", "--user", "tester")
	require.NoError(t, err)

	assert.Contains(t, stdout, "workdir: "+work+"\n")
	assert.Contains(t, stdout, "< 現在の作業ディレクトリ:\n"+work+"\n")
	assert.Contains(t, stdout, "< 作業ディレクトリが次に変更されました:\n"+filepath.Join(work, "sub")+"\n")
	assert.Contains(t, stdout, "< エラー: ディレクトリ '")
	assert.NotContains(t, stdout, "<< ")
}
