package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/screamguard/internal/runtime"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rt := runtime.New()
	t.Cleanup(func() { _ = rt.Close() })

	root := RootCommand(rt)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := RootCommand(runtime.New())

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "classify", "locate", "notify", "config"})
}

func TestConfigShow_RedactsSecrets(t *testing.T) {
	path := writeConfig(t, `
main:
  name: hallway
notification:
  email:
    password: hunter2
`)

	out, err := execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "hallway")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "********")
}

func TestConfigShow_FlagOverridesFile(t *testing.T) {
	path := writeConfig(t, "model:\n  path: from-file.json\n")

	out, err := execute(t, "config", "show", "--config", path, "--model", "from-flag.json")
	require.NoError(t, err)
	assert.Contains(t, out, "from-flag.json")
	assert.NotContains(t, out, "from-file.json")
}

func TestInvalidArguments(t *testing.T) {
	path := writeConfig(t, "main:\n  name: test\n")

	tests := map[string][]string{
		"classify without file": {"classify", "--config", path},
		"unknown channel":       {"notify", "--config", path, "--channel", "pager", "--lat", "1", "--lng", "2"},
		"notify without coords": {"notify", "--config", path},
		"locate half a point":   {"locate", "--config", path, "--lat", "1"},
		"missing config file":   {"config", "show", "--config", filepath.Join(t.TempDir(), "nope.yaml")},
	}
	for name, args := range tests {
		_, err := execute(t, args...)
		assert.Error(t, err, name)
	}
}
