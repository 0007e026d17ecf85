package runtime

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestInit_LoadsConfigFile(t *testing.T) {
	path := writeConfig(t, "debug: true\nmain:\n  name: porch-node\n")

	rt := New()
	require.NoError(t, rt.Init(path, nil))
	t.Cleanup(func() { _ = rt.Close() })

	assert.Equal(t, "porch-node", rt.Settings.Main.Name)
	assert.Equal(t, "debug", rt.Settings.Logging.DefaultLevel)
	assert.NotNil(t, rt.Logger("api"))
}

func TestInit_FlagsOverrideConfig(t *testing.T) {
	path := writeConfig(t, "webserver:\n  port: \"5000\"\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("port", "", "")
	flags.String("model", "", "")
	require.NoError(t, flags.Set("port", "6001"))
	require.NoError(t, flags.Set("model", "models/other.json"))

	rt := New()
	require.NoError(t, rt.Init(path, flags))
	t.Cleanup(func() { _ = rt.Close() })

	assert.Equal(t, "6001", rt.Settings.WebServer.Port)
	assert.Equal(t, "models/other.json", rt.Settings.Model.Path)
}

func TestInit_MissingConfigFile(t *testing.T) {
	rt := New()
	err := rt.Init(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
	assert.Nil(t, rt.Settings)
}

func TestClose_BeforeInit(t *testing.T) {
	rt := New()
	require.NoError(t, rt.Close())
	assert.NotNil(t, rt.Logger("main"))
}
