package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0644))
	return p
}

func TestLoadYAMLKeepsDefaults(t *testing.T) {
	p := write(t, t.TempDir(), "config.yaml", `
wled:
  ip: 192.168.1.50
output:
  protocol: DDP
  resync_every: 30
`)
	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.50", c.WLED.IP)
	assert.Equal(t, "ddp", c.Output.Protocol)
	assert.Equal(t, 30, c.Output.ResyncEvery)
	assert.Equal(t, 4048, c.Output.DDPPort)
	assert.Equal(t, 1, c.Output.DDPDestinationID)
	assert.Equal(t, 32, c.Matrix.Width)
	assert.Equal(t, 8, c.Matrix.Height)
	assert.NoError(t, c.Validate())
}

func TestLoadTOML(t *testing.T) {
	p := write(t, t.TempDir(), "config.toml", `
fps = 20

[wled]
ip = "10.0.0.7"

[matrix]
width = 16
height = 16
layout = "linear"
`)
	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 20, c.FPS)
	assert.Equal(t, "10.0.0.7", c.WLED.IP)
	assert.Equal(t, "linear", c.Matrix.Layout)
	assert.Equal(t, 16, c.Matrix.Width)
}

func TestLoadFirstPrefersLocal(t *testing.T) {
	dir := t.TempDir()
	shared := write(t, dir, "config.yaml", "wled:\n  ip: 1.1.1.1\n")
	local := filepath.Join(dir, "config.local.yaml")

	c, used, err := LoadFirst(local, shared)
	require.NoError(t, err)
	assert.Equal(t, shared, used)
	assert.Equal(t, "1.1.1.1", c.WLED.IP)

	write(t, dir, "config.local.yaml", "wled:\n  ip: 2.2.2.2\n")
	c, used, err = LoadFirst(local, shared)
	require.NoError(t, err)
	assert.Equal(t, local, used)
	assert.Equal(t, "2.2.2.2", c.WLED.IP)

	_, _, err = LoadFirst(filepath.Join(dir, "nope.yaml"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestValidate(t *testing.T) {
	c := Defaults()
	assert.Error(t, c.Validate(), "ip missing")

	c.WLED.IP = "wled.local"
	require.NoError(t, c.Validate())

	bad := c
	bad.Output.Protocol = "artnet"
	assert.Error(t, bad.Validate())

	bad = c
	bad.Output.MaxPayload = 1000
	assert.Error(t, bad.Validate())

	bad = c
	bad.Matrix.Width = 0
	assert.Error(t, bad.Validate())

	bad = c
	bad.Output.DDPDestinationID = 300
	assert.Error(t, bad.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := Defaults()
	c.WLED.IP = "192.168.0.9"
	c.Output.Protocol = "ddp"
	for _, name := range []string{"out.yaml", "out.toml"} {
		p := filepath.Join(dir, name)
		require.NoError(t, Save(p, &c))
		got, err := Load(p)
		require.NoError(t, err)
		assert.Equal(t, c, *got, name)
	}
}
