package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestLoad(t *testing.T) {
	p := writeConfig(t, t.TempDir(), `
[server]
listen-addr = "127.0.0.1:9000"
http-addr = "127.0.0.1:9001"

[client]
timeout = "2s"
`)
	c, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", c.Server.ListenAddr)
	assert.Equal(t, "127.0.0.1:9001", c.Server.HTTPAddr)
	assert.Equal(t, "info", c.Server.LogLevel, "unset keys keep their defaults")
	assert.Equal(t, "localhost:14879", c.Client.Addr)
	assert.Equal(t, p, c.Path)

	d, err := c.Client.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name    string
		content string
		expErr  string
	}{
		{name: "unknown key", content: "[server]\nport = 1\n", expErr: "unknown keys server.port"},
		{name: "bad timeout", content: "[client]\ntimeout = \"soon\"\n", expErr: "client timeout"},
		{name: "bad syntax", content: "[server\n", expErr: "parsing"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := writeConfig(t, t.TempDir(), tc.content)
			_, err := Load(p)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.expErr)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "x", "y")
	require.NoError(t, os.MkdirAll(nested, 0755))

	c, err := FindAndLoad(nested)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)

	p := writeConfig(t, root, "[client]\naddr = \"example.com\"\n")
	c, err = FindAndLoad(nested)
	require.NoError(t, err)
	assert.Equal(t, "example.com", c.Client.Addr)
	assert.Equal(t, p, c.Path)
}
