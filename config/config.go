// Package config handles lambchops.toml configuration.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/guseggert/lambchops/internal/files"
	"github.com/guseggert/lambchops/wire"
)

const FileName = "lambchops.toml"

type Config struct {
	Server Server `toml:"server"`
	Client Client `toml:"client"`

	// Path is the file the config was loaded from, if any.
	Path string `toml:"-"`
}

type Server struct {
	ListenAddr string `toml:"listen-addr"`
	HTTPAddr   string `toml:"http-addr"`
	LogLevel   string `toml:"log-level"`
}

type Client struct {
	Addr     string `toml:"addr"`
	HTTPAddr string `toml:"http-addr"`
	Timeout  string `toml:"timeout"`
}

func Default() *Config {
	return &Config{
		Server: Server{
			ListenAddr: fmt.Sprintf("0.0.0.0:%d", wire.DefaultPort),
			LogLevel:   "info",
		},
		Client: Client{
			Addr:    fmt.Sprintf("localhost:%d", wire.DefaultPort),
			Timeout: "30s",
		},
	}
}

// Load parses the file at path over the defaults. Unknown keys are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("parsing %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if _, err := c.Client.TimeoutDuration(); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	c.Path = path
	return c, nil
}

// FindAndLoad walks up from dir looking for a lambchops.toml and loads the first one found.
// If there is none, it returns the defaults.
func FindAndLoad(dir string) (*Config, error) {
	path, err := files.FindUp(FileName, dir)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// TimeoutDuration parses Timeout. An empty timeout means none.
func (c Client) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("client timeout: %w", err)
	}
	return d, nil
}
