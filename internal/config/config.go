package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type WLED struct {
	IP        string `yaml:"ip" toml:"ip"`
	Port      int    `yaml:"port" toml:"port"`
	TimeoutMs int    `yaml:"timeout_ms" toml:"timeout_ms"`
}

type Matrix struct {
	Width  int    `yaml:"width" toml:"width"`
	Height int    `yaml:"height" toml:"height"`
	Layout string `yaml:"layout" toml:"layout"` // linear | serpentine
}

type Output struct {
	Protocol         string `yaml:"protocol" toml:"protocol"` // json | ddp
	DDPPort          int    `yaml:"ddp_port" toml:"ddp_port"`
	DDPDestinationID int    `yaml:"ddp_destination_id" toml:"ddp_destination_id"`
	MaxPayload       int    `yaml:"max_payload" toml:"max_payload"`           // bytes per datagram, multiple of 3
	SparseThreshold  int    `yaml:"sparse_threshold" toml:"sparse_threshold"` // 0 = whole grid
	ResyncEvery      int    `yaml:"resync_every" toml:"resync_every"`         // flushes, 0 = never
}

type Config struct {
	WLED   WLED   `yaml:"wled" toml:"wled"`
	Matrix Matrix `yaml:"matrix" toml:"matrix"`
	Output Output `yaml:"output" toml:"output"`

	FPS        int    `yaml:"fps" toml:"fps"`
	Brightness int    `yaml:"brightness" toml:"brightness"` // controller brightness 0..255, 0 leaves it alone
	Pattern    string `yaml:"pattern" toml:"pattern"`
	Mirror     string `yaml:"mirror" toml:"mirror"` // none | sim | console | spi
	SPIPort    string `yaml:"spi_port,omitempty" toml:"spi_port,omitempty"`
	Addr       string `yaml:"addr" toml:"addr"`
}

// Defaults matches the reference 32x8 panel.
func Defaults() Config {
	return Config{
		WLED:   WLED{Port: 80, TimeoutMs: 3000},
		Matrix: Matrix{Width: 32, Height: 8, Layout: "serpentine"},
		Output: Output{
			Protocol:         "json",
			DDPPort:          4048,
			DDPDestinationID: 1,
			MaxPayload:       1440,
		},
		FPS:     30,
		Pattern: "rainbow",
		Mirror:  "none",
		Addr:    ":8080",
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.WLED.IP == "" {
		errs = append(errs, errors.New("wled.ip is required"))
	}
	if c.Matrix.Width <= 0 || c.Matrix.Height <= 0 {
		errs = append(errs, fmt.Errorf("matrix size %dx%d is invalid", c.Matrix.Width, c.Matrix.Height))
	}
	switch strings.ToLower(c.Output.Protocol) {
	case "json", "ddp":
	default:
		errs = append(errs, fmt.Errorf("output.protocol must be 'json' or 'ddp', got %q", c.Output.Protocol))
	}
	if c.Output.DDPDestinationID < 0 || c.Output.DDPDestinationID > 255 {
		errs = append(errs, fmt.Errorf("output.ddp_destination_id %d out of range 0..255", c.Output.DDPDestinationID))
	}
	if c.Output.MaxPayload <= 0 || c.Output.MaxPayload%3 != 0 || c.Output.MaxPayload > 0xFFFF {
		errs = append(errs, fmt.Errorf("output.max_payload %d must be a positive multiple of 3", c.Output.MaxPayload))
	}
	if c.Output.SparseThreshold < 0 || c.Output.ResyncEvery < 0 {
		errs = append(errs, errors.New("output.sparse_threshold and output.resync_every must not be negative"))
	}
	if c.Brightness < 0 || c.Brightness > 255 {
		errs = append(errs, fmt.Errorf("brightness %d out of range 0..255", c.Brightness))
	}
	return errors.Join(errs...)
}

// Load reads a YAML or TOML file (by extension) over the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Defaults()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(b, &c)
	default:
		err = yaml.Unmarshal(b, &c)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	c.Output.Protocol = strings.ToLower(c.Output.Protocol)
	return &c, nil
}

// LoadFirst loads the first path that exists. Put an untracked local file
// (real controller address) ahead of the committed one.
func LoadFirst(paths ...string) (*Config, string, error) {
	for _, p := range paths {
		c, err := Load(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return c, p, err
	}
	return nil, "", fmt.Errorf("no config found in %s: %w", strings.Join(paths, ", "), fs.ErrNotExist)
}

func Save(path string, c *Config) error {
	var (
		b   []byte
		err error
	)
	if strings.ToLower(filepath.Ext(path)) == ".toml" {
		b, err = toml.Marshal(c)
	} else {
		b, err = yaml.Marshal(c)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}
