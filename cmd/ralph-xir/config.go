package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const defaultConfigFile = ".ralph-xir.yaml"

const (
	formatText = "text"
	formatJSON = "json"
)

// Config holds the settings that may come from a config file. Flags given
// on the command line override it.
type Config struct {
	// Format is the report format, "text" or "json".
	Format string `yaml:"format"`

	// Jobs bounds parallel function checks; 0 means one per CPU.
	Jobs int `yaml:"jobs"`

	// Verbose enables debug logging.
	Verbose bool `yaml:"verbose"`

	// DumpIR prints the resolved IR after validation.
	DumpIR bool `yaml:"dump_ir"`
}

func defaultConfig() Config {
	return Config{Format: formatText}
}

// loadConfig reads the config file at path. With an empty path the default
// file is read if it exists.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// applyFlags overrides cfg with every flag set on the command line
func applyFlags(cmd *cobra.Command, cfg Config) Config {
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Format = outputFormat
	}
	if flags.Changed("jobs") {
		cfg.Jobs = jobs
	}
	if flags.Changed("verbose") {
		cfg.Verbose = verbose
	}
	if flags.Changed("dxir") {
		cfg.DumpIR = dXir
	}
	return cfg
}

func (c Config) check() error {
	switch c.Format {
	case formatText, formatJSON:
	default:
		return fmt.Errorf("unknown format %q (want %s or %s)", c.Format, formatText, formatJSON)
	}
	if c.Jobs < 0 {
		return fmt.Errorf("jobs must not be negative, got %d", c.Jobs)
	}
	return nil
}
