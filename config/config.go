// Package config holds the JSON configuration of the walkthrough command.
package config

import (
	"encoding/json"

	"github.com/YuminosukeSato/gbdata/core/fileio"
	"github.com/YuminosukeSato/gbdata/pkg/errors"
)

// ParseConfig parses the raw JSON configuration. Fields missing from raw
// keep their Default values.
func ParseConfig(raw []byte) (config Config, err error) {
	config = Default()
	if err = json.Unmarshal(raw, &config); err != nil {
		return config, errors.Wrap(err, "unmarshal config")
	}
	if err = config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

type Config struct {
	Data    ConfigData             `json:"data"`
	Rounds  int                    `json:"rounds"`
	Params  map[string]interface{} `json:"params"`
	Log     ConfigLog              `json:"log"`
	Silent  bool                   `json:"silent"`
	Threads int                    `json:"threads"`
}

type ConfigData struct {
	Train  string `json:"train"`
	Test   string `json:"test"`
	Output string `json:"output"`
}

// Validate checks values that flags cannot repair later.
func (c Config) Validate() error {
	if c.Rounds < 0 {
		return errors.NewValidationError("rounds", "must be non-negative", c.Rounds)
	}
	if c.Threads < 0 {
		return errors.NewValidationError("threads", "must be non-negative", c.Threads)
	}
	if _, err := c.Log.Level.Level(); err != nil {
		return err
	}
	switch c.Log.Format {
	case LogFormatJSON, LogFormatConsole:
	default:
		return errors.NewValidationError("log.format", "must be json or console", c.Log.Format)
	}
	return nil
}

// Load reads and parses the configuration file at path.
func Load(path string) (Config, error) {
	raw, err := fileio.ReadAll("config.Load", path)
	if err != nil {
		return Config{}, err
	}
	config, err := ParseConfig(raw)
	if err != nil {
		return config, errors.Wrapf(err, "config %s", path)
	}
	return config, nil
}
