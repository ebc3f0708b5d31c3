package config

import (
	"encoding/json"
	"io"

	"github.com/YuminosukeSato/gbdata/core/fileio"
	"github.com/YuminosukeSato/gbdata/pkg/errors"
)

// Default returns the walkthrough configuration: two rounds of depth-2
// logistic boosting on the agaricus demo files.
func Default() Config {
	return Config{
		Data: ConfigData{
			Train:  "demo/data/agaricus.txt.train",
			Test:   "demo/data/agaricus.txt.test",
			Output: ".",
		},
		Rounds: 2,
		Params: map[string]interface{}{
			"eta":       1.0,
			"max_depth": 2,
			"silent":    1,
			"objective": "binary:logistic",
		},
		Log: ConfigLog{
			Level:  LogLevelInfo,
			Format: LogFormatConsole,
		},
	}
}

// CreateSample creates a sample configuration file.
func CreateSample(path string) error {
	raw, err := json.MarshalIndent(Default(), "", "    ")
	if err != nil {
		return errors.Wrap(err, "could not marshal sample config")
	}
	raw = append(raw, '\n')
	err = fileio.WriteAtomic("CreateSample", path, func(w io.Writer) error {
		_, err := w.Write(raw)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "could not write sample config file")
	}
	return nil
}
