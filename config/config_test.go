package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/gbdata/pkg/errors"
	"github.com/YuminosukeSato/gbdata/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig_KeepsDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{"rounds": 5, "data": {"train": "a.txt"}, "params": {"max_depth": 3}}`))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Rounds)
	assert.Equal(t, "a.txt", cfg.Data.Train)
	assert.Equal(t, Default().Data.Test, cfg.Data.Test)
	assert.Equal(t, float64(3), cfg.Params["max_depth"])
	assert.Equal(t, "binary:logistic", cfg.Params["objective"])
	assert.Equal(t, LogLevelInfo, cfg.Log.Level)
}

func TestParseConfig_Errors(t *testing.T) {
	_, err := ParseConfig([]byte(`{"rounds": `))
	assert.Error(t, err)

	tests := []struct {
		name  string
		raw   string
		param string
	}{
		{"negative rounds", `{"rounds": -1}`, "rounds"},
		{"negative threads", `{"threads": -2}`, "threads"},
		{"bad level", `{"log": {"level": "loud"}}`, "log_level"},
		{"bad format", `{"log": {"format": "xml"}}`, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.raw))
			var valErr *errors.ValidationError
			require.True(t, errors.As(err, &valErr), "got %v", err)
			assert.Equal(t, tt.param, valErr.ParamName)
		})
	}
}

func TestCreateSample_LoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, CreateSample(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	want := Default()
	assert.Equal(t, want.Data, cfg.Data)
	assert.Equal(t, want.Rounds, cfg.Rounds)
	assert.Equal(t, want.Log, cfg.Log)
	assert.Equal(t, 1.0, cfg.Params["eta"])
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing.json"))
	var ioErr *errors.IOError
	assert.True(t, errors.As(err, &ioErr))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"rounds": -3}`), 0o600))
	_, err = Load(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), bad)
}

func TestLogLevel(t *testing.T) {
	level, err := LogLevelDebug.Level()
	require.NoError(t, err)
	assert.Equal(t, log.LevelDebug, level)
	assert.Equal(t, "warn", LogLevelWarn.String())
}
