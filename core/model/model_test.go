package model

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/YuminosukeSato/gbdata/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stump struct {
	Feature   uint32
	Threshold float32
	Leaves    [2]float32
	State     *StateManager
}

func TestSaveLoadModel(t *testing.T) {
	dir := t.TempDir()
	state := NewStateManager()
	state.SetDimensions(3, 10)
	state.SetFitted()
	want := stump{Feature: 2, Threshold: 0.5, Leaves: [2]float32{-1, 1}, State: state}

	for _, name := range []string{"stump.gob", "stump.gob.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, SaveModel(&want, path))

			var got stump
			require.NoError(t, LoadModel(&got, path))
			assert.Equal(t, want.Leaves, got.Leaves)
			require.NotNil(t, got.State)
			assert.True(t, got.State.IsFitted())
			nf, ns := got.State.GetDimensions()
			assert.Equal(t, 3, nf)
			assert.Equal(t, 10, ns)
		})
	}
}

func TestLoadModel_Errors(t *testing.T) {
	dir := t.TempDir()

	var s stump
	err := LoadModel(&s, filepath.Join(dir, "missing.gob"))
	var ioErr *errors.IOError
	assert.True(t, errors.As(err, &ioErr))

	garbage := filepath.Join(dir, "garbage.gob")
	require.NoError(t, os.WriteFile(garbage, []byte("not a gob stream"), 0o644))
	err = LoadModel(&s, garbage)
	var modelErr *errors.ModelError
	require.True(t, errors.As(err, &modelErr))
	assert.True(t, strings.Contains(err.Error(), garbage))
}

func TestSaveModel_EncodeFailureLeavesNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chan.gob")

	// gob cannot encode channels
	err := SaveModel(make(chan int), path)
	var modelErr *errors.ModelError
	require.True(t, errors.As(err, &modelErr))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestStateManager(t *testing.T) {
	s := NewStateManager()
	assert.False(t, s.IsFitted())

	err := s.RequireFitted("Booster", "Predict")
	var notFitted *errors.NotFittedError
	require.True(t, errors.As(err, &notFitted))

	s.SetDimensions(3, 10)
	s.SetFitted()
	assert.NoError(t, s.RequireFitted("Booster", "Predict"))

	nf, ns := s.GetDimensions()
	assert.Equal(t, 3, nf)
	assert.Equal(t, 10, ns)
}
