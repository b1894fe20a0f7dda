package model

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartoza/stunting-risk/internal/inference"
)

func TestLabelEncoder(t *testing.T) {
	enc, err := NewLabelEncoder([]string{"Female", "Male"})
	require.NoError(t, err)

	code, err := enc.Encode("Female")
	require.NoError(t, err)
	assert.Equal(t, 0.0, code)

	code, err = enc.Encode("Male")
	require.NoError(t, err)
	assert.Equal(t, 1.0, code)

	_, err = enc.Encode("male")
	require.Error(t, err)
	assert.True(t, errors.Is(err, inference.ErrUnknownCategory))
	assert.True(t, errors.Is(err, inference.ErrInvalidInput))
}

func TestLabelEncoderRejectsBadClasses(t *testing.T) {
	_, err := NewLabelEncoder(nil)
	assert.Error(t, err)

	_, err = NewLabelEncoder([]string{"Male", "Male"})
	assert.Error(t, err)
}

func TestLabelEncoderSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "encoder.json")

	enc, err := NewLabelEncoder([]string{"Female", "Male"})
	require.NoError(t, err)
	require.NoError(t, enc.Save(path))

	loaded, err := LoadLabelEncoder(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Female", "Male"}, loaded.Classes())
}
