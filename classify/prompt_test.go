package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPrompt(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "phase2.txt")
	require.NoError(t, os.WriteFile(good, []byte("Classify the request.\n"), 0o644))
	got, err := LoadPrompt(good)
	require.NoError(t, err)
	assert.Equal(t, "Classify the request.\n", got, "content is returned verbatim")

	blank := filepath.Join(dir, "blank.txt")
	require.NoError(t, os.WriteFile(blank, []byte(" \n\t"), 0o644))
	_, err = LoadPrompt(blank)
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	_, err = LoadPrompt(filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
