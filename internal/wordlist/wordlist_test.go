package wordlist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	w, err := Parse(strings.NewReader("Viagra\n\nfree money\nviagra\n  act now  \n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"viagra", "free money", "act now"}, w.Words())
	assert.Equal(t, 3, w.Len())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	require.NoError(t, os.WriteFile(path, []byte("spam\neggs\n"), 0o644))

	w, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"spam", "eggs"}, w.Words())

	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestNilWordlist(t *testing.T) {
	var w *Wordlist
	assert.Nil(t, w.Words())
	assert.Zero(t, w.Len())
}
