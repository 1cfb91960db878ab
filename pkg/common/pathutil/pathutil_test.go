package pathutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafePath(t *testing.T) {
	base := t.TempDir()

	p, err := SafePath(base, "backup-1.enc")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "backup-1.enc"), p)

	_, err = SafePath(base, "../escape")
	assert.ErrorIs(t, err, ErrPathTraversal)

	_, err = SafePath(base, "/etc/passwd")
	assert.ErrorIs(t, err, ErrAbsolutePath)
}

func TestValidateFilePath(t *testing.T) {
	assert.NoError(t, ValidateFilePath("./data/archive"))
	assert.NoError(t, ValidateFilePath("/var/lib/signer"))
	assert.NoError(t, ValidateFilePath("data/a..b"))
	assert.ErrorIs(t, ValidateFilePath("../archive"), ErrPathTraversal)
}
