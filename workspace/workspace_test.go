package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datalyze-ai/datalyze/core"
)

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	root := t.TempDir()
	return New(filepath.Join(root, "data"), filepath.Join(root, "output"))
}

func writeTempDataset(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCopiesToWorkingCopy(t *testing.T) {
	ws := newTestWorkspace(t)
	src := writeTempDataset(t, "sales.csv", "region,amount\nnorth,10\n")

	dest, err := ws.Load(src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws.DataDir(), "current_data.csv"), dest)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "region,amount\nnorth,10\n", string(data))

	current, ok := ws.CurrentDataset()
	assert.True(t, ok)
	assert.Equal(t, dest, current)
}

func TestLoadMissingFileReturnsNotFound(t *testing.T) {
	ws := newTestWorkspace(t)

	// Extension is unsupported too, but existence is checked first.
	_, err := ws.Load(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)

	var notFound *core.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	ws := newTestWorkspace(t)
	src := writeTempDataset(t, "notes.txt", "hello")

	_, err := ws.Load(src)
	require.Error(t, err)

	var unsupported *core.UnsupportedFormatError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, ".txt", unsupported.Extension)
}

func TestLoadLastWins(t *testing.T) {
	ws := newTestWorkspace(t)
	first := writeTempDataset(t, "a.csv", "x\n1\n")
	second := writeTempDataset(t, "b.json", `[{"x":1}]`)

	_, err := ws.Load(first)
	require.NoError(t, err)
	dest, err := ws.Load(second)
	require.NoError(t, err)

	current, ok := ws.CurrentDataset()
	assert.True(t, ok)
	assert.Equal(t, dest, current)
	assert.Equal(t, filepath.Join(ws.DataDir(), "current_data.json"), current)
}

func TestSaveCodeDefaultFilename(t *testing.T) {
	ws := newTestWorkspace(t)

	path, err := ws.SaveCode("print('hi')", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws.OutputDir(), DefaultCodeFilename), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "print('hi')", string(data))
}

func TestSaveCodeRejectsEmptyCode(t *testing.T) {
	ws := newTestWorkspace(t)

	_, err := ws.SaveCode("   \n\t", "analysis.py")
	require.Error(t, err)

	var invalid *core.InvalidInputError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "code", invalid.Field)
}

func TestSaveCodeRejectsPathTraversal(t *testing.T) {
	ws := newTestWorkspace(t)

	_, err := ws.SaveCode("print('hi')", "../escape.py")
	require.Error(t, err)

	var invalid *core.InvalidInputError
	assert.ErrorAs(t, err, &invalid)
}

func TestCleanupIsIdempotent(t *testing.T) {
	ws := newTestWorkspace(t)
	src := writeTempDataset(t, "a.csv", "x\n1\n")
	_, err := ws.Load(src)
	require.NoError(t, err)
	_, err = ws.SaveCode("print('hi')", "")
	require.NoError(t, err)

	require.NoError(t, ws.Cleanup())
	require.NoError(t, ws.Cleanup())

	_, ok := ws.CurrentDataset()
	assert.False(t, ok)
	_, err = os.Stat(ws.DataDir())
	assert.True(t, os.IsNotExist(err))
}
