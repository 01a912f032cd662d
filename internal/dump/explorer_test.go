package dump

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExplorer_QuitFirst(t *testing.T) {
	m := setupTestTree(t)
	dir := t.TempDir()

	var out bytes.Buffer
	x := NewExplorer(m, strings.NewReader("q\n"), &out)
	require.NoError(t, x.Run(""))

	assert.Equal(t, "[0] A\n[1] MSysObjects\n[2] E\nInspect?: \n", out.String())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExplorer_DescendAndExtract(t *testing.T) {
	m := setupTestTree(t)
	target := filepath.Join(t.TempDir(), "d.bin")

	var out bytes.Buffer
	x := NewExplorer(m, strings.NewReader("0\n1\n0\n"+target+"\n"), &out)
	require.NoError(t, x.Run(""))

	assert.Equal(t, "A/C", x.Frame().Path)
	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xd0, 0xcf}, 5120), got)

	text := out.String()
	assert.Contains(t, text, "[0] B\n[1] C\nInspect?: \n")
	assert.Contains(t, text, "Stream dump location: \n")
	assert.Contains(t, text, "Dumping stream [D] to ["+target+"]")
}

func TestExplorer_ExtractRefusesExistingFile(t *testing.T) {
	m := setupTestTree(t)
	target := filepath.Join(t.TempDir(), "exists")
	require.NoError(t, os.WriteFile(target, []byte("keep"), 0o644))

	x := NewExplorer(m, strings.NewReader("1\n"+target+"\n"), io.Discard)
	assert.ErrorIs(t, x.Run(""), os.ErrExist)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(got))
}

func TestExplorer_BadSelection(t *testing.T) {
	tests := []string{"x", "-1", "+1", "3", "1.0", ""}

	for _, input := range tests {
		m := setupTestTree(t)
		x := NewExplorer(m, strings.NewReader(input+"\n0\n"), io.Discard)
		assert.ErrorIs(t, x.Run(""), ErrBadSelection, "input %q", input)
	}
}

func TestExplorer_BackDisabledByDefault(t *testing.T) {
	m := setupTestTree(t)

	x := NewExplorer(m, strings.NewReader("0\n..\n"), io.Discard)
	assert.ErrorIs(t, x.Run(""), ErrBadSelection)
}

func TestExplorer_Back(t *testing.T) {
	m := setupTestTree(t)

	var out bytes.Buffer
	x := NewExplorer(m, strings.NewReader("0\n..\n..\nq\n"), &out)
	x.AllowBack = true
	require.NoError(t, x.Run(""))

	assert.Equal(t, "", x.Frame().Path)
	assert.Equal(t, 3, strings.Count(out.String(), "[0] A\n"))
}

func TestExplorer_EOF(t *testing.T) {
	m := setupTestTree(t)

	x := NewExplorer(m, strings.NewReader(""), io.Discard)
	assert.ErrorIs(t, x.Run(""), io.ErrUnexpectedEOF)

	// a final line without newline still counts
	x = NewExplorer(m, strings.NewReader("q"), io.Discard)
	assert.NoError(t, x.Run(""))
}

func TestExplorer_CustomQuit(t *testing.T) {
	m := setupTestTree(t)

	x := NewExplorer(m, strings.NewReader("exit\n"), io.Discard)
	x.Quit = "exit"
	assert.NoError(t, x.Run(""))
}
