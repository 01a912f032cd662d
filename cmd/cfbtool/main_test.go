package main

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CageChen/cfbtool/internal/cfb"
	"github.com/CageChen/cfbtool/internal/dump"
	"github.com/CageChen/cfbtool/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestContainer writes doc.cfb with a root stream Data (100 bytes) and
// a storage Macros holding the stream dir.
func setupTestContainer(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	m := storage.NewMemContainer()
	require.NoError(t, m.AddStream("Data", bytes.Repeat([]byte{'d'}, 100)))
	require.NoError(t, m.AddStorage("Macros", uuid.Nil))
	require.NoError(t, m.AddStream("Macros/dir", []byte("attribute")))

	path := filepath.Join(t.TempDir(), "doc.cfb")
	require.NoError(t, cfb.Create(path, m))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCommand(strings.NewReader(stdin), &out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCat(t *testing.T) {
	doc := setupTestContainer(t)

	out, err := run(t, "", "cat", doc+":Data", doc+":Macros/dir")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("d", 100)+"attribute", out)
}

func TestCat_Errors(t *testing.T) {
	doc := setupTestContainer(t)

	_, err := run(t, "", "cat", doc+":Macros")
	assert.ErrorIs(t, err, storage.ErrNotStream)

	_, err = run(t, "", "cat", doc+":Nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = run(t, "", "cat", filepath.Join(t.TempDir(), "missing.cfb"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLs(t *testing.T) {
	doc := setupTestContainer(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"root", []string{"ls", doc}, "Data\nMacros\n"},
		{"all", []string{"ls", "-a", doc}, ".\nData\nMacros\n"},
		{"storage", []string{"ls", doc + ":Macros"}, "dir\n"},
		{"stream", []string{"ls", doc + ":/Macros/dir"}, "dir\n"},
		{"long stream", []string{"ls", "-l", doc + ":Data"}, "-00000000       100 B    1970-01-01   Data\n"},
		{"several", []string{"ls", doc + ":Macros", doc + ":Data"}, "dir\nData\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, "", tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestLs_ConfigDefaults(t *testing.T) {
	doc := setupTestContainer(t)
	cfgFile := filepath.Join(t.TempDir(), "cfbtool.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("all: true\n"), 0o644))

	out, err := run(t, "", "--config", cfgFile, "ls", doc+":Macros")
	require.NoError(t, err)
	assert.Equal(t, ".\ndir\n", out)

	out, err = run(t, "", "--config", cfgFile, "ls", "--all=false", doc+":Macros")
	require.NoError(t, err)
	assert.Equal(t, "dir\n", out)
}

func TestConfig_MissingExplicitFile(t *testing.T) {
	doc := setupTestContainer(t)

	_, err := run(t, "", "--config", filepath.Join(t.TempDir(), "nope.yaml"), "ls", doc)
	assert.Error(t, err)
}

func TestChcls(t *testing.T) {
	doc := setupTestContainer(t)
	const id = "00020906-0000-0000-c000-000000000046"

	_, err := run(t, "", "chcls", id, doc+":Macros")
	require.NoError(t, err)

	out, err := run(t, "", "ls", "-la", doc+":Macros")
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.True(t, strings.HasPrefix(lines[0], "+"))
	assert.True(t, strings.HasSuffix(lines[0], "."))
	assert.Equal(t, " "+id, lines[1])
}

func TestChcls_Errors(t *testing.T) {
	doc := setupTestContainer(t)

	_, err := run(t, "", "chcls", "not-a-guid", doc)
	assert.ErrorContains(t, err, "invalid class id")

	_, err = run(t, "", "chcls", uuid.NewString(), doc+":Data")
	assert.ErrorIs(t, err, storage.ErrNotStorage)
}

func TestDumpAll(t *testing.T) {
	doc := setupTestContainer(t)
	dest := filepath.Join(t.TempDir(), "root")

	out, err := run(t, "", "dump", "--all", "-o", dest, doc)
	require.NoError(t, err)
	assert.Contains(t, out, "Dumping stream [dir] to ["+filepath.Join(dest, "Macros", "dir.dump")+"]")

	data, err := os.ReadFile(filepath.Join(dest, "Data.dump"))
	require.NoError(t, err)
	assert.Len(t, data, 100)
	data, err = os.ReadFile(filepath.Join(dest, "Macros", "dir.dump"))
	require.NoError(t, err)
	assert.Equal(t, "attribute", string(data))

	_, err = run(t, "", "dump", "--all", "-o", dest, doc)
	assert.ErrorIs(t, err, fs.ErrExist)
}

func TestDumpExplorer(t *testing.T) {
	doc := setupTestContainer(t)
	dest := filepath.Join(t.TempDir(), "dir.bin")

	out, err := run(t, "1\n0\n"+dest+"\n", "dump", doc)
	require.NoError(t, err)
	assert.Equal(t, "[0] Data\n[1] Macros\nInspect?: \n[0] dir\nInspect?: \nStream dump location: \n"+
		"Dumping stream [dir] to ["+dest+"]\n", out)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "attribute", string(data))
}

func TestDumpExplorer_BadSelection(t *testing.T) {
	doc := setupTestContainer(t)

	_, err := run(t, "7\n", "dump", doc)
	assert.ErrorIs(t, err, dump.ErrBadSelection)

	_, err = run(t, "..\n", "dump", doc)
	assert.ErrorIs(t, err, dump.ErrBadSelection)

	_, err = run(t, "1\n..\nq\n", "dump", "--back", doc)
	assert.NoError(t, err)
}
