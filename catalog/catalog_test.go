package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  bool
	}{
		{"docs", "docs", false},
		{"My Docs!", "My-Docs", false},
		{"  spaced  ", "spaced", false},
		{"../../etc/passwd", "etc-passwd", false},
		{"a/b\\c", "a-b-c", false},
		{"_.hidden-", "hidden", false},
		{"v1.2_final", "v1.2_final", false},
		{"äöü", "", true},
		{"...", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := SanitizeName(tt.in)
			if tt.err {
				assert.ErrorIs(t, err, ErrInvalidName)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalize(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		in   string
		want string
	}{
		{filepath.Join(dir, "a"), filepath.Join(dir, "a.faiss")},
		{filepath.Join(dir, "a.faiss"), filepath.Join(dir, "a.faiss")},
		{filepath.Join(dir, "a.index"), filepath.Join(dir, "a.faiss")},
		{filepath.Join(dir, "sub", "..", "b"), filepath.Join(dir, "b.faiss")},
	}
	for _, tt := range tests {
		got, err := Canonicalize(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := Canonicalize("   ")
	assert.ErrorIs(t, err, ErrInvalidLocation)

	home, err := os.UserHomeDir()
	if err == nil {
		got, err := Canonicalize("~/idx")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "idx.faiss"), got)
	}

	rel, err := Canonicalize("rel")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(rel))
}

func TestMetaPath(t *testing.T) {
	assert.Equal(t, "/x/docs.meta.json", MetaPath("/x/docs.faiss"))
	loc := Location{IndexPath: "/x/docs.faiss"}
	assert.Equal(t, "docs", loc.Name())
	assert.Equal(t, "/x/docs.faiss.lock", loc.LockPath())
}

func TestResolveForCreate(t *testing.T) {
	dir := t.TempDir()

	t.Run("PathWins", func(t *testing.T) {
		loc, err := ResolveForCreate(CreateLocation{Path: filepath.Join(dir, "p"), BaseDir: "/ignored", Name: "ignored"})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "p.faiss"), loc.IndexPath)
		assert.Equal(t, filepath.Join(dir, "p.meta.json"), loc.MetaPath)
	})

	t.Run("BaseDirAndName", func(t *testing.T) {
		loc, err := ResolveForCreate(CreateLocation{BaseDir: dir, Name: "My Index"})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "My-Index.faiss"), loc.IndexPath)
	})

	t.Run("NameCannotEscape", func(t *testing.T) {
		loc, err := ResolveForCreate(CreateLocation{BaseDir: dir, Name: "../../escape"})
		require.NoError(t, err)
		assert.Equal(t, dir, filepath.Dir(loc.IndexPath))
	})

	t.Run("Missing", func(t *testing.T) {
		for _, req := range []CreateLocation{{}, {BaseDir: dir}, {Name: "x"}, {Path: "  ", BaseDir: " ", Name: "x"}} {
			_, err := ResolveForCreate(req)
			assert.ErrorIs(t, err, ErrInvalidLocation)
		}
	})

	t.Run("InvalidName", func(t *testing.T) {
		_, err := ResolveForCreate(CreateLocation{BaseDir: dir, Name: "!!!"})
		assert.ErrorIs(t, err, ErrInvalidName)
	})
}

func TestResolveForAccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docs.faiss")

	_, err := ResolveForAccess(path)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, os.WriteFile(path, nil, 0644))
	loc, err := ResolveForAccess(filepath.Join(dir, "docs"))
	require.NoError(t, err)
	assert.Equal(t, path, loc.IndexPath)

	_, err = ResolveForAccess("")
	assert.ErrorIs(t, err, ErrInvalidLocation)

	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir.faiss"), 0755))
	_, err = ResolveForAccess(filepath.Join(dir, "dir.faiss"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"b.faiss", "a.faiss", "a.meta.json", "notes.txt", "sub/c.faiss", "sub/deeper/d.faiss"} {
		full := filepath.Join(dir, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir.faiss"), 0755))

	t.Run("Recursive", func(t *testing.T) {
		root, entries, err := List(dir, true)
		require.NoError(t, err)
		assert.Equal(t, dir, root)
		assert.Equal(t, []Entry{
			{Name: "a", Path: filepath.Join(dir, "a.faiss")},
			{Name: "b", Path: filepath.Join(dir, "b.faiss")},
			{Name: "c", Path: filepath.Join(dir, "sub", "c.faiss")},
			{Name: "d", Path: filepath.Join(dir, "sub", "deeper", "d.faiss")},
		}, entries)
	})

	t.Run("TopLevel", func(t *testing.T) {
		_, entries, err := List(dir, false)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "a", entries[0].Name)
		assert.Equal(t, "b", entries[1].Name)
	})

	t.Run("Empty", func(t *testing.T) {
		_, entries, err := List(t.TempDir(), true)
		require.NoError(t, err)
		assert.NotNil(t, entries)
		assert.Empty(t, entries)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, _, err := List(filepath.Join(dir, "missing"), true)
		assert.ErrorIs(t, err, ErrNotFound)

		_, _, err = List(filepath.Join(dir, "notes.txt"), true)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
