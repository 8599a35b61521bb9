package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const (
	// IndexExt is the extension of vector index files.
	IndexExt = ".faiss"
	// MetaExt replaces IndexExt to name the metadata sidecar.
	MetaExt = ".meta.json"
)

var (
	// ErrInvalidLocation is returned when a reference names neither a path nor a base directory and name.
	ErrInvalidLocation = errors.New("invalid index location")
	// ErrInvalidName is returned when a name is empty after sanitizing.
	ErrInvalidName = errors.New("invalid index name")
	// ErrNotFound is returned when an index file or base directory does not exist.
	ErrNotFound = errors.New("not found")
)

// Location is the resolved pair of files of one index.
type Location struct {
	IndexPath string
	MetaPath  string
}

// Name returns the index name, the file stem of IndexPath.
func (l Location) Name() string {
	return strings.TrimSuffix(filepath.Base(l.IndexPath), IndexExt)
}

// LockPath returns the path used for cross-process advisory locks.
func (l Location) LockPath() string {
	return l.IndexPath + ".lock"
}

// CreateLocation references an index to be created: either Path, or BaseDir
// together with Name.
type CreateLocation struct {
	Path    string
	BaseDir string
	Name    string
}

// Entry is one index found by List.
type Entry struct {
	Name string
	Path string
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeName replaces every run of characters outside [A-Za-z0-9._-] with
// "-" and strips leading and trailing ".", "-" and "_".
func SanitizeName(name string) (string, error) {
	normalized := unsafeNameChars.ReplaceAllString(strings.TrimSpace(name), "-")
	normalized = strings.Trim(normalized, ".-_")
	if normalized == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return normalized, nil
}

// Canonicalize expands a leading "~", makes path absolute and clean, and
// replaces its extension with IndexExt (appending it if there is none).
func Canonicalize(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidLocation)
	}
	expanded, err := expandHome(path)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidLocation, err)
	}
	if ext := filepath.Ext(abs); ext != IndexExt {
		abs = strings.TrimSuffix(abs, ext) + IndexExt
	}
	return abs, nil
}

// MetaPath returns the sidecar path of an index file.
func MetaPath(indexPath string) string {
	return strings.TrimSuffix(indexPath, filepath.Ext(indexPath)) + MetaExt
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidLocation, err)
	}
	return filepath.Join(home, path[1:]), nil
}

func locationFor(indexPath string) Location {
	return Location{IndexPath: indexPath, MetaPath: MetaPath(indexPath)}
}

// ResolveForCreate resolves the location of an index that is about to be
// created. It does not touch the filesystem.
func ResolveForCreate(req CreateLocation) (Location, error) {
	if strings.TrimSpace(req.Path) != "" {
		p, err := Canonicalize(req.Path)
		if err != nil {
			return Location{}, err
		}
		return locationFor(p), nil
	}

	if strings.TrimSpace(req.BaseDir) == "" || strings.TrimSpace(req.Name) == "" {
		return Location{}, fmt.Errorf("%w: provide either a path or both base dir and name", ErrInvalidLocation)
	}
	name, err := SanitizeName(req.Name)
	if err != nil {
		return Location{}, err
	}
	base, err := expandHome(req.BaseDir)
	if err != nil {
		return Location{}, err
	}
	p, err := Canonicalize(filepath.Join(base, name))
	if err != nil {
		return Location{}, err
	}
	return locationFor(p), nil
}

// ResolveForAccess resolves an existing index. It fails with ErrNotFound if
// the index file does not exist.
func ResolveForAccess(path string) (Location, error) {
	p, err := Canonicalize(path)
	if err != nil {
		return Location{}, err
	}
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return Location{}, fmt.Errorf("%w: index %s", ErrNotFound, p)
	}
	return locationFor(p), nil
}

// List returns every index file below baseDir, sorted by full path. Only the
// top level is searched unless recursive is set.
func List(baseDir string, recursive bool) (string, []Entry, error) {
	if strings.TrimSpace(baseDir) == "" {
		return "", nil, fmt.Errorf("%w: empty base dir", ErrInvalidLocation)
	}
	expanded, err := expandHome(baseDir)
	if err != nil {
		return "", nil, err
	}
	root, err := filepath.Abs(expanded)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidLocation, err)
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return root, nil, fmt.Errorf("%w: base dir %s", ErrNotFound, root)
	}

	entries := []Entry{}
	add := func(path string, d fs.DirEntry) {
		if filepath.Ext(path) == IndexExt && isFile(path, d) {
			entries = append(entries, Entry{
				Name: strings.TrimSuffix(d.Name(), IndexExt),
				Path: path,
			})
		}
	}

	if recursive {
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// Unreadable subtrees are skipped.
				if d != nil && d.IsDir() && path != root {
					return fs.SkipDir
				}
				return err
			}
			add(path, d)
			return nil
		})
	} else {
		var des []os.DirEntry
		des, err = os.ReadDir(root)
		for _, d := range des {
			add(filepath.Join(root, d.Name()), d)
		}
	}
	if err != nil {
		return root, nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return root, entries, nil
}

// isFile reports whether d is a regular file, following symlinks.
func isFile(path string, d fs.DirEntry) bool {
	if d.Type()&fs.ModeSymlink == 0 {
		return d.Type().IsRegular()
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
