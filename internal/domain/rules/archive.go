package rules

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
)

// maxReadBytes bounds how much of a single file content rules will read.
const maxReadBytes = 8 << 20

// Archive is a read-only view of a zip submission. An archive whose
// listing could not be read still reports its size, so size rules keep
// working on anything that was uploaded.
type Archive struct {
	Size    int64
	files   map[string]*zip.File
	paths   []string
	dirs    map[string]map[string]entryKind
	readErr error
}

type entryKind int

const (
	kindFile entryKind = iota + 1
	kindFolder
)

// NewArchive reads the zip directory of r. It never fails: listing errors
// are kept and reported by the rules that need the content.
func NewArchive(r io.ReaderAt, size int64) *Archive {
	a := &Archive{
		Size:  size,
		files: map[string]*zip.File{},
		dirs:  map[string]map[string]entryKind{"": {}},
	}
	zr, err := zip.NewReader(r, size)
	if err != nil {
		a.readErr = fmt.Errorf("archive is not a readable zip file: %w", err)
		return a
	}
	for _, f := range zr.File {
		name := cleanPath(f.Name)
		if name == "" || isMetadata(name) {
			continue
		}
		if f.FileInfo().IsDir() {
			a.addDir(name)
			continue
		}
		a.files[name] = f
		a.paths = append(a.paths, name)
		dir, base := path.Split(name)
		dir = strings.TrimSuffix(dir, "/")
		a.addDir(dir)
		a.dirs[dir][base] = kindFile
	}
	sort.Strings(a.paths)
	return a
}

// Err returns the listing error, if any.
func (a *Archive) Err() error { return a.readErr }

// Paths returns every file path in the archive, sorted.
func (a *Archive) Paths() []string { return a.paths }

func (a *Archive) addDir(dir string) {
	for dir != "" {
		parent, base := path.Split(dir)
		parent = strings.TrimSuffix(parent, "/")
		if a.dirs[dir] == nil {
			a.dirs[dir] = map[string]entryKind{}
		}
		if a.dirs[parent] == nil {
			a.dirs[parent] = map[string]entryKind{}
		}
		if _, linked := a.dirs[parent][base]; linked {
			return
		}
		a.dirs[parent][base] = kindFolder
		dir = parent
	}
}

// Find resolves name to a file path. An exact path wins; otherwise the
// first file, in sorted order, whose base name equals name.
func (a *Archive) Find(name string) (string, bool) {
	name = cleanPath(name)
	if _, ok := a.files[name]; ok {
		return name, true
	}
	for _, p := range a.paths {
		if path.Base(p) == name || strings.HasSuffix(p, "/"+name) {
			return p, true
		}
	}
	return "", false
}

// ReadFile returns up to maxReadBytes of the file at p.
func (a *Archive) ReadFile(p string) ([]byte, error) {
	f, ok := a.files[p]
	if !ok {
		return nil, fmt.Errorf("file %q not found in archive", p)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxReadBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return data, nil
}

// children lists the entries directly under dir.
func (a *Archive) children(dir string) map[string]entryKind {
	return a.dirs[dir]
}

// wrapperDir returns the single top-level folder when the archive puts
// everything inside one, which is how most tools zip a project directory.
func (a *Archive) wrapperDir() (string, bool) {
	root := a.dirs[""]
	if len(root) != 1 {
		return "", false
	}
	for name, kind := range root {
		if kind == kindFolder {
			return name, true
		}
	}
	return "", false
}

func cleanPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	p = strings.Trim(p, "/")
	if p == "" || p == "." {
		return ""
	}
	return path.Clean(p)
}

func isMetadata(p string) bool {
	return strings.HasPrefix(p, "__MACOSX") || path.Base(p) == ".DS_Store"
}
