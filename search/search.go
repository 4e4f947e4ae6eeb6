// Package search locates Green's function store directories on local
// disk, the way the Engine resolves a store id to a path before opening
// it (spec.md §4.5 "get_store").
package search

import (
	"io/fs"
	"os"
	"path/filepath"
)

// storeMarkerFiles are the files every valid store directory must
// contain; their simultaneous presence is how FindStoreDirs tells a
// store directory apart from an arbitrary directory during the walk.
var storeMarkerFiles = []string{"config", "index", "traces"}

// FindStoreDirs walks root and returns every directory that looks like a
// store directory (contains config, index and traces). Unlike the
// teacher's TileDB-VFS-backed trawl, this only ever walks the local
// filesystem: a Store is opened via a real OS mmap, so a store directory
// discovered on a remote VFS target could never be opened downstream
// anyway (see DESIGN.md).
func FindStoreDirs(root string) ([]string, error) {
	var found []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if isStoreDir(path) {
			found = append(found, path)
			return fs.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return found, nil
}

func isStoreDir(dir string) bool {
	for _, name := range storeMarkerFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}
