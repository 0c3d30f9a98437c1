package chunk

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/saracen/walker"
)

// Entry is a chunk file found on disk.
type Entry struct {
	Name FileName
	Path string
}

// List returns the chunk files directly inside dir sorted by (order, seq).
// Subdirectories and files that are not chunk files are ignored.
func List(dir string) ([]Entry, error) {
	var (
		mu      sync.Mutex
		entries []Entry
	)

	root := filepath.Clean(dir)

	walkFn := func(pathname string, fi os.FileInfo) error {
		if fi.IsDir() {
			if filepath.Clean(pathname) == root {
				return nil
			}
			return filepath.SkipDir
		}

		if !strings.EqualFold(filepath.Ext(pathname), Ext) {
			return nil
		}

		name, err := ParseFileName(pathname)
		if err != nil {
			return nil
		}

		mu.Lock()
		entries = append(entries, Entry{Name: name, Path: pathname})
		mu.Unlock()

		return nil
	}

	if err := walker.Walk(root, walkFn); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name.Less(entries[j].Name)
	})

	return entries, nil
}
