package memory

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dcgate/dcgate/internal/domain"
)

// Filesystem implements domain.Filesystem over the local disk.
type Filesystem struct {
	// Root confines all paths when set; "" means no confinement.
	Root string
}

func (f *Filesystem) resolve(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return "", domain.Invalidf("path %s: not absolute", path)
	}
	if f.Root == "" {
		return path, nil
	}
	full := filepath.Join(f.Root, path)
	rel, err := filepath.Rel(f.Root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", domain.Invalidf("path %s: outside root", path)
	}
	return full, nil
}

func (f *Filesystem) ListItems(path string, directoriesOnly bool) ([]domain.FilesystemItem, error) {
	full, err := f.resolve(path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.NotFoundf("directory %s", path)
	}
	if err != nil {
		return nil, err
	}

	items := make([]domain.FilesystemItem, 0, len(entries))
	for _, entry := range entries {
		if directoriesOnly && !entry.IsDir() {
			continue
		}
		item := domain.FilesystemItem{Name: entry.Name(), Directory: entry.IsDir()}
		if !entry.IsDir() {
			if info, err := entry.Info(); err == nil {
				item.Size = info.Size()
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func (f *Filesystem) MakeDirectory(path string) error {
	full, err := f.resolve(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(full); err == nil {
		return domain.Existsf("directory %s", path)
	}
	return os.MkdirAll(full, 0o755)
}
