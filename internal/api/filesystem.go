package api

import (
	"log/slog"
	"net/http"

	"github.com/dcgate/dcgate/internal/domain"
)

// FilesystemModule gives clients controlled access to the local disk for
// picking download targets.
type FilesystemModule struct {
	*Module
	fs domain.Filesystem
}

// NewFilesystemModule builds the filesystem module.
func NewFilesystemModule(log *slog.Logger, fs domain.Filesystem) *FilesystemModule {
	m := &FilesystemModule{
		Module: NewModule(log.With("module", "filesystem"), 0),
		fs:     fs,
	}

	m.Handle("list_items", http.MethodPost, nil, true, m.handleListItems)
	m.Handle("directory", http.MethodPost, nil, true, m.handleMakeDirectory)

	return m
}

func (m *FilesystemModule) handleListItems(req *Request) (any, error) {
	path, err := requiredField[string](req.Body, "path")
	if err != nil {
		return nil, err
	}
	dirsOnly, err := optionalField[bool](req.Body, "directories_only")
	if err != nil {
		return nil, err
	}
	items, err := m.fs.ListItems(path, dirsOnly)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (m *FilesystemModule) handleMakeDirectory(req *Request) (any, error) {
	path, err := requiredField[string](req.Body, "path")
	if err != nil {
		return nil, err
	}
	return nil, m.fs.MakeDirectory(path)
}
