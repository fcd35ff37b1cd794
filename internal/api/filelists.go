package api

import (
	"log/slog"
	"net/http"

	"github.com/dcgate/dcgate/internal/domain"
)

var (
	filelistSubscriptions = []string{
		"filelist_created",
		"filelist_removed",
	}
	filelistSessionSubscriptions = []string{
		"filelist_updated",
	}
)

// FilelistsModule exposes open remote file lists, one child per list keyed by
// the owning user's CID.
type FilelistsModule struct {
	*ParentModule
	lists domain.FilelistManager
}

// NewFilelistsModule builds the module and syncs children with lists already
// open in the engine.
func NewFilelistsModule(log *slog.Logger, lists domain.FilelistManager) *FilelistsModule {
	m := &FilelistsModule{
		ParentModule: NewParentModule(log.With("module", "filelists"), 0,
			"session", HashParam, HashKey, filelistSubscriptions, filelistSessionSubscriptions),
		lists: lists,
	}

	m.Handle("sessions", http.MethodGet, nil, false, m.handleGetLists)
	m.Handle("session", http.MethodPost, nil, true, m.handleOpenList)
	m.Handle("session", http.MethodDelete, []ParamMatcher{HashParam}, false, m.handleCloseList)

	m.lists.AddFilelistListener(m)
	for _, list := range m.lists.Filelists() {
		m.addList(list)
	}
	return m
}

// Destroy unregisters the engine listener before the module goes away.
func (m *FilelistsModule) Destroy() {
	m.lists.RemoveFilelistListener(m)
}

func (m *FilelistsModule) addList(list domain.Filelist) {
	child := NewSubModule(m.ParentModule, list.CID())

	child.Handle("directory", http.MethodGet, nil, false, func(req *Request) (any, error) {
		return map[string]any{"path": list.Directory(), "state": list.State()}, nil
	})

	m.AddChild(child.ID(), child)
}

func serializeFilelist(list domain.Filelist) map[string]any {
	return map[string]any{
		"id":        list.CID(),
		"user":      list.User(),
		"directory": list.Directory(),
		"state":     list.State(),
	}
}

func (m *FilelistsModule) handleGetLists(req *Request) (any, error) {
	lists := m.lists.Filelists()
	out := make([]map[string]any, 0, len(lists))
	for _, list := range lists {
		out = append(out, serializeFilelist(list))
	}
	return out, nil
}

func (m *FilelistsModule) handleOpenList(req *Request) (any, error) {
	cid, err := requiredField[string](req.Body, "cid")
	if err != nil {
		return nil, err
	}
	if !HashParam.Match(cid) {
		return nil, domain.Invalidf("field cid: not a valid CID")
	}
	directory, err := optionalField[string](req.Body, "directory")
	if err != nil {
		return nil, err
	}

	list, err := m.lists.Open(cid, directory)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": list.CID()}, nil
}

func (m *FilelistsModule) handleCloseList(req *Request) (any, error) {
	return nil, m.lists.Close(req.Param(0))
}

// FilelistCreated mirrors the new list as a child module and announces it.
func (m *FilelistsModule) FilelistCreated(list domain.Filelist) {
	m.addList(list)
	m.Send("filelist_created", serializeFilelist(list))
}

// FilelistRemoved drops the child.
func (m *FilelistsModule) FilelistRemoved(list domain.Filelist) {
	m.RemoveChild(list.CID())
	m.Send("filelist_removed", map[string]any{"id": list.CID()})
}

// FilelistUpdated forwards state changes under the child event name.
func (m *FilelistsModule) FilelistUpdated(list domain.Filelist) {
	m.Send("filelist_updated", serializeFilelist(list))
}
