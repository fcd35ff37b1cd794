// Package memory is an in-memory engine implementation. It backs the binary
// when no real client engine is attached and the test suites everywhere. All
// state transitions are synchronous: a call that causes an event fires the
// listeners before it returns.
package memory

import (
	"log/slog"
	"sync"
)

// Engine bundles in-memory implementations of every engine collaborator.
type Engine struct {
	Hubs       *HubManager
	Filelists  *FilelistManager
	Chats      *ChatManager
	Extensions *ExtensionManager
	System     *SystemMonitor
	Filesystem *Filesystem

	mu    sync.RWMutex
	users map[string]string // CID -> nick
}

// New creates an empty engine.
func New(log *slog.Logger) *Engine {
	e := &Engine{
		users: make(map[string]string),
	}
	e.Hubs = newHubManager(log)
	e.Filelists = newFilelistManager(e)
	e.Chats = newChatManager(e)
	e.Extensions = newExtensionManager()
	e.System = newSystemMonitor()
	e.Filesystem = &Filesystem{}
	return e
}

// AddUser registers a known remote user, making it reachable for filelist
// and private chat sessions.
func (e *Engine) AddUser(cid, nick string) {
	e.mu.Lock()
	e.users[cid] = nick
	e.mu.Unlock()
}

func (e *Engine) userNick(cid string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	nick, ok := e.users[cid]
	return nick, ok
}
