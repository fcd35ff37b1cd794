// Package domain defines the contracts dcgate expects from the client engine
// it fronts. The engine performs the actual file-sharing and chat protocol
// work; dcgate only calls into it synchronously and observes it through
// listener registration. Listener callbacks may arrive on any goroutine,
// concurrently with request handling.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// Category errors used to classify engine failures. Engine implementations
// wrap these so the API layer can translate them into status codes while
// preserving the original message.
var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")
	ErrInvalid  = errors.New("invalid")
)

// NotFoundf returns an ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// Existsf returns an ErrExists with a formatted message.
func Existsf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrExists)...)
}

// Invalidf returns an ErrInvalid with a formatted message.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalid)...)
}

// Message is one chat or status line in a message cache.
type Message struct {
	ID     uint64    `json:"id"`
	From   string    `json:"from,omitempty"`
	Text   string    `json:"text"`
	Time   time.Time `json:"time"`
	Status bool      `json:"is_status,omitempty"`
}

// Chat is the shared surface of anything with a message cache: hubs and
// private chat sessions.
type Chat interface {
	// Messages returns up to max messages from the end of the cache.
	Messages(max int) []Message
	SendMessage(text string) error
	UnreadCount() int
	SetRead()
	Clear()
}

// Hub is one established hub connection inside the engine.
type Hub interface {
	Chat

	ID() uint32
	URL() string
	Name() string
	Description() string
	UserCount() int
	ShareSize() int64
	// ConnectState is one of "connecting", "password", "connected",
	// "disconnected", "redirect".
	ConnectState() string
	RedirectURL() string

	Reconnect()
	Redirect()
	Password(password string)
	// Favorite saves the hub as a favorite; saving twice is ErrExists.
	Favorite() error
	SendStatusMessage(text string) error
}

// HubListener observes hub lifecycle and traffic. Events are delivered once
// per occurrence, in order, on an unspecified goroutine.
type HubListener interface {
	HubCreated(Hub)
	HubRemoved(Hub)
	HubUpdated(Hub)
	HubChatMessage(Hub, Message)
	HubStatusMessage(Hub, Message)
}

// HubManager is the engine's hub connection registry.
type HubManager interface {
	Hubs() []Hub
	// Connect opens a new hub connection. Connecting to an address that
	// already has a session is ErrExists.
	Connect(url string) (Hub, error)
	Disconnect(id uint32) error
	SearchNicks(pattern string, maxResults int) []string

	AddHubListener(HubListener)
	RemoveHubListener(HubListener)
}

// Filelist is one remote user's browsable file list.
type Filelist interface {
	// CID is the 39-character base32 identifier of the list's owner.
	CID() string
	User() string
	Directory() string
	// State is one of "download_pending", "downloading", "loaded".
	State() string
}

// FilelistListener observes filelist lifecycle.
type FilelistListener interface {
	FilelistCreated(Filelist)
	FilelistRemoved(Filelist)
	FilelistUpdated(Filelist)
}

// FilelistManager is the engine's filelist session registry.
type FilelistManager interface {
	Filelists() []Filelist
	// Open queues a filelist download for the given user CID. An already
	// open list is ErrExists; an unknown user is ErrNotFound.
	Open(cid, directory string) (Filelist, error)
	Close(cid string) error

	AddFilelistListener(FilelistListener)
	RemoveFilelistListener(FilelistListener)
}

// PrivateChat is one direct message session with a remote user.
type PrivateChat interface {
	Chat

	CID() string
	User() string
	HubURL() string
}

// PrivateChatListener observes private chat lifecycle and traffic.
type PrivateChatListener interface {
	ChatCreated(PrivateChat)
	ChatRemoved(PrivateChat)
	ChatUpdated(PrivateChat)
	ChatMessage(PrivateChat, Message)
}

// ChatManager is the engine's private chat registry.
type ChatManager interface {
	Chats() []PrivateChat
	// Open starts a chat with the given user CID. An existing chat is
	// ErrExists; an unknown user is ErrNotFound.
	Open(cid string) (PrivateChat, error)
	Close(cid string) error

	AddChatListener(PrivateChatListener)
	RemoveChatListener(PrivateChatListener)
}

// Extension describes one installed engine extension.
type Extension struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version,omitempty"`
	Running     bool   `json:"running"`
}

// ExtensionListener observes the extension registry.
type ExtensionListener interface {
	ExtensionAdded(Extension)
	ExtensionRemoved(Extension)
	ExtensionStarted(Extension)
	ExtensionStopped(Extension)
}

// ExtensionManager installs, removes and runs engine extensions.
type ExtensionManager interface {
	Extensions() []Extension
	Extension(name string) (Extension, error)
	Install(name, url string) (Extension, error)
	Remove(name string) error
	Start(name string) error
	Stop(name string) error

	AddExtensionListener(ExtensionListener)
	RemoveExtensionListener(ExtensionListener)
}

// Stats is a snapshot of engine-wide counters.
type Stats struct {
	ClientVersion   string `json:"client_version"`
	ActiveSessions  int    `json:"active_sessions"`
	ServerThreads   int    `json:"server_threads"`
	UptimeSeconds   int64  `json:"client_started,omitempty"`
	TotalShared     int64  `json:"share_size"`
	TotalDownloaded int64  `json:"total_downloaded"`
	TotalUploaded   int64  `json:"total_uploaded"`
}

// SystemListener observes engine-wide state changes.
type SystemListener interface {
	AwayChanged(away bool)
}

// SystemMonitor exposes engine-wide state.
type SystemMonitor interface {
	Stats() Stats
	Away() bool
	SetAway(away bool)

	AddSystemListener(SystemListener)
	RemoveSystemListener(SystemListener)
}

// FilesystemItem is one entry in a local directory listing.
type FilesystemItem struct {
	Name      string `json:"name"`
	Directory bool   `json:"is_directory"`
	Size      int64  `json:"size,omitempty"`
}

// Filesystem gives modules controlled access to the local disk, used for
// picking download targets.
type Filesystem interface {
	ListItems(path string, directoriesOnly bool) ([]FilesystemItem, error)
	MakeDirectory(path string) error
}

// WebUser is one account in the gateway's own user directory.
type WebUser struct {
	Username  string    `json:"username"`
	Admin     bool      `json:"admin"`
	LastLogin time.Time `json:"last_login,omitempty"`
}

// WebUserPatch updates selected fields of a WebUser.
type WebUserPatch struct {
	Password *string `json:"password,omitempty"`
	Admin    *bool   `json:"admin,omitempty"`
}

// WebUserListener observes the user directory.
type WebUserListener interface {
	WebUserAdded(WebUser)
	WebUserUpdated(WebUser)
	WebUserRemoved(WebUser)
}

// UserDirectory manages the gateway's own accounts. Unlike the other
// collaborators it is implemented inside dcgate (over the store), but modules
// consume it through the same listener contract.
type UserDirectory interface {
	Users() ([]WebUser, error)
	User(username string) (WebUser, error)
	Add(username, password string, admin bool) (WebUser, error)
	Update(username string, patch WebUserPatch) (WebUser, error)
	Remove(username string) error

	AddWebUserListener(WebUserListener)
	RemoveWebUserListener(WebUserListener)
}
