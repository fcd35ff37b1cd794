package api

import (
	"log/slog"
	"net/http"

	"github.com/dcgate/dcgate/internal/domain"
)

var userSubscriptions = []string{
	"web_user_added",
	"web_user_updated",
	"web_user_removed",
}

var usernameParam = RegexParam(`[A-Za-z0-9._-]+`)

// UsersModule manages the gateway's own account directory. All operations
// require an admin principal.
type UsersModule struct {
	*Module
	users domain.UserDirectory
}

// NewUsersModule builds the account management module.
func NewUsersModule(log *slog.Logger, users domain.UserDirectory) *UsersModule {
	m := &UsersModule{
		Module: NewModule(log.With("module", "users"), 0),
		users:  users,
	}
	m.CreateSubscription(userSubscriptions...)

	m.Handle("users", http.MethodGet, nil, false, adminOnly(m.handleGetUsers))
	m.Handle("user", http.MethodPost, nil, true, adminOnly(m.handleAddUser))
	m.Handle("user", http.MethodGet, []ParamMatcher{usernameParam}, false, adminOnly(m.handleGetUser))
	m.Handle("user", http.MethodPatch, []ParamMatcher{usernameParam}, true, adminOnly(m.handleUpdateUser))
	m.Handle("user", http.MethodDelete, []ParamMatcher{usernameParam}, false, adminOnly(m.handleRemoveUser))

	m.users.AddWebUserListener(m)
	return m
}

// Destroy unregisters the directory listener.
func (m *UsersModule) Destroy() {
	m.users.RemoveWebUserListener(m)
}

func (m *UsersModule) handleGetUsers(req *Request) (any, error) {
	return m.users.Users()
}

func (m *UsersModule) handleGetUser(req *Request) (any, error) {
	return m.users.User(req.Param(0))
}

func (m *UsersModule) handleAddUser(req *Request) (any, error) {
	username, err := requiredField[string](req.Body, "username")
	if err != nil {
		return nil, err
	}
	password, err := requiredField[string](req.Body, "password")
	if err != nil {
		return nil, err
	}
	admin, err := optionalField[bool](req.Body, "admin")
	if err != nil {
		return nil, err
	}
	return m.users.Add(username, password, admin)
}

func (m *UsersModule) handleUpdateUser(req *Request) (any, error) {
	var patch domain.WebUserPatch
	if err := req.DecodeBody(&patch); err != nil {
		return nil, err
	}
	return m.users.Update(req.Param(0), patch)
}

func (m *UsersModule) handleRemoveUser(req *Request) (any, error) {
	// An admin removing their own account would strand the session; the
	// directory enforces that the last admin cannot be removed.
	return nil, m.users.Remove(req.Param(0))
}

// WebUserAdded announces a new account.
func (m *UsersModule) WebUserAdded(u domain.WebUser) {
	m.Send("web_user_added", u)
}

// WebUserUpdated announces an account change.
func (m *UsersModule) WebUserUpdated(u domain.WebUser) {
	m.Send("web_user_updated", u)
}

// WebUserRemoved announces an account removal.
func (m *UsersModule) WebUserRemoved(u domain.WebUser) {
	m.Send("web_user_removed", map[string]any{"username": u.Username})
}
