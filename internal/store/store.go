// Package store defines the gateway's persistence interface and provides
// SQLite and PostgreSQL implementations. It holds the web user directory and
// the audit trail; hub and transfer state lives in the engine, not here.
package store

import (
	"context"
	"time"
)

// Store is the persistence interface for the gateway.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, user *User) error
	DeleteUser(ctx context.Context, username string) error
	SetLastLogin(ctx context.Context, username string, at time.Time) error
	CountAdmins(ctx context.Context) (int, error)

	// Audit
	LogAuditEvent(ctx context.Context, event *AuditEvent) error
	ListAuditEvents(ctx context.Context, limit, offset int) ([]AuditEvent, error)

	// Health
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// User is one stored gateway account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Admin        bool      `json:"admin"`
	CreatedAt    time.Time `json:"created_at"`
	LastLogin    time.Time `json:"last_login,omitempty"`
}

// AuditEvent is one recorded security-relevant action.
type AuditEvent struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Username  string    `json:"username,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
