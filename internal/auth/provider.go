package auth

import "context"

// Identity is the unified identity representation for all auth providers.
type Identity struct {
	UserID   string // internal user ID (builtin) or external provider subject
	Username string
	Admin    bool
	// SessionKey stably identifies the principal's gateway session across
	// requests carrying the same credential.
	SessionKey string
}

// Provider validates bearer tokens and returns identities.
type Provider interface {
	ValidateToken(ctx context.Context, token string) (*Identity, error)
	Bootstrap(ctx context.Context) error
	Name() string
}

// LoginProvider is implemented by providers that support username/password login.
type LoginProvider interface {
	Login(ctx context.Context, username, password string) (string, *Identity, error)
}
