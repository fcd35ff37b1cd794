package auth

import (
	"fmt"

	"github.com/dcgate/dcgate/internal/config"
	"github.com/dcgate/dcgate/internal/store"
)

// NewProvider creates a Provider based on the configured auth provider.
func NewProvider(cfg config.AuthConfig, s store.Store) (Provider, error) {
	switch cfg.Provider {
	case "oidc":
		return NewOIDCProvider(cfg.OIDCIssuer)
	case "builtin", "":
		return NewService(s, cfg), nil
	default:
		return nil, fmt.Errorf("unsupported auth provider: %q", cfg.Provider)
	}
}
