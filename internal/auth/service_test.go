package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dcgate/dcgate/internal/config"
	"github.com/dcgate/dcgate/internal/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })

	svc := NewService(st, config.AuthConfig{
		JWTSecret:    testSecret,
		JWTExpiry:    config.Duration{Duration: time.Hour},
		InitialAdmin: &config.InitialAdmin{Username: "admin", Password: "hunter22"},
	})
	if err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatal(err)
	}
	return svc, st
}

func TestBootstrapIdempotent(t *testing.T) {
	svc, st := newTestService(t)
	if err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatal(err)
	}
	users, err := st.ListUsers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 || !users[0].Admin {
		t.Fatalf("got %+v", users)
	}
}

func TestLoginAndValidate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	token, identity, err := svc.Login(ctx, "admin", "hunter22")
	if err != nil {
		t.Fatal(err)
	}
	if token == "" || identity.SessionKey == "" {
		t.Fatal("login must return a token and a session key")
	}
	if !identity.Admin || identity.Username != "admin" {
		t.Fatalf("got %+v", identity)
	}

	validated, err := svc.ValidateToken(ctx, token)
	if err != nil {
		t.Fatal(err)
	}
	if validated.SessionKey != identity.SessionKey {
		t.Fatal("validated session key must match the issued one")
	}
	if validated.Username != "admin" || !validated.Admin {
		t.Fatalf("got %+v", validated)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.Login(ctx, "admin", "wrong"); err != ErrInvalidCredentials {
		t.Fatalf("wrong password: got %v", err)
	}
	if _, _, err := svc.Login(ctx, "ghost", "hunter22"); err != ErrInvalidCredentials {
		t.Fatalf("unknown user: got %v", err)
	}
}

func TestValidateRejectsTamperedToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	token, _, err := svc.Login(ctx, "admin", "hunter22")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ValidateToken(ctx, token+"x"); err != ErrUnauthorized {
		t.Fatalf("tampered token: got %v", err)
	}
	if _, err := svc.ValidateToken(ctx, "not-a-jwt"); err != ErrUnauthorized {
		t.Fatalf("garbage token: got %v", err)
	}

	// A token signed with a different secret is rejected.
	other := NewService(nil, config.AuthConfig{
		JWTSecret: "ffffffffffffffffffffffffffffffff",
		JWTExpiry: config.Duration{Duration: time.Hour},
	})
	if _, err := other.ValidateToken(ctx, token); err != ErrUnauthorized {
		t.Fatalf("wrong secret: got %v", err)
	}
}
