package gateway

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/dcgate/dcgate/internal/domain"
	"github.com/dcgate/dcgate/internal/store"
)

type recordingUserListener struct {
	added   []domain.WebUser
	updated []domain.WebUser
	removed []domain.WebUser
}

func (l *recordingUserListener) WebUserAdded(u domain.WebUser)   { l.added = append(l.added, u) }
func (l *recordingUserListener) WebUserUpdated(u domain.WebUser) { l.updated = append(l.updated, u) }
func (l *recordingUserListener) WebUserRemoved(u domain.WebUser) { l.removed = append(l.removed, u) }

func newTestDirectory(t *testing.T) (*userDirectory, *recordingUserListener) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })

	d := newUserDirectory(st)
	l := &recordingUserListener{}
	d.AddWebUserListener(l)
	return d, l
}

func TestDirectoryAdd(t *testing.T) {
	d, l := newTestDirectory(t)

	u, err := d.Add("alice", "secret", true)
	if err != nil {
		t.Fatal(err)
	}
	if u.Username != "alice" || !u.Admin {
		t.Fatalf("got %+v", u)
	}
	if len(l.added) != 1 {
		t.Fatalf("got %d added events, want 1", len(l.added))
	}

	if _, err := d.Add("alice", "other", false); !errors.Is(err, domain.ErrExists) {
		t.Fatalf("duplicate: got %v", err)
	}
	if _, err := d.Add("", "secret", false); !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("empty username: got %v", err)
	}
	if _, err := d.Add("bob", "", false); !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("empty password: got %v", err)
	}
}

func TestDirectoryUserAndUsers(t *testing.T) {
	d, _ := newTestDirectory(t)
	if _, err := d.Add("alice", "secret", false); err != nil {
		t.Fatal(err)
	}

	u, err := d.User("alice")
	if err != nil {
		t.Fatal(err)
	}
	if u.Username != "alice" {
		t.Fatalf("got %+v", u)
	}
	if _, err := d.User("ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown user: got %v", err)
	}

	users, err := d.Users()
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 {
		t.Fatalf("got %d users, want 1", len(users))
	}
}

func TestDirectoryUpdate(t *testing.T) {
	d, l := newTestDirectory(t)
	if _, err := d.Add("alice", "secret", false); err != nil {
		t.Fatal(err)
	}

	admin := true
	u, err := d.Update("alice", domain.WebUserPatch{Admin: &admin})
	if err != nil {
		t.Fatal(err)
	}
	if !u.Admin {
		t.Fatal("admin flag not applied")
	}
	if len(l.updated) != 1 {
		t.Fatalf("got %d updated events, want 1", len(l.updated))
	}

	if _, err := d.Update("ghost", domain.WebUserPatch{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown user: got %v", err)
	}

	empty := ""
	if _, err := d.Update("alice", domain.WebUserPatch{Password: &empty}); !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("empty password: got %v", err)
	}
}

func TestDirectoryLastAdminGuard(t *testing.T) {
	d, _ := newTestDirectory(t)
	if _, err := d.Add("alice", "secret", true); err != nil {
		t.Fatal(err)
	}

	// The only admin can be neither demoted nor removed.
	notAdmin := false
	if _, err := d.Update("alice", domain.WebUserPatch{Admin: &notAdmin}); !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("demote last admin: got %v", err)
	}
	if err := d.Remove("alice"); !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("remove last admin: got %v", err)
	}

	// With a second admin both operations go through.
	if _, err := d.Add("bob", "secret", true); err != nil {
		t.Fatal(err)
	}
	if err := d.Remove("alice"); err != nil {
		t.Fatalf("remove with second admin: %v", err)
	}
}

func TestDirectoryRemove(t *testing.T) {
	d, l := newTestDirectory(t)
	if _, err := d.Add("alice", "secret", false); err != nil {
		t.Fatal(err)
	}

	if err := d.Remove("alice"); err != nil {
		t.Fatal(err)
	}
	if len(l.removed) != 1 {
		t.Fatalf("got %d removed events, want 1", len(l.removed))
	}
	if err := d.Remove("alice"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("remove twice: got %v", err)
	}
}
