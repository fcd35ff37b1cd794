package gateway

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dcgate/dcgate/internal/domain"
	"github.com/dcgate/dcgate/internal/store"
)

// userDirectory implements domain.UserDirectory over the store. It is the one
// collaborator living inside the gateway rather than the engine, but modules
// consume it through the same listener contract as the engine managers.
type userDirectory struct {
	store store.Store

	mu        sync.RWMutex
	listeners []domain.WebUserListener
}

func newUserDirectory(st store.Store) *userDirectory {
	return &userDirectory{store: st}
}

func toWebUser(u *store.User) domain.WebUser {
	return domain.WebUser{
		Username:  u.Username,
		Admin:     u.Admin,
		LastLogin: u.LastLogin,
	}
}

func (d *userDirectory) Users() ([]domain.WebUser, error) {
	stored, err := d.store.ListUsers(context.Background())
	if err != nil {
		return nil, err
	}
	users := make([]domain.WebUser, len(stored))
	for i := range stored {
		users[i] = toWebUser(&stored[i])
	}
	return users, nil
}

func (d *userDirectory) User(username string) (domain.WebUser, error) {
	u, err := d.store.GetUser(context.Background(), username)
	if err != nil {
		return domain.WebUser{}, err
	}
	if u == nil {
		return domain.WebUser{}, domain.NotFoundf("user %s", username)
	}
	return toWebUser(u), nil
}

func (d *userDirectory) Add(username, password string, admin bool) (domain.WebUser, error) {
	if username == "" {
		return domain.WebUser{}, domain.Invalidf("field username: empty")
	}
	if password == "" {
		return domain.WebUser{}, domain.Invalidf("field password: empty")
	}

	existing, err := d.store.GetUser(context.Background(), username)
	if err != nil {
		return domain.WebUser{}, err
	}
	if existing != nil {
		return domain.WebUser{}, domain.Existsf("user %s", username)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.WebUser{}, err
	}

	u := &store.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		Admin:        admin,
		CreatedAt:    time.Now(),
	}
	if err := d.store.CreateUser(context.Background(), u); err != nil {
		return domain.WebUser{}, err
	}

	user := toWebUser(u)
	d.notify(func(l domain.WebUserListener) { l.WebUserAdded(user) })
	return user, nil
}

func (d *userDirectory) Update(username string, patch domain.WebUserPatch) (domain.WebUser, error) {
	u, err := d.store.GetUser(context.Background(), username)
	if err != nil {
		return domain.WebUser{}, err
	}
	if u == nil {
		return domain.WebUser{}, domain.NotFoundf("user %s", username)
	}

	if patch.Password != nil {
		if *patch.Password == "" {
			return domain.WebUser{}, domain.Invalidf("field password: empty")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), bcrypt.DefaultCost)
		if err != nil {
			return domain.WebUser{}, err
		}
		u.PasswordHash = string(hash)
	}
	if patch.Admin != nil {
		if u.Admin && !*patch.Admin {
			if err := d.requireAnotherAdmin(username); err != nil {
				return domain.WebUser{}, err
			}
		}
		u.Admin = *patch.Admin
	}

	if err := d.store.UpdateUser(context.Background(), u); err != nil {
		return domain.WebUser{}, err
	}

	user := toWebUser(u)
	d.notify(func(l domain.WebUserListener) { l.WebUserUpdated(user) })
	return user, nil
}

func (d *userDirectory) Remove(username string) error {
	u, err := d.store.GetUser(context.Background(), username)
	if err != nil {
		return err
	}
	if u == nil {
		return domain.NotFoundf("user %s", username)
	}
	if u.Admin {
		if err := d.requireAnotherAdmin(username); err != nil {
			return err
		}
	}

	if err := d.store.DeleteUser(context.Background(), username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFoundf("user %s", username)
		}
		return err
	}

	d.notify(func(l domain.WebUserListener) { l.WebUserRemoved(toWebUser(u)) })
	return nil
}

// requireAnotherAdmin refuses demoting or removing the last admin account.
func (d *userDirectory) requireAnotherAdmin(username string) error {
	n, err := d.store.CountAdmins(context.Background())
	if err != nil {
		return err
	}
	if n <= 1 {
		return domain.Invalidf("user %s: cannot remove the last admin", username)
	}
	return nil
}

func (d *userDirectory) AddWebUserListener(l domain.WebUserListener) {
	d.mu.Lock()
	d.listeners = append(d.listeners, l)
	d.mu.Unlock()
}

func (d *userDirectory) RemoveWebUserListener(l domain.WebUserListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, existing := range d.listeners {
		if existing == l {
			d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
			return
		}
	}
}

func (d *userDirectory) notify(fn func(domain.WebUserListener)) {
	d.mu.RLock()
	listeners := make([]domain.WebUserListener, len(d.listeners))
	copy(listeners, d.listeners)
	d.mu.RUnlock()
	for _, l := range listeners {
		fn(l)
	}
}
