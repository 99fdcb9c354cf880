package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/fedutinova/minedash/internal/common"
	"github.com/fedutinova/minedash/internal/models"
)

// IdentitySource lists the stored users and roles. Both the CSV dataset
// and the Postgres repository implement it.
type IdentitySource interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	ListRoles(ctx context.Context) ([]models.Role, error)
}

// Identity is the outcome of a successful login.
type Identity struct {
	Username string
	Role     string
}

type account struct {
	secret string
	roleID int
}

// Directory authenticates users against the stored credentials and maps
// their role id to a role name.
type Directory struct {
	mu       sync.RWMutex
	accounts map[string]account
	roles    map[int]string
}

func NewDirectory(users []models.User, roles []models.Role) *Directory {
	d := &Directory{}
	d.replace(users, roles)
	return d
}

// LoadDirectory reads users and roles from src.
func LoadDirectory(ctx context.Context, src IdentitySource) (*Directory, error) {
	d := NewDirectory(nil, nil)
	if err := d.Reload(ctx, src); err != nil {
		return d, err
	}
	return d, nil
}

// Reload re-reads src. The previous contents are kept when either list
// cannot be read.
func (d *Directory) Reload(ctx context.Context, src IdentitySource) error {
	users, err := src.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	roles, err := src.ListRoles(ctx)
	if err != nil {
		return fmt.Errorf("failed to list roles: %w", err)
	}
	d.replace(users, roles)
	return nil
}

func (d *Directory) replace(users []models.User, roles []models.Role) {
	accounts := make(map[string]account, len(users))
	for _, u := range users {
		if u.Username == "" {
			continue
		}
		accounts[u.Username] = account{secret: u.PasswordHash, roleID: u.RoleID}
	}
	names := make(map[int]string, len(roles))
	for _, r := range roles {
		names[r.ID] = r.Name
	}
	d.mu.Lock()
	d.accounts = accounts
	d.roles = names
	d.mu.Unlock()
}

// Authenticate checks username/password. A user whose role id matches no
// role still logs in, with an empty role that every capability check
// denies.
func (d *Directory) Authenticate(username, password string) (Identity, error) {
	username = strings.TrimSpace(username)
	d.mu.RLock()
	acc, ok := d.accounts[username]
	role := d.roles[acc.roleID]
	d.mu.RUnlock()
	if !ok || !CheckPassword(password, acc.secret) {
		return Identity{}, common.ErrInvalidCredentials
	}
	if role == "" {
		slog.Warn("user has no known role", "user", username, "role_id", acc.roleID)
	}
	return Identity{Username: username, Role: role}, nil
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.accounts)
}

// HashPassword returns a bcrypt hash suitable for the password column.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}

// CheckPassword compares against a bcrypt hash, or against a legacy
// plain-text value when stored does not look like one.
func CheckPassword(password, stored string) bool {
	if stored == "" {
		return false
	}
	if isBcrypt(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(stored)) == 1
}

func isBcrypt(s string) bool {
	for _, p := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
