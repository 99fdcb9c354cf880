package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fedutinova/minedash/internal/common"
	"github.com/fedutinova/minedash/internal/database"
	"github.com/fedutinova/minedash/internal/models"
)

const schema = `
	CREATE TABLE IF NOT EXISTS roles (
		id          INTEGER PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		permissions TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS users (
		username      TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		role_id       INTEGER NOT NULL
	);
`

// Repository reads and writes the roles and users tables. It is the
// Postgres counterpart of the CSV dataset source.
type Repository struct {
	db *database.DB
}

func New(db *database.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates the tables if they do not exist yet.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Pool().Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (r *Repository) ListRoles(ctx context.Context) ([]models.Role, error) {
	query := `
		SELECT id, name, permissions
		FROM roles
		ORDER BY id
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Permissions); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}

	return roles, rows.Err()
}

func (r *Repository) ListUsers(ctx context.Context) ([]models.User, error) {
	query := `
		SELECT username, password_hash, role_id
		FROM users
		ORDER BY username
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.Username, &user.PasswordHash, &user.RoleID); err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT username, password_hash, role_id
		FROM users
		WHERE username = $1
	`

	var user models.User
	err := r.db.Pool().QueryRow(ctx, query, username).Scan(
		&user.Username,
		&user.PasswordHash,
		&user.RoleID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", username, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Repository) CountRoles(ctx context.Context) (int, error) {
	var n int
	err := r.db.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM roles`).Scan(&n)
	return n, err
}

// Import upserts roles and users in one transaction, so a seeded database
// never holds users whose roles are missing.
func (r *Repository) Import(ctx context.Context, roles []models.Role, users []models.User) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		for _, role := range roles {
			if err := upsertRole(ctx, tx, role); err != nil {
				return fmt.Errorf("failed to import role %q: %w", role.Name, err)
			}
		}
		for _, user := range users {
			if err := upsertUser(ctx, tx, user); err != nil {
				return fmt.Errorf("failed to import user %q: %w", user.Username, err)
			}
		}
		return nil
	})
}

func upsertRole(ctx context.Context, q database.Querier, role models.Role) error {
	query := `
		INSERT INTO roles (id, name, permissions)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, permissions = EXCLUDED.permissions
	`
	_, err := q.Exec(ctx, query, role.ID, role.Name, role.Permissions)
	return err
}

func upsertUser(ctx context.Context, q database.Querier, user models.User) error {
	query := `
		INSERT INTO users (username, password_hash, role_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO UPDATE SET password_hash = EXCLUDED.password_hash, role_id = EXCLUDED.role_id
	`
	_, err := q.Exec(ctx, query, user.Username, user.PasswordHash, user.RoleID)
	return err
}
