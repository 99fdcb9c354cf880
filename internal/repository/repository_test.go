package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedutinova/minedash/internal/common"
	"github.com/fedutinova/minedash/internal/database"
	"github.com/fedutinova/minedash/internal/models"
)

func setupRepository(t *testing.T) *Repository {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Postgres test in short mode")
	}
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := database.NewDB(ctx, url, 2)
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)

	repo := New(db)
	require.NoError(t, repo.Migrate(ctx))
	_, err = db.Pool().Exec(ctx, `TRUNCATE roles, users`)
	require.NoError(t, err)
	return repo
}

func TestRepository_ImportAndList(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	roles := []models.Role{
		{ID: 1, Name: "Viewer", Permissions: "view charts"},
		{ID: 2, Name: "Admin", Permissions: "admin"},
	}
	users := []models.User{
		{Username: "vera", PasswordHash: "pw", RoleID: 1},
		{Username: "root", PasswordHash: "pw", RoleID: 2},
	}
	require.NoError(t, repo.Import(ctx, roles, users))
	// importing twice updates in place
	roles[0].Permissions = "view charts, map"
	require.NoError(t, repo.Import(ctx, roles, users))

	gotRoles, err := repo.ListRoles(ctx)
	require.NoError(t, err)
	assert.Equal(t, roles, gotRoles)

	n, err := repo.CountRoles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	gotUsers, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, gotUsers, 2)

	u, err := repo.GetUserByUsername(ctx, "vera")
	require.NoError(t, err)
	assert.Equal(t, 1, u.RoleID)

	_, err = repo.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
