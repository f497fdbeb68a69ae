//go:build integration

package grant

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	id "gatehouse/pkg/domain"
	"gatehouse/pkg/sentinel"
)

func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("gatehouse_test"),
		postgres.WithUsername("gatehouse"),
		postgres.WithPassword("gatehouse"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migration, err := os.ReadFile("../../migrations/0001_init.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(migration))
	require.NoError(t, err)
	return db
}

func TestPostgresGrantLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	db := startPostgres(t)
	store := NewPostgres(db)

	principalID := id.NewPrincipalID()
	scopeID := id.NewScopeID()
	now := time.Now().UTC().Truncate(time.Microsecond)

	_, err := db.Exec(`
		INSERT INTO scopes (id, scope_type, scope_path)
		VALUES ($1, 'tenant', '/tenants/acme')`,
		uuid.UUID(scopeID),
	)
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, Grant{
		PrincipalID: principalID, RoleCode: "tenant_admin", ScopeID: scopeID,
		ValidFrom: now.Add(-time.Hour),
	}))

	grants, err := store.GrantsFor(ctx, principalID, now)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, "tenant_admin", grants[0].RoleCode)
	assert.Equal(t, scopeID, grants[0].ScopeID)

	t.Run("revoke closes the window", func(t *testing.T) {
		require.NoError(t, store.Revoke(ctx, principalID, "tenant_admin", scopeID, now))

		grants, err := store.GrantsFor(ctx, principalID, now)
		require.NoError(t, err)
		assert.Empty(t, grants)

		all, err := store.GrantsForAll(ctx, principalID)
		require.NoError(t, err)
		assert.Len(t, all, 1)

		assert.ErrorIs(t, store.Revoke(ctx, principalID, "tenant_admin", scopeID, now), sentinel.ErrNotFound)
	})

	t.Run("resource grants", func(t *testing.T) {
		g := ResourceGrant{
			PrincipalID:    principalID,
			ScopeID:        scopeID,
			ResourceTable:  "work_requests",
			ResourceID:     "wr-1",
			CapabilityCode: "work_requests.read",
			ValidFrom:      now.Add(-time.Minute),
			CreatedBy:      id.NewPrincipalID(),
		}
		require.NoError(t, store.PutResourceGrant(ctx, g))

		overrides, err := store.ResourceGrantsFor(ctx, principalID, "work_requests", "wr-1", now)
		require.NoError(t, err)
		require.Len(t, overrides, 1)
		assert.Equal(t, "work_requests.read", overrides[0].CapabilityCode)

		tables, err := store.ResourceGrantTablesFor(ctx, principalID, now)
		require.NoError(t, err)
		assert.Equal(t, map[string][]string{"work_requests": {"work_requests.read"}}, tables)

		require.NoError(t, store.RevokeResourceGrant(ctx, overrides[0].ID, now))
		overrides, err = store.ResourceGrantsFor(ctx, principalID, "work_requests", "wr-1", now)
		require.NoError(t, err)
		assert.Empty(t, overrides)
	})
}
