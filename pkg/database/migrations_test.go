//go:build integration

package database_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/precast-engine/pkg/database"
	"github.com/ekaya-inc/precast-engine/pkg/testhelpers"
)

// scratchDatabase creates an empty database owned by the container superuser
// plus a login role, and drops both when the test ends.
type scratchDatabase struct {
	name     string
	user     string
	password string
	host     string
	port     string
}

func newScratchDatabase(t *testing.T, engineDB *testhelpers.EngineDB, name, user string) *scratchDatabase {
	t.Helper()
	ctx := context.Background()
	pool := engineDB.DB.Pool

	_, _ = pool.Exec(ctx, "DROP DATABASE IF EXISTS "+name)
	_, _ = pool.Exec(ctx, "DROP USER IF EXISTS "+user)

	_, err := pool.Exec(ctx, "CREATE DATABASE "+name)
	require.NoError(t, err, "Failed to create scratch database")
	_, err = pool.Exec(ctx, "CREATE USER "+user+" WITH PASSWORD 'test_password'")
	require.NoError(t, err, "Failed to create scratch user")
	_, err = pool.Exec(ctx, "GRANT CONNECT ON DATABASE "+name+" TO "+user)
	require.NoError(t, err)

	host, err := engineDB.Container.Host(ctx)
	require.NoError(t, err)
	port, err := engineDB.Container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `
			SELECT pg_terminate_backend(pid)
			FROM pg_stat_activity
			WHERE datname = $1 AND pid <> pg_backend_pid()`, name)
		time.Sleep(100 * time.Millisecond)
		_, _ = pool.Exec(ctx, "DROP DATABASE IF EXISTS "+name)
		_, _ = pool.Exec(ctx, "DROP USER IF EXISTS "+user)
	})

	return &scratchDatabase{name: name, user: user, password: "test_password", host: host, port: port.Port()}
}

func (s *scratchDatabase) connString(user, password string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, s.host, s.port, s.name)
}

func (s *scratchDatabase) open(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("pgx", s.connString(s.user, s.password))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func (s *scratchDatabase) grantSchema(t *testing.T) {
	t.Helper()
	super, err := sql.Open("pgx", s.connString("precast", "test_password"))
	require.NoError(t, err)
	defer super.Close()

	_, err = super.Exec("GRANT ALL ON SCHEMA public TO " + s.user)
	require.NoError(t, err, "Failed to grant schema privileges")
}

func runMigrationsWithTimeout(t *testing.T, db *sql.DB, timeout time.Duration) error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- database.RunMigrations(db, zap.NewNop())
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		t.Fatal("TIMEOUT: migrations hung instead of returning")
		return nil
	}
}

func Test_Migrations_InsufficientPermissions(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	scratch := newScratchDatabase(t, engineDB, "test_migration_perms", "restricted_user")

	db := scratch.open(t)
	require.NoError(t, db.Ping(), "Restricted user should be able to connect")

	_, err := db.Exec("CREATE TABLE scratch_check (id int)")
	require.Error(t, err, "Restricted user should not be able to create tables")

	err = runMigrationsWithTimeout(t, scratch.open(t), 30*time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func Test_Migrations_CreatesSchemaAndIsIdempotent(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	scratch := newScratchDatabase(t, engineDB, "test_migration_success", "full_perms_user")
	scratch.grantSchema(t)

	require.NoError(t, runMigrationsWithTimeout(t, scratch.open(t), 60*time.Second))

	// RunMigrations closes the handle it was given.
	require.NoError(t, runMigrationsWithTimeout(t, scratch.open(t), 60*time.Second),
		"Second run should be a no-op")

	verify := scratch.open(t)
	for _, table := range []string{"engine_clients", "engine_projects", "engine_piece_groups", "engine_piece_statuses"} {
		var rls bool
		err := verify.QueryRow(`SELECT relrowsecurity FROM pg_class WHERE relname = $1`, table).Scan(&rls)
		require.NoError(t, err, "table %s should exist", table)
		assert.True(t, rls, "row level security should be enabled on %s", table)
	}
}
