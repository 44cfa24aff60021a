// Package repotest starts a throwaway Postgres for repository integration tests.
package repotest

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tclog "github.com/testcontainers/testcontainers-go/log"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/wb-go/wbf/dbpg"

	"festreg/internal/repo"
)

type nopLogger struct{}

func (*nopLogger) Printf(_ string, _ ...any) {}

var _ tclog.Logger = (*nopLogger)(nil)

const (
	dbName = "festreg"
	dbUser = "festreg"
	dbPass = "festreg"
)

// NewPostgres runs postgres:16-alpine, migrates it up, down and up again, and
// returns a Repository on it. The container is removed when the test ends.
// Tests are skipped under -short or when no container runtime is reachable.
func NewPostgres(t *testing.T) repo.Repository {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres integration test skipped in short mode")
	}
	tc.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := postgres.Run(
		ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPass),
		postgres.BasicWaitStrategies(),
		tc.WithLogger(&nopLogger{}),
	)
	tc.CleanupContainer(t, container)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := dbpg.New(dsn, nil, &dbpg.Options{MaxOpenConns: 32, MaxIdleConns: 8})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Master.Close() })

	log := zerolog.Nop()
	r, err := repo.NewRepository(db, &log)
	require.NoError(t, err)

	require.NoError(t, r.MigrateUp(ctx))
	require.NoError(t, r.MigrateUp(ctx), "applied migrations are skipped")
	require.NoError(t, r.MigrateDown(ctx))
	require.NoError(t, r.MigrateUp(ctx))
	return r
}
