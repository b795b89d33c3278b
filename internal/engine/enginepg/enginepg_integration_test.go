//go:build integration

package enginepg

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/engine"
)

// setupContainer starts an ephemeral Postgres container, mirroring the
// teacher's testrunner/testcontainers_test.go#setupPostgreSQLContainer.
func setupContainer(ctx context.Context, t *testing.T) (*Engine, func()) {
	t.Helper()

	c, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)

	connStr, err := c.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	e, err := Open(ctx, connStr, 10*time.Second)
	require.NoError(t, err)

	cleanup := func() {
		e.Close()
		_ = c.Terminate(ctx)
	}

	return e, cleanup
}

func TestEngineEvalRoundTrip(t *testing.T) {
	ctx := context.Background()

	e, cleanup := setupContainer(ctx, t)
	defer cleanup()

	_, err := e.pool.Exec(ctx, `create table users (id serial primary key, name text not null)`)
	require.NoError(t, err)

	_, err = e.pool.Exec(ctx, `insert into users (name) values ('alice'), ('bob')`)
	require.NoError(t, err)

	rel, err := e.Eval(ctx, `select id, name from users where id > @minId order by id`, map[qs.Ident]engine.SQLParam{
		qs.NewIdent("minId"): {Name: "minId", Value: 0},
	})
	require.NoError(t, err)

	require.Equal(t, 1, rel.NumBatches())

	records := rel.Batch(0).Records()
	require.Len(t, records, 2)
	assert.Equal(t, "alice", records[0]["name"])
	assert.Equal(t, "bob", records[1]["name"])
}
