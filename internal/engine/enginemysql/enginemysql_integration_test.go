//go:build integration

package enginemysql

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/engine"
)

func setupContainer(ctx context.Context, t *testing.T) (*Engine, func()) {
	t.Helper()

	c, err := tcmysql.RunContainer(ctx,
		testcontainers.WithImage("mysql:8"),
		tcmysql.WithDatabase("testdb"),
		tcmysql.WithUsername("testuser"),
		tcmysql.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("ready for connections").WithOccurrence(2).WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	connStr, err := c.ConnectionString(ctx)
	require.NoError(t, err)

	e, err := Open(connStr, 15*time.Second)
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

	_, err := e.db.ExecContext(ctx, `create table users (id integer primary key auto_increment, name varchar(255) not null)`)
	require.NoError(t, err)

	_, err = e.db.ExecContext(ctx, `insert into users (name) values ('alice'), ('bob')`)
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
