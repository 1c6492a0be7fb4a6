package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/goentity/entitymap/driver"
)

func openTestDriver(t *testing.T) *Driver {
	t.Helper()
	d := New(driver.Config{FilePath: ":memory:"})
	require.NoError(t, d.Connect(context.Background()))
	t.Cleanup(func() { d.Close() })
	return d
}

func TestInsertAndFetch(t *testing.T) {
	ctx := context.Background()
	d := openTestDriver(t)

	create, err := d.Prepare(ctx, "CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT)")
	require.NoError(t, err)
	require.NoError(t, create.Execute(ctx))

	insert, err := d.Prepare(ctx, "INSERT INTO users (name) VALUES (:name)")
	require.NoError(t, err)
	require.NoError(t, insert.Bind("name", "ada").Execute(ctx))

	id, err := d.LastInsertID()
	require.NoError(t, err)
	require.EqualValues(t, 1, id)

	sel, err := d.Prepare(ctx, "SELECT id, name FROM users WHERE name = :name")
	require.NoError(t, err)
	row, ok, err := sel.Bind("name", "ada").Fetch(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "ada", row["name"])
}

func TestFetchAllAndDuplicateNamedParam(t *testing.T) {
	ctx := context.Background()
	d := openTestDriver(t)

	create, err := d.Prepare(ctx, "CREATE TABLE t (a INTEGER, b INTEGER)")
	require.NoError(t, err)
	require.NoError(t, create.Execute(ctx))

	for _, v := range []int{1, 2, 3} {
		ins, err := d.Prepare(ctx, "INSERT INTO t (a, b) VALUES (:v, :v)")
		require.NoError(t, err)
		require.NoError(t, ins.Bind("v", v).Execute(ctx))
	}

	sel, err := d.Prepare(ctx, "SELECT a, b FROM t WHERE a = b")
	require.NoError(t, err)
	rows, err := sel.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
}

func TestQuoteIdentifier(t *testing.T) {
	d := New(driver.Config{})
	require.Equal(t, "`users`.`name`", d.QuoteIdentifier("users.name"))
}
