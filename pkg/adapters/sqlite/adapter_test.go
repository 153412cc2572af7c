package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapgold/pkg/adapter"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

var dimDate = &core.Relation{
	Name: "dim_date",
	Kind: core.KindBase,
	Columns: core.Schema{
		{Name: "date_key", Type: core.TypeDate},
		{Name: "year_month", Type: core.TypeString},
		{Name: "is_weekend", Type: core.TypeBool},
	},
}

func TestAdapter_ConnectRequiresPath(t *testing.T) {
	err := New(nil).Connect(context.Background(), core.AdapterConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a path")
}

func TestAdapter_LoadAndTables(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "silver.db")

	adp := New(nil)
	require.NoError(t, adp.Connect(ctx, core.AdapterConfig{Path: path}))
	defer func() { _ = adp.Close() }()

	require.NoError(t, adp.Exec(ctx, `CREATE TABLE dim_date (is_weekend INTEGER, date_key TEXT, year_month TEXT, note TEXT)`))
	require.NoError(t, adp.Exec(ctx, `CREATE TABLE fact_orders (order_key INTEGER)`))
	require.NoError(t, adp.Exec(ctx, `INSERT INTO dim_date VALUES (1, '2024-03-09', '2024-03', 'sat'), (0, '2024-03-11', '2024-03', NULL)`))

	tables, err := adp.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dim_date", "fact_orders"}, tables)

	tbl, err := adp.Load(ctx, dimDate)
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{"date_key", "year_month", "is_weekend"}, tbl.Columns.Names())

	got := map[string]bool{}
	for _, row := range tbl.Rows {
		got[core.Format(row[0])] = row[2].(bool)
		assert.Equal(t, "2024-03", row[1])
	}
	assert.Equal(t, map[string]bool{"2024-03-09": true, "2024-03-11": false}, got)
}

func TestAdapter_LoadMissingTable(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)
	require.NoError(t, adp.Connect(ctx, core.AdapterConfig{Path: ":memory:"}))
	defer func() { _ = adp.Close() }()

	_, err := adp.Load(ctx, dimDate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read dim_date")
}

func TestRegistered(t *testing.T) {
	assert.True(t, adapter.IsRegistered("sqlite"))
}
