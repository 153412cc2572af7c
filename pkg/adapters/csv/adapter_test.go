package csv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapgold/pkg/adapter"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

var lineitems = &core.Relation{
	Name: "fact_lineitem",
	Kind: core.KindBase,
	Columns: core.Schema{
		{Name: "order_key", Type: core.TypeInt},
		{Name: "ship_mode", Type: core.TypeString},
		{Name: "net_revenue", Type: core.TypeFloat},
		{Name: "delivery_delay_days", Type: core.TypeInt, Nullable: true},
	},
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

func connect(t *testing.T, dir string, options map[string]string) *Adapter {
	t.Helper()
	adp := New(nil)
	require.NoError(t, adp.Connect(context.Background(), core.AdapterConfig{Path: dir, Options: options}))
	return adp
}

func TestAdapter_Connect(t *testing.T) {
	dir := writeFiles(t, map[string]string{"x.csv": "a\n1\n"})

	tests := []struct {
		name    string
		cfg     core.AdapterConfig
		wantErr string
	}{
		{name: "directory", cfg: core.AdapterConfig{Path: dir}},
		{name: "missing path", cfg: core.AdapterConfig{}, wantErr: "requires a path"},
		{name: "not found", cfg: core.AdapterConfig{Path: filepath.Join(dir, "nope")}, wantErr: "failed to open csv directory"},
		{name: "file not dir", cfg: core.AdapterConfig{Path: filepath.Join(dir, "x.csv")}, wantErr: "is not a directory"},
		{name: "bad delimiter", cfg: core.AdapterConfig{Path: dir, Options: map[string]string{"delimiter": ";;"}}, wantErr: "invalid csv delimiter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(nil).Connect(context.Background(), tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestAdapter_Load(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"fact_lineitem.csv": "\ufeffShip_Mode,order_key,comment,net_revenue,delivery_delay_days\n" +
			"AIR,1,first,10.5,3\n" +
			"\"RAIL, FREIGHT\",2,,20,\n",
	})
	adp := connect(t, dir, nil)

	tbl, err := adp.Load(context.Background(), lineitems)
	require.NoError(t, err)

	assert.Equal(t, []string{"order_key", "ship_mode", "net_revenue", "delivery_delay_days"}, tbl.Columns.Names())
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, core.Row{int64(1), "AIR", 10.5, int64(3)}, tbl.Rows[0])
	assert.Equal(t, core.Row{int64(2), "RAIL, FREIGHT", 20.0, nil}, tbl.Rows[1])
}

func TestAdapter_LoadDelimiter(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"fact_lineitem.csv": "order_key;ship_mode;net_revenue;delivery_delay_days\n7;SHIP;1.25;-2\n",
	})
	adp := connect(t, dir, map[string]string{"delimiter": ";"})

	tbl, err := adp.Load(context.Background(), lineitems)
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())
	assert.Equal(t, core.Row{int64(7), "SHIP", 1.25, int64(-2)}, tbl.Rows[0])
}

func TestAdapter_LoadErrors(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantColumn string
		wantErr    string
	}{
		{
			name:       "missing column",
			content:    "order_key,ship_mode,net_revenue\n1,AIR,2\n",
			wantColumn: "delivery_delay_days",
		},
		{
			name:       "null in not null column",
			content:    "order_key,ship_mode,net_revenue,delivery_delay_days\n1,,2,\n",
			wantColumn: "ship_mode",
		},
		{
			name:       "bad number",
			content:    "order_key,ship_mode,net_revenue,delivery_delay_days\n1,AIR,lots,\n",
			wantColumn: "net_revenue",
		},
		{
			name:    "ragged row",
			content: "order_key,ship_mode,net_revenue,delivery_delay_days\n1,AIR\n",
			wantErr: "failed to read fact_lineitem",
		},
		{
			name:    "empty file",
			content: "",
			wantErr: "header",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adp := connect(t, writeFiles(t, map[string]string{"fact_lineitem.csv": tt.content}), nil)

			_, err := adp.Load(context.Background(), lineitems)
			require.Error(t, err)
			if tt.wantColumn != "" {
				var mismatch *core.SchemaMismatchError
				require.ErrorAs(t, err, &mismatch)
				assert.Equal(t, tt.wantColumn, mismatch.Column)
				assert.Equal(t, "fact_lineitem", mismatch.Relation)
				return
			}
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAdapter_LoadMissingFile(t *testing.T) {
	adp := connect(t, t.TempDir(), nil)

	_, err := adp.Load(context.Background(), lineitems)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAdapter_Tables(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"fact_orders.csv": "a\n",
		"dim_date.CSV":    "a\n",
		"notes.txt":       "x",
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive.csv"), 0o700))
	adp := connect(t, dir, nil)

	tables, err := adp.Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"dim_date", "fact_orders"}, tables)
}

func TestAdapter_NotConnected(t *testing.T) {
	adp := New(nil)
	_, err := adp.Tables(context.Background())
	assert.Error(t, err)
	_, err = adp.Load(context.Background(), lineitems)
	assert.Error(t, err)
	assert.NoError(t, adp.Close())
}

func TestRegistered(t *testing.T) {
	src, err := adapter.NewSource(core.AdapterConfig{Type: "csv"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Adapter{}, src)
}
