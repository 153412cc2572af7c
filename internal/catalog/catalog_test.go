package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapgold/internal/view"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

func base(name string) *core.Relation {
	return &core.Relation{Name: name, Columns: core.Schema{{Name: "id", Type: core.TypeInt}}}
}

func derived(name string, sources ...string) (*core.Relation, *view.Definition) {
	rel := &core.Relation{Name: name, Columns: core.Schema{{Name: "id", Type: core.TypeInt}}}
	def := &view.Definition{Relation: name, Sources: sources[:1]}
	for _, s := range sources[1:] {
		def.Joins = append(def.Joins, view.Join{Source: s, Kind: view.JoinInner, On: []view.JoinKey{{Left: "id", Right: "id"}}})
	}
	return rel, def
}

func TestRegisterAndLookup(t *testing.T) {
	c := New("retail_gold")
	require.NoError(t, c.Register(base("fact_orders")))

	rel, def := derived("gold_daily_sales", "fact_orders")
	require.NoError(t, c.RegisterView(rel, def))

	got, err := c.Lookup("gold_daily_sales")
	require.NoError(t, err)
	assert.True(t, got.IsDerived())

	_, err = c.Lookup("nope")
	var unknown *core.UnknownRelationError
	assert.True(t, errors.As(err, &unknown))

	_, err = c.View("fact_orders")
	assert.ErrorIs(t, err, core.ErrNotDerived)

	assert.Equal(t, []string{"fact_orders"}, c.Base())
	assert.Equal(t, []string{"gold_daily_sales"}, c.Derived())
	assert.Equal(t, "retail_gold.gold_daily_sales", c.Qualified("gold_daily_sales"))
}

func TestRegister_Duplicate(t *testing.T) {
	c := New("")
	require.NoError(t, c.Register(base("fact_orders")))

	err := c.Register(base("fact_orders"))
	var dup *core.DuplicateRelationError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "fact_orders", dup.Name)

	rel, def := derived("fact_orders", "x")
	assert.True(t, errors.As(c.RegisterView(rel, def), &dup))
	assert.Equal(t, DefaultNamespace, c.Namespace())
}

func TestRegisterView_CycleRejectedAtRegistration(t *testing.T) {
	c := New("")
	require.NoError(t, c.Register(base("src")))

	a, aDef := derived("a", "src", "c")
	b, bDef := derived("b", "a")
	cRel, cDef := derived("c", "b")

	require.NoError(t, c.RegisterView(a, aDef))
	require.NoError(t, c.RegisterView(b, bDef))

	err := c.RegisterView(cRel, cDef)
	var cyc *core.CyclicDependencyError
	require.True(t, errors.As(err, &cyc))
	assert.Equal(t, []string{"a", "b", "c", "a"}, cyc.Members)

	_, err = c.Lookup("c")
	assert.Error(t, err, "rejected view must not be registered")
}

func TestSeal(t *testing.T) {
	c := New("")
	require.NoError(t, c.Register(base("src")))
	rel, def := derived("d", "src")
	require.NoError(t, c.RegisterView(rel, def))

	g, err := c.Seal()
	require.NoError(t, err)
	assert.Equal(t, []string{"src"}, g.Parents("d"))
	assert.Same(t, g, c.Graph())

	assert.ErrorIs(t, c.Register(base("late")), core.ErrCatalogSealed)
}

func TestSeal_UnknownUpstream(t *testing.T) {
	c := New("")
	rel, def := derived("d", "missing")
	require.NoError(t, c.RegisterView(rel, def))

	_, err := c.Seal()
	var unknown *core.UnknownRelationError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "missing", unknown.Name)
}
