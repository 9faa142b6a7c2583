package sim

import (
	"testing"

	"github.com/retail-sim/retail-sim/sim/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleScenario = `
name: two-stores
products:
  - id: milk
    name: Milk 1L
    unit_cost: 0.6
    base_price: 1.19
    competitor_price: 1.25
    lead_time_days: 1
    base_demand: 30
    warehouse_stock: 400
    suppliers:
      - {id: dairy-coop, unit_cost: 0.55, lead_time_days: 4}
      - {id: fresh-express, unit_cost: 0.649, lead_time_days: 1}
  - id: bread
    name: Bread
    unit_cost: 0.8
    base_price: 2.499
    base_demand: 12
    warehouse_stock: 50
stores:
  - id: north
    demand_factor: 1.2
    initial_stock:
      milk: 40
  - id: south
    initial_stock:
      bread: 8
`

func TestLoadScenario_Valid(t *testing.T) {
	path := testutil.WriteTempFile(t, "scenario.yaml", sampleScenario)

	sc, err := LoadScenario(path, 2)

	require.NoError(t, err)
	assert.Equal(t, "two-stores", sc.Name)
	require.Len(t, sc.Products, 2)
	require.Len(t, sc.Stores, 2)

	milk, ok := sc.ProductByID("milk")
	require.True(t, ok)
	assert.Equal(t, 1, milk.LeadTimeDays)
	assert.Equal(t, "1.19", milk.CurrentPrice.StringFixed(2))

	bread, _ := sc.ProductByID("bread")
	assert.Equal(t, 2, bread.LeadTimeDays, "default lead time")
	assert.Equal(t, "2.50", bread.BasePrice.StringFixed(2), "rounded to cents")
	assert.True(t, bread.CompetitorPrice.IsZero())

	assert.Equal(t, 1, sc.Stores[1].Index)
	assert.Equal(t, 1.0, sc.Stores[1].DemandFactor, "zero factor defaults to 1")
	assert.Equal(t, int64(40), sc.Stores[0].InitialStock["milk"])
	assert.Equal(t, int64(400), sc.WarehouseStock["milk"])

	require.Len(t, sc.Suppliers["milk"], 2)
	assert.Equal(t, "fresh-express", sc.Suppliers["milk"][1].ID)
	assert.Equal(t, "0.65", sc.Suppliers["milk"][1].UnitCost.StringFixed(2), "rounded to cents")
	assert.Equal(t, 1, sc.Suppliers["milk"][1].LeadTimeDays)
	assert.Empty(t, sc.Suppliers["bread"], "no suppliers uses the warehouse default")

	_, ok = sc.ProductByID("eggs")
	assert.False(t, ok)
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown field", "name: x\nproduct: []\n"},
		{"no stores", "products:\n  - {id: a, base_price: 1}\n"},
		{"zero price", "products:\n  - {id: a, base_price: 0}\nstores:\n  - {id: s}\n"},
		{"duplicate product", "products:\n  - {id: a, base_price: 1}\n  - {id: a, base_price: 2}\nstores:\n  - {id: s}\n"},
		{"duplicate store", "products:\n  - {id: a, base_price: 1}\nstores:\n  - {id: s}\n  - {id: s}\n"},
		{"unknown product stock", "products:\n  - {id: a, base_price: 1}\nstores:\n  - {id: s, initial_stock: {b: 1}}\n"},
		{"negative stock", "products:\n  - {id: a, base_price: 1}\nstores:\n  - {id: s, initial_stock: {a: -1}}\n"},
		{"negative warehouse", "products:\n  - {id: a, base_price: 1, warehouse_stock: -4}\nstores:\n  - {id: s}\n"},
		{"supplier without id", "products:\n  - {id: a, base_price: 1, suppliers: [{unit_cost: 1}]}\nstores:\n  - {id: s}\n"},
		{"negative supplier cost", "products:\n  - {id: a, base_price: 1, suppliers: [{id: x, unit_cost: -1}]}\nstores:\n  - {id: s}\n"},
		{"negative supplier lead time", "products:\n  - {id: a, base_price: 1, suppliers: [{id: x, lead_time_days: -2}]}\nstores:\n  - {id: s}\n"},
		{"duplicate supplier", "products:\n  - {id: a, base_price: 1, suppliers: [{id: x}, {id: x}]}\nstores:\n  - {id: s}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutil.WriteTempFile(t, "scenario.yaml", tt.content)
			_, err := LoadScenario(path, 2)
			assert.Error(t, err)
		})
	}
}

func TestSyntheticScenario_DeterministicPerSeed(t *testing.T) {
	a, err := SyntheticScenario(3, 4, 2, NewPartitionedRNG(NewSimulationKey(42)))
	require.NoError(t, err)
	b, err := SyntheticScenario(3, 4, 2, NewPartitionedRNG(NewSimulationKey(42)))
	require.NoError(t, err)
	c, err := SyntheticScenario(3, 4, 2, NewPartitionedRNG(NewSimulationKey(43)))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a.Products[0].BasePrice.String(), c.Products[0].BasePrice.String())
	assert.Len(t, a.Stores, 3)
	assert.Len(t, a.Products, 4)
	for _, p := range a.Products {
		require.NoError(t, p.Validate())
		assert.GreaterOrEqual(t, p.LeadTimeDays, 2)
	}

	_, err = SyntheticScenario(0, 4, 2, NewPartitionedRNG(NewSimulationKey(1)))
	assert.ErrorIs(t, err, ErrInputViolation)
}
