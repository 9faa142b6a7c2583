package sim

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ProductSpec is a catalog entry as written in a scenario file.
type ProductSpec struct {
	ID              string  `yaml:"id"`
	Name            string  `yaml:"name"`
	UnitCost        float64 `yaml:"unit_cost"`
	BasePrice       float64 `yaml:"base_price"`
	CompetitorPrice float64 `yaml:"competitor_price"` // 0 = unknown
	LeadTimeDays    *int    `yaml:"lead_time_days"`   // nil = optimizer default
	BaseDemand      float64        `yaml:"base_demand"`
	WarehouseStock  int64          `yaml:"warehouse_stock"`
	Suppliers       []SupplierSpec `yaml:"suppliers"` // empty = warehouse default supplier
}

// SupplierSpec is a product supplier as written in a scenario file.
type SupplierSpec struct {
	ID           string  `yaml:"id"`
	UnitCost     float64 `yaml:"unit_cost"`
	LeadTimeDays int     `yaml:"lead_time_days"`
}

// StoreSpec is a store as written in a scenario file.
type StoreSpec struct {
	ID           string           `yaml:"id"`
	Name         string           `yaml:"name"`
	DemandFactor float64          `yaml:"demand_factor"` // 0 is treated as 1
	InitialStock map[string]int64 `yaml:"initial_stock"` // product id -> units
}

// ScenarioFile is the YAML layout of a scenario.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type ScenarioFile struct {
	Name     string        `yaml:"name"`
	Products []ProductSpec `yaml:"products"`
	Stores   []StoreSpec   `yaml:"stores"`
}

// Store is a scenario store with its position in the canonical store order.
type Store struct {
	ID           StoreID
	Name         string
	Index        int
	DemandFactor float64
	InitialStock map[ProductID]int64
}

// Scenario is a validated catalog, store list and initial warehouse stock.
type Scenario struct {
	Name           string
	Products       []Product
	Stores         []Store
	WarehouseStock map[ProductID]int64
	Suppliers      map[ProductID][]Supplier // products without suppliers are absent
}

// LoadScenario reads and validates a YAML scenario file.
func LoadScenario(path string, defaultLeadTime int) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	var f ScenarioFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	return f.Build(defaultLeadTime)
}

// Build converts the file layout into a validated Scenario. Prices are
// rounded to cents.
func (f ScenarioFile) Build(defaultLeadTime int) (*Scenario, error) {
	if len(f.Products) == 0 || len(f.Stores) == 0 {
		return nil, inputViolation("scenario %q needs at least one product and one store", f.Name)
	}
	sc := &Scenario{
		Name:           f.Name,
		WarehouseStock: make(map[ProductID]int64, len(f.Products)),
		Suppliers:      make(map[ProductID][]Supplier),
	}
	seen := make(map[ProductID]bool, len(f.Products))
	for _, ps := range f.Products {
		lead := defaultLeadTime
		if ps.LeadTimeDays != nil {
			lead = *ps.LeadTimeDays
		}
		base := decimal.NewFromFloat(ps.BasePrice).Round(2)
		p := Product{
			ID:              ProductID(ps.ID),
			Name:            ps.Name,
			UnitCost:        decimal.NewFromFloat(ps.UnitCost).Round(2),
			BasePrice:       base,
			CurrentPrice:    base,
			CompetitorPrice: decimal.NewFromFloat(ps.CompetitorPrice).Round(2),
			LeadTimeDays:    lead,
			BaseDemand:      ps.BaseDemand,
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if seen[p.ID] {
			return nil, inputViolation("duplicate product id %s", p.ID)
		}
		if ps.WarehouseStock < 0 {
			return nil, inputViolation("product %s: warehouse stock %d is negative", p.ID, ps.WarehouseStock)
		}
		supplierSeen := make(map[string]bool, len(ps.Suppliers))
		for _, spec := range ps.Suppliers {
			sup := Supplier{ID: spec.ID, UnitCost: decimal.NewFromFloat(spec.UnitCost).Round(2), LeadTimeDays: spec.LeadTimeDays}
			if err := sup.Validate(); err != nil {
				return nil, fmt.Errorf("product %s: %w", p.ID, err)
			}
			if supplierSeen[sup.ID] {
				return nil, inputViolation("product %s: duplicate supplier id %s", p.ID, sup.ID)
			}
			supplierSeen[sup.ID] = true
			sc.Suppliers[p.ID] = append(sc.Suppliers[p.ID], sup)
		}
		seen[p.ID] = true
		sc.Products = append(sc.Products, p)
		sc.WarehouseStock[p.ID] = ps.WarehouseStock
	}

	storeSeen := make(map[StoreID]bool, len(f.Stores))
	for i, ss := range f.Stores {
		id := StoreID(ss.ID)
		if id == "" || storeSeen[id] {
			return nil, inputViolation("store %d: id %q is empty or duplicated", i, ss.ID)
		}
		factor := ss.DemandFactor
		if factor == 0 {
			factor = 1
		}
		if factor < 0 || math.IsNaN(factor) {
			return nil, inputViolation("store %s: demand factor %v is negative", id, factor)
		}
		st := Store{ID: id, Name: ss.Name, Index: i, DemandFactor: factor, InitialStock: make(map[ProductID]int64)}
		for pid, qty := range ss.InitialStock {
			if !seen[ProductID(pid)] {
				return nil, inputViolation("store %s: initial stock for unknown product %s", id, pid)
			}
			if qty < 0 {
				return nil, inputViolation("store %s product %s: initial stock %d is negative", id, pid, qty)
			}
			st.InitialStock[ProductID(pid)] = qty
		}
		storeSeen[id] = true
		sc.Stores = append(sc.Stores, st)
	}
	return sc, nil
}

// SyntheticScenario generates a catalog of numProducts products and
// numStores stores from the catalog RNG. The same seed always yields the
// same scenario.
func SyntheticScenario(numStores, numProducts int, defaultLeadTime int, rng *PartitionedRNG) (*Scenario, error) {
	if numStores < 1 || numProducts < 1 {
		return nil, inputViolation("synthetic scenario needs at least one store and product, got %d/%d", numStores, numProducts)
	}
	r := rng.ForSubsystem(SubsystemCatalog)
	f := ScenarioFile{Name: fmt.Sprintf("synthetic-%ds-%dp", numStores, numProducts)}
	for i := 0; i < numProducts; i++ {
		base := 5 + r.Float64()*45
		lead := defaultLeadTime + r.Intn(3)
		demand := 5 + r.Float64()*15
		f.Products = append(f.Products, ProductSpec{
			ID:              fmt.Sprintf("P%03d", i+1),
			Name:            fmt.Sprintf("Product %d", i+1),
			UnitCost:        base * (0.4 + r.Float64()*0.2),
			BasePrice:       base,
			CompetitorPrice: base * (0.9 + r.Float64()*0.2),
			LeadTimeDays:    &lead,
			BaseDemand:      demand,
			WarehouseStock:  int64(demand * float64(numStores) * 10),
		})
	}
	for i := 0; i < numStores; i++ {
		st := StoreSpec{
			ID:           fmt.Sprintf("S%03d", i+1),
			Name:         fmt.Sprintf("Store %d", i+1),
			DemandFactor: 0.7 + r.Float64()*0.6,
			InitialStock: make(map[string]int64, numProducts),
		}
		for _, p := range f.Products {
			st.InitialStock[p.ID] = int64(p.BaseDemand * float64(3+r.Intn(8)))
		}
		f.Stores = append(f.Stores, st)
	}
	return f.Build(defaultLeadTime)
}

// ProductByID returns the catalog entry for id.
func (s *Scenario) ProductByID(id ProductID) (Product, bool) {
	for _, p := range s.Products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}
