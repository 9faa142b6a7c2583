package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible simulation run.
// Two simulations with the same SimulationKey and identical configuration
// MUST produce bit-for-bit identical results.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// === Subsystem Constants ===

const (
	// SubsystemCatalog is the RNG subsystem for synthetic catalog generation.
	// Uses master seed directly so a seed always reproduces the same catalog.
	SubsystemCatalog = "catalog"

	// SubsystemCompetitor drives the daily competitor price walk.
	SubsystemCompetitor = "competitor"

	// SubsystemWarmup samples pre-simulation demand history.
	SubsystemWarmup = "warmup"

	// SubsystemPolicy drives what-if reorder policy runs.
	SubsystemPolicy = "policy"
)

// SubsystemStore returns the subsystem name for store N.
// Each store owns its stream so stores can be processed in parallel.
func SubsystemStore(id StoreID) string {
	return fmt.Sprintf("store_%s", id)
}

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem.
//
// Derivation formula:
//   - For SubsystemCatalog: uses masterSeed directly
//   - For all other subsystems: masterSeed XOR fnv1a64(subsystemName)
//
// Thread-safety: NOT thread-safe. Subsystem streams that are handed to
// worker goroutines must be created up front (see Preload) and each stream
// must be used by a single goroutine at a time.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}

	var derivedSeed int64
	if name == SubsystemCatalog {
		derivedSeed = int64(p.key)
	} else {
		derivedSeed = int64(p.key) ^ fnv1a64(name)
	}

	rng := rand.New(rand.NewSource(derivedSeed))
	p.subsystems[name] = rng
	return rng
}

// Preload creates the named subsystem streams so later ForSubsystem calls
// from worker goroutines only read the cache.
func (p *PartitionedRNG) Preload(names ...string) {
	for _, name := range names {
		p.ForSubsystem(name)
	}
}

// Cached reports whether the named stream has already been created.
func (p *PartitionedRNG) Cached(name string) bool {
	_, ok := p.subsystems[name]
	return ok
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
