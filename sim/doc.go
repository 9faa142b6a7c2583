// Package sim provides the decision components of the retail inventory
// simulation and the types they exchange.
//
// # Reading Guide
//
// Start with these files to understand one simulated day:
//   - forecast.go: demand forecasting from recent history and sentiment
//   - optimizer.go: EOQ, safety stock and reorder point for a (store, product) pair
//   - warehouse.go: the restock coordinator that allocates shared warehouse stock
//   - pricing.go: bounded daily price adjustments
//   - kpi.go and recommend.go: daily KPI snapshots and run-level recommendations
//
// # Architecture
//
// The sim package holds pure decision logic and the collaborator interfaces;
// the orchestration and integrations live in sub-packages:
//   - sim/retail/: the day loop that drives stores, coordinator and controller
//   - sim/persist/: in-memory, Postgres and Redis collaborators
//   - sim/sentiment/: the LLM-backed sentiment scorer
//   - sim/trace/: allocation and pricing decision traces
//
// # Key Interfaces
//
// The extension points are small interfaces:
//   - Repository: sales history, price changes and inventory records
//   - StockLedger: the warehouse's compare-and-set stock counter
//   - SentimentScorer: a per-product sentiment signal in [-1, 1]
//   - TieBreakPolicy: how scarce stock is split between competing requests
//
// Every operation that draws randomness takes its stream from a
// PartitionedRNG so that a seed reproduces the same run regardless of the
// number of workers.
package sim
