package persist

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/retail-sim/retail-sim/sim"
)

var _ sim.Repository = (*PostgresRepository)(nil)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sales (
	run_id     TEXT           NOT NULL,
	day        INTEGER        NOT NULL,
	store_id   TEXT           NOT NULL,
	product_id TEXT           NOT NULL,
	demanded   BIGINT         NOT NULL,
	sold       BIGINT         NOT NULL,
	unit_price NUMERIC(12, 2) NOT NULL,
	revenue    NUMERIC(16, 2) NOT NULL,
	PRIMARY KEY (run_id, day, store_id, product_id)
);
CREATE TABLE IF NOT EXISTS price_changes (
	id         BIGSERIAL PRIMARY KEY,
	run_id     TEXT             NOT NULL,
	day        INTEGER          NOT NULL,
	store_id   TEXT             NOT NULL,
	product_id TEXT             NOT NULL,
	old_price  NUMERIC(12, 2)   NOT NULL,
	new_price  NUMERIC(12, 2)   NOT NULL,
	delta      NUMERIC(12, 2)   NOT NULL,
	change_pct DOUBLE PRECISION NOT NULL,
	reason     TEXT             NOT NULL
);
CREATE TABLE IF NOT EXISTS inventory_records (
	run_id         TEXT    NOT NULL,
	store_id       TEXT    NOT NULL,
	product_id     TEXT    NOT NULL,
	on_hand        BIGINT  NOT NULL,
	reorder_point  BIGINT  NOT NULL,
	eoq            BIGINT  NOT NULL,
	safety_stock   BIGINT  NOT NULL,
	lead_time_days INTEGER NOT NULL,
	outstanding    BIGINT  NOT NULL,
	PRIMARY KEY (run_id, store_id, product_id)
);`

// PostgresRepository persists a run's sales, price changes and inventory
// records. Rows are scoped by run ID so runs never read each other's history.
type PostgresRepository struct {
	pool  *pgxpool.Pool
	runID string
}

// NewPool opens a pgx pool with NUMERIC mapped to shopspring decimals.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}
	poolConfig.MaxConns = 8
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping DB: %w", err)
	}
	return pool, nil
}

// NewPostgresRepository wraps pool for runID and creates the schema if needed.
func NewPostgresRepository(ctx context.Context, pool *pgxpool.Pool, runID string) (*PostgresRepository, error) {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &PostgresRepository{pool: pool, runID: runID}, nil
}

// Close releases the pool.
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

func (r *PostgresRepository) AppendSale(ctx context.Context, sale sim.SaleRecord) error {
	query := `
		INSERT INTO sales (run_id, day, store_id, product_id, demanded, sold, unit_price, revenue)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id, day, store_id, product_id)
		DO UPDATE SET demanded = EXCLUDED.demanded, sold = EXCLUDED.sold,
			unit_price = EXCLUDED.unit_price, revenue = EXCLUDED.revenue`
	_, err := r.pool.Exec(ctx, query, r.runID, sale.Day, string(sale.StoreID), string(sale.ProductID),
		sale.Demanded, sale.Sold, sale.UnitPrice, sale.Revenue)
	if err != nil {
		return sim.CollaboratorError("postgres", fmt.Errorf("insert sale: %w", err))
	}
	return nil
}

func (r *PostgresRepository) AppendPriceChange(ctx context.Context, change sim.PriceChange) error {
	query := `
		INSERT INTO price_changes (run_id, day, store_id, product_id, old_price, new_price, delta, change_pct, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.pool.Exec(ctx, query, r.runID, change.Day, string(change.StoreID), string(change.ProductID),
		change.OldPrice, change.NewPrice, change.Delta, change.ChangePct, change.Reason)
	if err != nil {
		return sim.CollaboratorError("postgres", fmt.Errorf("insert price change: %w", err))
	}
	return nil
}

func (r *PostgresRepository) ReadDemandHistory(ctx context.Context, store sim.StoreID, product sim.ProductID, window int) ([]int64, error) {
	var limit any
	if window > 0 {
		limit = window
	}
	query := `
		SELECT demanded FROM sales
		WHERE run_id = $1 AND store_id = $2 AND product_id = $3
		ORDER BY day DESC LIMIT $4`
	rows, err := r.pool.Query(ctx, query, r.runID, string(store), string(product), limit)
	if err != nil {
		return nil, sim.CollaboratorError("postgres", fmt.Errorf("query demand history: %w", err))
	}
	values, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, sim.CollaboratorError("postgres", fmt.Errorf("scan demand history: %w", err))
	}
	slices.Reverse(values)
	return values, nil
}

func (r *PostgresRepository) LastSaleDay(ctx context.Context) (int, bool, error) {
	var day *int
	err := r.pool.QueryRow(ctx, `SELECT MAX(day) FROM sales WHERE run_id = $1`, r.runID).Scan(&day)
	if err != nil {
		return 0, false, sim.CollaboratorError("postgres", fmt.Errorf("query last sale day: %w", err))
	}
	if day == nil {
		return 0, false, nil
	}
	return *day, true, nil
}

func (r *PostgresRepository) ReadInventoryRecord(ctx context.Context, store sim.StoreID, product sim.ProductID) (sim.InventoryRecord, bool, error) {
	query := `
		SELECT on_hand, reorder_point, eoq, safety_stock, lead_time_days, outstanding
		FROM inventory_records WHERE run_id = $1 AND store_id = $2 AND product_id = $3`
	rec := sim.InventoryRecord{StoreID: store, ProductID: product}
	err := r.pool.QueryRow(ctx, query, r.runID, string(store), string(product)).Scan(
		&rec.OnHand, &rec.ReorderPoint, &rec.EOQ, &rec.SafetyStock, &rec.LeadTimeDays, &rec.Outstanding,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sim.InventoryRecord{}, false, nil
		}
		return sim.InventoryRecord{}, false, sim.CollaboratorError("postgres", fmt.Errorf("get inventory record: %w", err))
	}
	return rec, true, nil
}

func (r *PostgresRepository) WriteInventoryRecord(ctx context.Context, rec sim.InventoryRecord) error {
	query := `
		INSERT INTO inventory_records (run_id, store_id, product_id, on_hand, reorder_point, eoq, safety_stock, lead_time_days, outstanding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id, store_id, product_id)
		DO UPDATE SET on_hand = EXCLUDED.on_hand, reorder_point = EXCLUDED.reorder_point, eoq = EXCLUDED.eoq,
			safety_stock = EXCLUDED.safety_stock, lead_time_days = EXCLUDED.lead_time_days, outstanding = EXCLUDED.outstanding`
	_, err := r.pool.Exec(ctx, query, r.runID, string(rec.StoreID), string(rec.ProductID),
		rec.OnHand, rec.ReorderPoint, rec.EOQ, rec.SafetyStock, rec.LeadTimeDays, rec.Outstanding)
	if err != nil {
		return sim.CollaboratorError("postgres", fmt.Errorf("upsert inventory record: %w", err))
	}
	return nil
}
