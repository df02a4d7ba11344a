package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Ziarant/StarPupil/internal/contracts"
)

// PriceRepository implements contracts.PriceRepository. Bars are unique
// on (instrument, bar_date); re-fetching a day overwrites it, which lets
// upstream corrections flow in.
type PriceRepository struct {
	pool *pgxpool.Pool
}

// NewPriceRepository creates a new price repository.
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

// GetRange returns bars in [from, to], ascending by date.
func (r *PriceRepository) GetRange(ctx context.Context, instrumentID int64, from, to time.Time) ([]contracts.PriceBar, error) {
	query := `
		SELECT instrument_id, bar_date, open, high, low, close, volume
		FROM price_bars
		WHERE instrument_id = $1 AND bar_date BETWEEN $2 AND $3
		ORDER BY bar_date
	`

	rows, err := r.pool.Query(ctx, query, instrumentID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query price bars: %w", err)
	}
	defer rows.Close()

	var out []contracts.PriceBar
	for rows.Next() {
		bar, err := scanPriceBar(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price bars: %w", err)
	}

	return out, nil
}

// SaveBatch upserts bars in one transaction. An empty batch is a no-op.
func (r *PriceRepository) SaveBatch(ctx context.Context, bars []contracts.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO price_bars (instrument_id, bar_date, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (instrument_id, bar_date) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume
	`

	for _, bar := range bars {
		_, err := tx.Exec(ctx, query,
			bar.InstrumentID, bar.Date,
			bar.Open.String(), bar.High.String(), bar.Low.String(), bar.Close.String(),
			bar.Volume,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert bar %d/%s: %w", bar.InstrumentID, bar.Date.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit price bars: %w", err)
	}

	return nil
}

func scanPriceBar(rows pgx.Rows) (contracts.PriceBar, error) {
	var bar contracts.PriceBar
	var open, high, low, close string

	if err := rows.Scan(&bar.InstrumentID, &bar.Date, &open, &high, &low, &close, &bar.Volume); err != nil {
		return contracts.PriceBar{}, fmt.Errorf("failed to scan price bar: %w", err)
	}

	var err error
	if bar.Open, err = decimal.NewFromString(open); err != nil {
		return contracts.PriceBar{}, fmt.Errorf("bad open %q: %w", open, err)
	}
	if bar.High, err = decimal.NewFromString(high); err != nil {
		return contracts.PriceBar{}, fmt.Errorf("bad high %q: %w", high, err)
	}
	if bar.Low, err = decimal.NewFromString(low); err != nil {
		return contracts.PriceBar{}, fmt.Errorf("bad low %q: %w", low, err)
	}
	if bar.Close, err = decimal.NewFromString(close); err != nil {
		return contracts.PriceBar{}, fmt.Errorf("bad close %q: %w", close, err)
	}

	return bar, nil
}
