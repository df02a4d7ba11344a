package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ziarant/StarPupil/internal/contracts"
)

// InstrumentRepository implements contracts.InstrumentRepository.
type InstrumentRepository struct {
	pool *pgxpool.Pool
}

// NewInstrumentRepository creates a new instrument repository.
func NewInstrumentRepository(pool *pgxpool.Pool) *InstrumentRepository {
	return &InstrumentRepository{pool: pool}
}

// GetBySymbol returns the instrument for (exchange, symbol), or nil when
// it has not been discovered yet.
func (r *InstrumentRepository) GetBySymbol(ctx context.Context, exchange, symbol string) (*contracts.Instrument, error) {
	query := `
		SELECT id, exchange, symbol, name, active
		FROM instruments
		WHERE exchange = $1 AND symbol = $2
	`

	var inst contracts.Instrument
	err := r.pool.QueryRow(ctx, query, exchange, symbol).Scan(
		&inst.ID, &inst.Exchange, &inst.Symbol, &inst.Name, &inst.Active,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instrument %s:%s: %w", exchange, symbol, err)
	}

	return &inst, nil
}

// ListActive returns all instruments the pipeline should process, in a
// stable order.
func (r *InstrumentRepository) ListActive(ctx context.Context) ([]contracts.Instrument, error) {
	query := `
		SELECT id, exchange, symbol, name, active
		FROM instruments
		WHERE active
		ORDER BY exchange, symbol
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active instruments: %w", err)
	}
	defer rows.Close()

	var out []contracts.Instrument
	for rows.Next() {
		var inst contracts.Instrument
		if err := rows.Scan(&inst.ID, &inst.Exchange, &inst.Symbol, &inst.Name, &inst.Active); err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instruments: %w", err)
	}

	return out, nil
}

// Upsert creates the instrument on first discovery. On conflict the name
// is refreshed but active is left alone so a manual deactivation sticks.
func (r *InstrumentRepository) Upsert(ctx context.Context, inst *contracts.Instrument) (*contracts.Instrument, error) {
	query := `
		INSERT INTO instruments (exchange, symbol, name, active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (exchange, symbol) DO UPDATE SET
			name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE instruments.name END
		RETURNING id, exchange, symbol, name, active
	`

	var out contracts.Instrument
	err := r.pool.QueryRow(ctx, query, inst.Exchange, inst.Symbol, inst.Name, inst.Active).Scan(
		&out.ID, &out.Exchange, &out.Symbol, &out.Name, &out.Active,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert instrument %s: %w", inst.Key(), err)
	}

	return &out, nil
}
