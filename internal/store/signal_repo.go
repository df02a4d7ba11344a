package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Ziarant/StarPupil/internal/contracts"
)

// SignalRepository implements contracts.SignalRepository. The unique
// constraint on (instrument_id, signal_date, strategy, kind) is the
// dedup authority; TryInsert leans on it instead of read-then-write.
type SignalRepository struct {
	pool *pgxpool.Pool
}

// NewSignalRepository creates a new signal repository.
func NewSignalRepository(pool *pgxpool.Pool) *SignalRepository {
	return &SignalRepository{pool: pool}
}

// TryInsert atomically inserts the signal unless its unique key exists.
// Concurrent attempts on the same key yield exactly one Inserted; the
// rest see AlreadyExists with no error.
func (r *SignalRepository) TryInsert(ctx context.Context, sig *contracts.Signal) (contracts.InsertOutcome, error) {
	evidence, err := json.Marshal(sig.Evidence)
	if err != nil {
		return contracts.AlreadyExists, fmt.Errorf("failed to encode evidence: %w", err)
	}

	generatedAt := sig.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}

	query := `
		INSERT INTO signals (instrument_id, signal_date, strategy, kind,
			strength, reason, trigger_price, evidence, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (instrument_id, signal_date, strategy, kind) DO NOTHING
		RETURNING id
	`

	err = r.pool.QueryRow(ctx, query,
		sig.InstrumentID, sig.Date, sig.Strategy, string(sig.Kind),
		sig.Strength, sig.Reason, sig.TriggerPrice.String(), evidence, generatedAt,
	).Scan(&sig.ID)

	if errors.Is(err, pgx.ErrNoRows) {
		return contracts.AlreadyExists, nil
	}
	if err != nil {
		return contracts.AlreadyExists, fmt.Errorf("failed to insert signal %s: %w", sig.UniqueKey(), err)
	}

	return contracts.Inserted, nil
}

// ListByInstrument returns signals for one instrument in [from, to],
// ascending by date.
func (r *SignalRepository) ListByInstrument(ctx context.Context, instrumentID int64, from, to time.Time) ([]contracts.Signal, error) {
	query := `
		SELECT id, instrument_id, signal_date, strategy, kind,
			strength, reason, trigger_price, evidence, generated_at
		FROM signals
		WHERE instrument_id = $1 AND signal_date BETWEEN $2 AND $3
		ORDER BY signal_date, strategy, kind
	`

	rows, err := r.pool.Query(ctx, query, instrumentID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	return collectSignals(rows)
}

// ListByDate returns all signals generated for one trading date.
func (r *SignalRepository) ListByDate(ctx context.Context, date time.Time) ([]contracts.Signal, error) {
	query := `
		SELECT id, instrument_id, signal_date, strategy, kind,
			strength, reason, trigger_price, evidence, generated_at
		FROM signals
		WHERE signal_date = $1
		ORDER BY instrument_id, strategy, kind
	`

	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals by date: %w", err)
	}
	defer rows.Close()

	return collectSignals(rows)
}

func collectSignals(rows pgx.Rows) ([]contracts.Signal, error) {
	var out []contracts.Signal
	for rows.Next() {
		var sig contracts.Signal
		var kind, price string
		var evidence []byte

		err := rows.Scan(&sig.ID, &sig.InstrumentID, &sig.Date, &sig.Strategy, &kind,
			&sig.Strength, &sig.Reason, &price, &evidence, &sig.GeneratedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}

		sig.Kind = contracts.SignalKind(kind)
		if sig.TriggerPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("bad trigger price %q: %w", price, err)
		}
		if len(evidence) > 0 {
			if err := json.Unmarshal(evidence, &sig.Evidence); err != nil {
				return nil, fmt.Errorf("bad evidence for signal %d: %w", sig.ID, err)
			}
		}

		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signals: %w", err)
	}

	return out, nil
}
