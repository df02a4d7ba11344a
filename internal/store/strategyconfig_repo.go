package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ziarant/StarPupil/internal/contracts"
)

// StrategyConfigRepository implements contracts.StrategyConfigRepository.
// Configuration is read once per run; when the table is empty the
// built-in defaults apply so a fresh install generates signals out of
// the box.
type StrategyConfigRepository struct {
	pool *pgxpool.Pool
}

// NewStrategyConfigRepository creates a new strategy config repository.
func NewStrategyConfigRepository(pool *pgxpool.Pool) *StrategyConfigRepository {
	return &StrategyConfigRepository{pool: pool}
}

// DefaultStrategyConfigs returns the configuration used when none is
// stored. All built-in strategies enabled at conventional thresholds.
func DefaultStrategyConfigs() []contracts.StrategyConfig {
	return []contracts.StrategyConfig{
		{Name: "rsi_reversal", Enabled: true, Params: map[string]float64{"overbought": 70, "oversold": 30}},
		{Name: "macd_crossover", Enabled: true},
		{Name: "sentiment_alert", Enabled: true, Params: map[string]float64{"threshold": 0.5, "min_items": 3}},
	}
}

// ListEnabled returns enabled strategy configs, or the defaults when the
// table holds no rows at all.
func (r *StrategyConfigRepository) ListEnabled(ctx context.Context) ([]contracts.StrategyConfig, error) {
	query := `
		SELECT name, enabled, params, flags
		FROM strategy_configs
		ORDER BY name
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query strategy configs: %w", err)
	}
	defer rows.Close()

	var all []contracts.StrategyConfig
	for rows.Next() {
		var cfg contracts.StrategyConfig
		var params, flags []byte

		if err := rows.Scan(&cfg.Name, &cfg.Enabled, &params, &flags); err != nil {
			return nil, fmt.Errorf("failed to scan strategy config: %w", err)
		}
		if len(params) > 0 {
			if err := json.Unmarshal(params, &cfg.Params); err != nil {
				return nil, fmt.Errorf("bad params for strategy %s: %w", cfg.Name, err)
			}
		}
		if len(flags) > 0 {
			if err := json.Unmarshal(flags, &cfg.Flags); err != nil {
				return nil, fmt.Errorf("bad flags for strategy %s: %w", cfg.Name, err)
			}
		}

		all = append(all, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating strategy configs: %w", err)
	}

	if len(all) == 0 {
		return DefaultStrategyConfigs(), nil
	}

	enabled := all[:0]
	for _, cfg := range all {
		if cfg.Enabled {
			enabled = append(enabled, cfg)
		}
	}
	return enabled, nil
}
