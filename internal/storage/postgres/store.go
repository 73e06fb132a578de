package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"poolengine/internal/model"
)

// Store provides Postgres persistence for emitted pool events.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// PutEventBatch inserts a batch of pool events, retrying transient failures
// with exponential backoff.
func (s *Store) PutEventBatch(ctx context.Context, events []model.PoolEvent) error {
	if len(events) == 0 {
		return nil
	}
	return withRetry(ctx, 3, 200*time.Millisecond, func(ctx context.Context) error {
		return s.sendBatch(ctx, events)
	})
}

func (s *Store) sendBatch(ctx context.Context, events []model.PoolEvent) error {
	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(`
			INSERT INTO pool_events (
				kind, pair, asset_a, asset_b, actor,
				amount_a, amount_b, asset_in, amount_in, amount_out,
				shares, fee, reserve_a, reserve_b, share_supply,
				event_ts, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now())
		`,
			ev.Kind,
			ev.Pair,
			ev.AssetA,
			ev.AssetB,
			ev.Actor,
			ev.AmountA,
			ev.AmountB,
			ev.AssetIn,
			ev.AmountIn,
			ev.AmountOut,
			ev.Shares,
			ev.Fee,
			ev.ReserveA,
			ev.ReserveB,
			ev.ShareSupply,
			int64(ev.Timestamp),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
