package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-battle-service/internal/domain"
)

// ResultsSink appends finished-match results as JSONB rows.
type ResultsSink struct {
	pool *pgxpool.Pool
}

func NewResultsSink(pool *pgxpool.Pool) *ResultsSink {
	return &ResultsSink{pool: pool}
}

func (s *ResultsSink) RecordMatch(ctx context.Context, result domain.MatchResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal match result: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO match_results (room_id, finished_at, data) VALUES ($1, $2, $3)`,
		result.RoomID, result.FinishedAt, data)
	if err != nil {
		return fmt.Errorf("insert match result: %w", err)
	}
	return nil
}
