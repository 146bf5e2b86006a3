package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-battle-service/internal/domain"
)

// ResultsSink stores final scores in Redis:
//
//	ZADD battle:results:{roomID} {score} {connectionID}
//	SET  battle:results:{roomID}:detail {json}
//
// Both keys expire after ttl; match history here is a display convenience,
// not durable storage.
type ResultsSink struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResultsSink(client *redis.Client, ttl time.Duration) *ResultsSink {
	return &ResultsSink{client: client, ttl: ttl}
}

func (s *ResultsSink) RecordMatch(ctx context.Context, result domain.MatchResult) error {
	detail, err := json.Marshal(result)
	if err != nil {
		return err
	}

	scoresKey := s.scoresKey(result.RoomID)
	members := make([]redis.Z, 0, len(result.Scores))
	for _, entry := range result.Scores {
		members = append(members, redis.Z{
			Score:  float64(entry.Score),
			Member: entry.ConnectionID,
		})
	}

	pipe := s.client.Pipeline()
	if len(members) > 0 {
		pipe.ZAdd(ctx, scoresKey, members...)
	}
	pipe.Set(ctx, s.detailKey(result.RoomID), detail, s.ttl)
	if s.ttl > 0 {
		pipe.Expire(ctx, scoresKey, s.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *ResultsSink) scoresKey(roomID string) string {
	return "battle:results:" + roomID
}

func (s *ResultsSink) detailKey(roomID string) string {
	return "battle:results:" + roomID + ":detail"
}
