package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"quiz-battle-service/internal/domain"
)

func TestResultsSinkWritesScores(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	sink := NewResultsSink(client, time.Minute)

	err = sink.RecordMatch(context.Background(), domain.MatchResult{
		RoomID:     "r1",
		FinishedAt: time.Now(),
		Scores: []domain.FinalScore{
			{ConnectionID: "a", DisplayName: "Alice", Score: 20, Rank: 1},
			{ConnectionID: "b", DisplayName: "Bob", Score: 10, Rank: 2},
		},
	})
	if err != nil {
		t.Fatalf("record match: %v", err)
	}

	score, err := client.ZScore(context.Background(), "battle:results:r1", "a").Result()
	if err != nil {
		t.Fatalf("zscore: %v", err)
	}
	if score != 20 {
		t.Fatalf("expected Alice's score 20, got %f", score)
	}
	if !mr.Exists("battle:results:r1:detail") {
		t.Fatalf("expected detail blob to be stored")
	}
}
