package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quiz-battle-service/internal/domain"
	"quiz-battle-service/internal/infra/memory"
)

func TestQuestionBankCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	loader := &countingLoader{
		SetLoader: memory.NewStaticSetLoader(map[string]domain.QuestionSet{
			"general-1": sampleSet(),
		}),
	}
	bank := NewQuestionBank(client, loader, time.Minute)

	set, err := bank.QuestionSet(context.Background(), "general-1")
	if err != nil {
		t.Fatalf("get set: %v", err)
	}
	if len(set.Questions) != 1 || set.Questions[0].CorrectOption != 1 {
		t.Fatalf("unexpected set from loader: %+v", set)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("battle:questions:general-1") {
		t.Fatalf("expected cached blob in redis")
	}

	// Second call should hit the redis cache, loader not incremented.
	if _, err := bank.QuestionSet(context.Background(), "general-1"); err != nil {
		t.Fatalf("get set 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
}

// Misses on distinct set ids bypass singleflight's per-key serialization and
// fill the cache concurrently; this must be safe under the race detector.
func TestQuestionBankConcurrentMisses(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	sets := make(map[string]domain.QuestionSet)
	ids := []string{"set-1", "set-2", "set-3", "set-4"}
	for _, id := range ids {
		set := sampleSet()
		set.ID = id
		sets[id] = set
	}
	bank := NewQuestionBank(newClient(mr), memory.NewStaticSetLoader(sets), time.Minute)

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := bank.QuestionSet(context.Background(), id); err != nil {
				t.Errorf("get %s: %v", id, err)
			}
		}(id)
	}
	wg.Wait()
}

type countingLoader struct {
	SetLoader
	calls int
}

func (l *countingLoader) LoadQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	l.calls++
	return l.SetLoader.LoadQuestionSet(ctx, setID)
}

func sampleSet() domain.QuestionSet {
	return domain.QuestionSet{
		ID: "general-1",
		Questions: []domain.Question{
			{
				ID:            1,
				Text:          "What is 2 + 2?",
				Options:       []string{"3", "4"},
				CorrectOption: 1,
			},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
