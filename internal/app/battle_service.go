package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"quiz-battle-service/internal/domain"
)

// RoomRepository abstracts how live rooms are stored (in-memory, Redis-marked, etc).
type RoomRepository interface {
	GetOrCreate(roomID string, create func() *Room) *Room
	Get(roomID string) (*Room, bool)
	DeleteIfEmpty(roomID string)
}

// QuestionBank loads question sets (from cache/backing store).
type QuestionBank interface {
	QuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// ResultsSink receives final scores when a match finishes.
type ResultsSink interface {
	RecordMatch(ctx context.Context, result domain.MatchResult) error
}

// ServiceConfig tunes match behavior. FallbackQuestions seed rooms when the
// bank cannot serve the default set, so room creation never fails.
type ServiceConfig struct {
	Room               RoomConfig
	DefaultQuestionSet string
	FallbackQuestions  []domain.Question
}

// BattleService contains the quiz-battle use cases. Each call resolves a room
// and delegates to the room state machine; the room map is the only shared
// resource and is never mutated around the state machine.
type BattleService struct {
	rooms   RoomRepository
	bank    QuestionBank
	results ResultsSink
	cfg     ServiceConfig
	logger  *zap.Logger
}

func NewBattleService(rooms RoomRepository, bank QuestionBank, results ResultsSink, cfg ServiceConfig, logger *zap.Logger) *BattleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BattleService{rooms: rooms, bank: bank, results: results, cfg: cfg, logger: logger}
}

// Join places a connection into a room, creating the room on first use, and
// returns the connection's event stream. The channel closes when the
// participant leaves or the room is torn down.
func (s *BattleService) Join(ctx context.Context, roomID, connID, displayName string) (<-chan domain.Event, error) {
	questions := s.defaultQuestions(ctx)
	for {
		room := s.rooms.GetOrCreate(roomID, func() *Room {
			return NewRoom(roomID, questions, s.cfg.Room, s.logger, s.recordResult)
		})
		if ch, ok := room.Join(connID, displayName); ok {
			return ch, nil
		}
		// Lost a race with teardown; the store hands out a fresh room next pass.
	}
}

// Start begins the match in a room. Unknown rooms are treated as stale client
// messages and ignored. Inline questions win over a question-set id; with
// neither, the room plays its default snapshot.
func (s *BattleService) Start(ctx context.Context, roomID, connID, setID string, questions []domain.Question) error {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return nil
	}
	if len(questions) == 0 && setID != "" {
		set, err := s.bank.QuestionSet(ctx, setID)
		if err != nil {
			return fmt.Errorf("load question set %q: %w", setID, err)
		}
		questions = set.Questions
	}
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", q.ID, err)
		}
	}
	return room.Start(connID, questions)
}

// SubmitAnswer records an answer; references to unknown rooms are ignored,
// so there is no error to report.
func (s *BattleService) SubmitAnswer(_ context.Context, roomID, connID string, answerIndex int) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return
	}
	room.SubmitAnswer(connID, answerIndex)
}

// Leave removes a participant and drops the room once its roster is empty.
func (s *BattleService) Leave(_ context.Context, roomID, connID string) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return
	}
	room.Leave(connID)
	if room.Closed() {
		s.rooms.DeleteIfEmpty(roomID)
	}
}

// defaultQuestions resolves the configured default set, falling back to the
// built-in snapshot so rooms can always be created.
func (s *BattleService) defaultQuestions(ctx context.Context) []domain.Question {
	if s.bank != nil && s.cfg.DefaultQuestionSet != "" {
		set, err := s.bank.QuestionSet(ctx, s.cfg.DefaultQuestionSet)
		if err == nil && len(set.Questions) > 0 {
			return set.Questions
		}
		if err != nil {
			s.logger.Warn("default question set unavailable",
				zap.String("setId", s.cfg.DefaultQuestionSet),
				zap.Error(err))
		}
	}
	return s.cfg.FallbackQuestions
}

// recordResult ships final scores to the sink off the room lock. Persistence
// is fire-and-forget: a sink failure never touches room state.
func (s *BattleService) recordResult(result domain.MatchResult) {
	if s.results == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.results.RecordMatch(ctx, result); err != nil {
			s.logger.Error("record match result",
				zap.String("roomId", result.RoomID),
				zap.Error(err))
		}
	}()
}
