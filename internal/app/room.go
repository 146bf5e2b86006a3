package app

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"quiz-battle-service/internal/domain"
)

// RoomConfig carries the tunable match constants. The award per correct
// answer is configuration rather than a literal; the source systems disagreed
// on its value.
type RoomConfig struct {
	PointsPerCorrect  int
	QuestionTimeLimit time.Duration
	RevealDelay       time.Duration
}

func (c RoomConfig) withDefaults() RoomConfig {
	if c.PointsPerCorrect <= 0 {
		c.PointsPerCorrect = 10
	}
	if c.QuestionTimeLimit <= 0 {
		c.QuestionTimeLimit = 15 * time.Second
	}
	if c.RevealDelay <= 0 {
		c.RevealDelay = 2 * time.Second
	}
	return c
}

type roomPhase int

const (
	phaseLobby roomPhase = iota
	phaseQuestion
	phaseReveal
	phaseFinished
)

// Room is one isolated quiz-battle match. All state is guarded by mu; every
// operation (join, start, submit, timer fire) runs to completion under the
// lock, so transitions for a room are totally ordered. Nothing blocking is
// done while the lock is held — the finished callback is dispatched outside.
type Room struct {
	id         string
	cfg        RoomConfig
	logger     *zap.Logger
	onFinished func(domain.MatchResult)

	mu           sync.Mutex
	participants []*domain.Participant // join order; index 0 is next in host succession
	outbound     map[string]chan domain.Event
	questions    []domain.Question
	current      int
	phase        roomPhase
	hostID       string
	timer        *time.Timer
	epoch        uint64
	closed       bool
}

// NewRoom creates a lobby-state room seeded with the default question
// snapshot. onFinished receives the final scores when the match completes and
// must not block.
func NewRoom(id string, questions []domain.Question, cfg RoomConfig, logger *zap.Logger, onFinished func(domain.MatchResult)) *Room {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Room{
		id:         id,
		cfg:        cfg.withDefaults(),
		logger:     logger,
		onFinished: onFinished,
		outbound:   make(map[string]chan domain.Event),
		questions:  questions,
	}
}

func (r *Room) ID() string { return r.id }

// Join adds a participant and returns their event channel. A duplicate join
// for a connection already present is a no-op that returns the existing
// channel. ok is false when the room has already been torn down; callers
// should fetch a fresh room and retry.
func (r *Room) Join(connID, displayName string) (<-chan domain.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, false
	}
	if ch, ok := r.outbound[connID]; ok {
		return ch, true
	}

	r.participants = append(r.participants, &domain.Participant{
		ConnectionID: connID,
		DisplayName:  displayName,
	})
	ch := make(chan domain.Event, 16)
	r.outbound[connID] = ch
	if len(r.participants) == 1 {
		r.hostID = connID
	}
	r.logger.Info("participant joined",
		zap.String("roomId", r.id),
		zap.String("connId", connID),
		zap.Int("participants", len(r.participants)))

	r.broadcastLocked(r.rosterEventLocked())
	if r.phase == phaseQuestion {
		// Mid-round joiner gets the live question so they can play this round.
		r.unicastLocked(connID, r.questionEventLocked())
	}
	return ch, true
}

// Leave removes a participant, reassigns the host if needed and tears the
// room down when the roster empties. Unknown connections are ignored, so
// duplicate disconnect signals are safe.
func (r *Room) Leave(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, p := range r.participants {
		if p.ConnectionID == connID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	r.participants = append(r.participants[:idx], r.participants[idx+1:]...)
	if ch, ok := r.outbound[connID]; ok {
		delete(r.outbound, connID)
		close(ch)
	}

	if len(r.participants) == 0 {
		r.teardownLocked()
		return
	}

	if r.hostID == connID {
		r.hostID = r.participants[0].ConnectionID
		r.logger.Info("host reassigned",
			zap.String("roomId", r.id),
			zap.String("connId", r.hostID))
	}
	r.broadcastLocked(r.rosterEventLocked())

	// The departed player may have been the last holdout of the round.
	if r.phase == phaseQuestion && r.allAnsweredLocked() {
		r.beginRevealLocked()
	}
}

// Start begins the match. Only the host may start; a start while the match is
// already running re-sends the current question to the caller (reconnect
// recovery), and a finished room stays inert.
func (r *Room) Start(connID string, questions []domain.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.phase == phaseFinished {
		return nil
	}
	if connID != r.hostID {
		return domain.ErrNotHost
	}
	if r.phase != phaseLobby {
		r.unicastLocked(connID, r.questionEventLocked())
		return nil
	}

	if len(questions) > 0 {
		r.questions = questions
	}
	if len(r.questions) == 0 {
		return nil
	}

	r.phase = phaseQuestion
	r.current = 0
	for _, p := range r.participants {
		p.Answered = false
	}
	r.logger.Info("match started",
		zap.String("roomId", r.id),
		zap.Int("questions", len(r.questions)))

	r.broadcastLocked(r.questionEventLocked())
	r.scheduleCountdownLocked()
	return nil
}

// SubmitAnswer scores one answer. It is silently ignored outside an active
// round, for unknown participants, and for repeat answers within a round.
func (r *Room) SubmitAnswer(connID string, answerIndex int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != phaseQuestion {
		return
	}
	var participant *domain.Participant
	for _, p := range r.participants {
		if p.ConnectionID == connID {
			participant = p
			break
		}
	}
	if participant == nil || participant.Answered {
		return
	}

	question := r.questions[r.current]
	if answerIndex >= 0 && answerIndex == question.CorrectOption {
		participant.Score += r.cfg.PointsPerCorrect
	}
	participant.Answered = true

	r.broadcastLocked(r.scoresEventLocked())
	if r.allAnsweredLocked() {
		r.beginRevealLocked()
	}
}

// IsEmpty reports whether the roster is empty.
func (r *Room) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants) == 0
}

// Closed reports whether the room has been torn down.
func (r *Room) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Snapshot returns a copy of the observable room state.
func (r *Room) Snapshot() domain.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	views := make([]domain.ParticipantView, 0, len(r.participants))
	for _, p := range r.participants {
		views = append(views, domain.ParticipantView{
			ConnectionID: p.ConnectionID,
			DisplayName:  p.DisplayName,
			Score:        p.Score,
		})
	}
	return domain.RoomSnapshot{
		RoomID:        r.id,
		HostID:        r.hostID,
		Active:        r.phase == phaseQuestion || r.phase == phaseReveal,
		Finished:      r.phase == phaseFinished,
		QuestionIndex: r.current,
		Participants:  views,
	}
}

// scheduleCountdownLocked arms the per-question deadline. Arming replaces any
// previous timer, preserving the one-in-flight-timer invariant.
func (r *Room) scheduleCountdownLocked() {
	limit := r.cfg.QuestionTimeLimit
	if sec := r.questions[r.current].TimeLimitSec; sec > 0 {
		limit = time.Duration(sec) * time.Second
	}
	r.armLocked(limit, r.onCountdownElapsed)
}

// armLocked schedules fn after d, tagged with the current (epoch, question)
// pair so a stale fire is a detected no-op.
func (r *Room) armLocked(d time.Duration, fn func(epoch uint64, index int)) {
	if r.timer != nil {
		r.timer.Stop()
	}
	epoch, index := r.epoch, r.current
	r.timer = time.AfterFunc(d, func() { fn(epoch, index) })
}

// validLocked rejects timer callbacks scheduled against prior room state. A
// room may have advanced or been destroyed between scheduling and firing.
func (r *Room) validLocked(epoch uint64, index int) bool {
	return !r.closed && epoch == r.epoch && index == r.current
}

// onCountdownElapsed treats every still-unanswered participant as having
// submitted no answer, then advances the round.
func (r *Room) onCountdownElapsed(epoch uint64, index int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.validLocked(epoch, index) || r.phase != phaseQuestion {
		return
	}

	timedOut := 0
	for _, p := range r.participants {
		if !p.Answered {
			p.Answered = true // scored as domain.NoAnswer: no points
			timedOut++
		}
	}
	if timedOut > 0 {
		r.logger.Debug("countdown elapsed",
			zap.String("roomId", r.id),
			zap.Int("question", r.current),
			zap.Int("unanswered", timedOut))
		r.broadcastLocked(r.scoresEventLocked())
	}
	r.beginRevealLocked()
}

// beginRevealLocked broadcasts the correct answer and schedules the advance
// after the reveal delay. Bumping the epoch invalidates the countdown.
func (r *Room) beginRevealLocked() {
	r.phase = phaseReveal
	r.epoch++
	r.broadcastLocked(domain.Event{
		Type:    domain.EventReveal,
		Payload: domain.RevealPayload{CorrectOption: r.questions[r.current].CorrectOption},
	})
	r.armLocked(r.cfg.RevealDelay, r.onRevealElapsed)
}

// onRevealElapsed moves to the next question or finishes the match.
func (r *Room) onRevealElapsed(epoch uint64, index int) {
	r.mu.Lock()

	if !r.validLocked(epoch, index) || r.phase != phaseReveal {
		r.mu.Unlock()
		return
	}

	r.epoch++
	for _, p := range r.participants {
		p.Answered = false
	}
	r.current++

	if r.current < len(r.questions) {
		r.phase = phaseQuestion
		r.broadcastLocked(r.questionEventLocked())
		r.scheduleCountdownLocked()
		r.mu.Unlock()
		return
	}

	r.phase = phaseFinished
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	final := r.finalScoresLocked()
	r.broadcastLocked(domain.Event{
		Type:    domain.EventComplete,
		Payload: domain.CompletePayload{FinalScores: final},
	})
	r.logger.Info("match finished",
		zap.String("roomId", r.id),
		zap.Int("participants", len(final)))
	result := domain.MatchResult{
		RoomID:     r.id,
		FinishedAt: time.Now(),
		Scores:     final,
	}
	onFinished := r.onFinished
	r.mu.Unlock()

	if onFinished != nil {
		onFinished(result)
	}
}

// teardownLocked cancels any pending timer and marks the room dead so stale
// callbacks and late joins become no-ops.
func (r *Room) teardownLocked() {
	r.closed = true
	r.epoch++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.logger.Info("room torn down", zap.String("roomId", r.id))
}

func (r *Room) allAnsweredLocked() bool {
	for _, p := range r.participants {
		if !p.Answered {
			return false
		}
	}
	return len(r.participants) > 0
}

// finalScoresLocked ranks by score descending; ties keep join order, which a
// stable sort over the join-ordered roster preserves.
func (r *Room) finalScoresLocked() []domain.FinalScore {
	final := make([]domain.FinalScore, 0, len(r.participants))
	for _, p := range r.participants {
		final = append(final, domain.FinalScore{
			ConnectionID: p.ConnectionID,
			DisplayName:  p.DisplayName,
			Score:        p.Score,
		})
	}
	sort.SliceStable(final, func(i, j int) bool {
		return final[i].Score > final[j].Score
	})
	for i := range final {
		final[i].Rank = i + 1
	}
	return final
}

func (r *Room) rosterEventLocked() domain.Event {
	views := make([]domain.ParticipantView, 0, len(r.participants))
	for _, p := range r.participants {
		views = append(views, domain.ParticipantView{
			ConnectionID: p.ConnectionID,
			DisplayName:  p.DisplayName,
			Score:        p.Score,
		})
	}
	return domain.Event{
		Type:    domain.EventRoster,
		Payload: domain.RosterPayload{Participants: views, HostID: r.hostID},
	}
}

// questionEventLocked builds the sanitized payload for the current question.
func (r *Room) questionEventLocked() domain.Event {
	question := r.questions[r.current]
	limit := question.TimeLimitSec
	if limit <= 0 {
		limit = int(r.cfg.QuestionTimeLimit / time.Second)
	}
	return domain.Event{
		Type: domain.EventQuestion,
		Payload: domain.QuestionPayload{
			ID:             question.ID,
			Text:           question.Text,
			Options:        question.Options,
			QuestionNumber: r.current + 1,
			TotalQuestions: len(r.questions),
			TimeLimitSec:   limit,
		},
	}
}

func (r *Room) scoresEventLocked() domain.Event {
	scores := make(map[string]int, len(r.participants))
	for _, p := range r.participants {
		scores[p.ConnectionID] = p.Score
	}
	return domain.Event{
		Type:    domain.EventScores,
		Payload: domain.ScoresPayload{Scores: scores},
	}
}

func (r *Room) broadcastLocked(ev domain.Event) {
	for _, ch := range r.outbound {
		deliver(ch, ev)
	}
}

func (r *Room) unicastLocked(connID string, ev domain.Event) {
	if ch, ok := r.outbound[connID]; ok {
		deliver(ch, ev)
	}
}

// deliver drops the oldest pending event rather than let a slow client block
// room progress.
func deliver(ch chan domain.Event, ev domain.Event) {
	select {
	case ch <- ev:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- ev
	}
}
