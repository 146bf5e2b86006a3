package app_test

import (
	"testing"
	"time"

	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/domain"
)

func fastConfig() app.RoomConfig {
	return app.RoomConfig{
		PointsPerCorrect:  10,
		QuestionTimeLimit: time.Second,
		RevealDelay:       20 * time.Millisecond,
	}
}

func twoQuestions() []domain.Question {
	return []domain.Question{
		{ID: 1, Text: "First?", Options: []string{"a", "b"}, CorrectOption: 0},
		{ID: 2, Text: "Second?", Options: []string{"x", "y", "z"}, CorrectOption: 2},
	}
}

func TestHostSuccessionOnLeave(t *testing.T) {
	room := app.NewRoom("r1", twoQuestions(), fastConfig(), nil, nil)

	if _, ok := room.Join("a", "Alice"); !ok {
		t.Fatalf("join a failed")
	}
	chB, ok := room.Join("b", "Bob")
	if !ok {
		t.Fatalf("join b failed")
	}
	if host := room.Snapshot().HostID; host != "a" {
		t.Fatalf("expected first joiner to host, got %q", host)
	}

	room.Leave("a")
	if host := room.Snapshot().HostID; host != "b" {
		t.Fatalf("expected host reassigned to b, got %q", host)
	}

	ev := waitFor(t, chB, domain.EventRoster)
	roster := ev.Payload.(domain.RosterPayload)
	if roster.HostID != "b" || len(roster.Participants) != 1 {
		t.Fatalf("unexpected roster after leave: %+v", roster)
	}

	// The new host can start.
	if err := room.Start("b", nil); err != nil {
		t.Fatalf("new host could not start: %v", err)
	}
}

func TestDuplicateJoinIsNoOp(t *testing.T) {
	room := app.NewRoom("r1", twoQuestions(), fastConfig(), nil, nil)

	first, _ := room.Join("a", "Alice")
	second, _ := room.Join("a", "Alice")
	if first != second {
		t.Fatalf("expected duplicate join to return the existing channel")
	}
	if n := len(room.Snapshot().Participants); n != 1 {
		t.Fatalf("expected 1 participant, got %d", n)
	}
}

func TestNonHostStartRejected(t *testing.T) {
	room := app.NewRoom("r1", twoQuestions(), fastConfig(), nil, nil)
	room.Join("a", "Alice")
	room.Join("b", "Bob")

	if err := room.Start("b", nil); err != domain.ErrNotHost {
		t.Fatalf("expected ErrNotHost, got %v", err)
	}
	if room.Snapshot().Active {
		t.Fatalf("room must stay in lobby after rejected start")
	}
}

func TestFullMatchScenario(t *testing.T) {
	room := app.NewRoom("r1", nil, fastConfig(), nil, nil)
	chA, _ := room.Join("a", "Alice")
	room.Join("b", "Bob")

	if err := room.Start("a", twoQuestions()); err != nil {
		t.Fatalf("start: %v", err)
	}

	q := waitFor(t, chA, domain.EventQuestion).Payload.(domain.QuestionPayload)
	if q.QuestionNumber != 1 || q.TotalQuestions != 2 {
		t.Fatalf("unexpected first question: %+v", q)
	}

	// Question 1: Alice correct, Bob wrong. Advance must not wait for the timer.
	room.SubmitAnswer("a", 0)
	room.SubmitAnswer("b", 1)

	reveal := waitFor(t, chA, domain.EventReveal).Payload.(domain.RevealPayload)
	if reveal.CorrectOption != 0 {
		t.Fatalf("expected reveal of option 0, got %d", reveal.CorrectOption)
	}

	q2 := waitFor(t, chA, domain.EventQuestion).Payload.(domain.QuestionPayload)
	if q2.QuestionNumber != 2 {
		t.Fatalf("expected question 2, got %+v", q2)
	}

	// Question 2: both correct.
	room.SubmitAnswer("a", 2)
	room.SubmitAnswer("b", 2)

	complete := waitFor(t, chA, domain.EventComplete).Payload.(domain.CompletePayload)
	if len(complete.FinalScores) != 2 {
		t.Fatalf("expected 2 final scores, got %+v", complete.FinalScores)
	}
	first, second := complete.FinalScores[0], complete.FinalScores[1]
	if first.ConnectionID != "a" || first.Score != 20 || first.Rank != 1 {
		t.Fatalf("expected Alice leading with 20, got %+v", first)
	}
	if second.ConnectionID != "b" || second.Score != 10 || second.Rank != 2 {
		t.Fatalf("expected Bob second with 10, got %+v", second)
	}

	snap := room.Snapshot()
	if snap.Active || !snap.Finished {
		t.Fatalf("expected finished room, got %+v", snap)
	}
}

func TestDeadlineScoresUnansweredAsIncorrect(t *testing.T) {
	cfg := fastConfig()
	cfg.QuestionTimeLimit = 50 * time.Millisecond
	questions := twoQuestions()[:1]

	room := app.NewRoom("r1", nil, cfg, nil, nil)
	chA, _ := room.Join("a", "Alice")
	room.Join("b", "Bob")

	if err := room.Start("a", questions); err != nil {
		t.Fatalf("start: %v", err)
	}
	room.SubmitAnswer("a", 0)
	// Bob never answers; the countdown must advance the round on its own.

	complete := waitFor(t, chA, domain.EventComplete).Payload.(domain.CompletePayload)
	if complete.FinalScores[0].ConnectionID != "a" || complete.FinalScores[0].Score != 10 {
		t.Fatalf("expected Alice 10 points, got %+v", complete.FinalScores)
	}
	if complete.FinalScores[1].ConnectionID != "b" || complete.FinalScores[1].Score != 0 {
		t.Fatalf("expected Bob scored incorrect on timeout, got %+v", complete.FinalScores)
	}
}

func TestDuplicateAnswerScoredOnce(t *testing.T) {
	room := app.NewRoom("r1", twoQuestions(), fastConfig(), nil, nil)
	room.Join("a", "Alice")
	room.Join("b", "Bob")

	if err := room.Start("a", nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	room.SubmitAnswer("a", 0)
	room.SubmitAnswer("a", 0) // second answer in the same round

	for _, p := range room.Snapshot().Participants {
		if p.ConnectionID == "a" && p.Score != 10 {
			t.Fatalf("expected score to change at most once, got %d", p.Score)
		}
	}
}

func TestNoAnswerSentinelNeverScores(t *testing.T) {
	room := app.NewRoom("r1", twoQuestions(), fastConfig(), nil, nil)
	room.Join("a", "Alice")
	room.Join("b", "Bob")

	if err := room.Start("a", nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	room.SubmitAnswer("a", domain.NoAnswer)

	for _, p := range room.Snapshot().Participants {
		if p.ConnectionID == "a" && p.Score != 0 {
			t.Fatalf("no-answer must score zero, got %d", p.Score)
		}
	}
}

func TestStartWhileActiveResendsCurrentQuestion(t *testing.T) {
	room := app.NewRoom("r1", twoQuestions(), fastConfig(), nil, nil)
	chA, _ := room.Join("a", "Alice")

	if err := room.Start("a", nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, chA, domain.EventQuestion)

	// A reconnect-style repeat start recovers the current question.
	if err := room.Start("a", nil); err != nil {
		t.Fatalf("repeat start: %v", err)
	}
	q := waitFor(t, chA, domain.EventQuestion).Payload.(domain.QuestionPayload)
	if q.QuestionNumber != 1 {
		t.Fatalf("expected current question resent, got %+v", q)
	}
}

func TestSubmitAfterFinishedIgnored(t *testing.T) {
	room := app.NewRoom("r1", twoQuestions()[:1], fastConfig(), nil, nil)
	chA, _ := room.Join("a", "Alice")

	if err := room.Start("a", nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	room.SubmitAnswer("a", 0)
	waitFor(t, chA, domain.EventComplete)

	room.SubmitAnswer("a", 0)
	if p := room.Snapshot().Participants[0]; p.Score != 10 {
		t.Fatalf("expected score untouched after finish, got %d", p.Score)
	}
}

func TestQuestionIndexOnlyAdvancesWhileActive(t *testing.T) {
	room := app.NewRoom("r1", twoQuestions(), fastConfig(), nil, nil)
	chA, _ := room.Join("a", "Alice")

	if idx := room.Snapshot().QuestionIndex; idx != 0 {
		t.Fatalf("lobby index should be 0, got %d", idx)
	}
	if err := room.Start("a", nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	q1 := waitFor(t, chA, domain.EventQuestion).Payload.(domain.QuestionPayload)

	room.SubmitAnswer("a", 0)
	q2 := waitFor(t, chA, domain.EventQuestion).Payload.(domain.QuestionPayload)
	if q2.QuestionNumber <= q1.QuestionNumber {
		t.Fatalf("question number did not advance: %d -> %d", q1.QuestionNumber, q2.QuestionNumber)
	}

	room.SubmitAnswer("a", 2)
	waitFor(t, chA, domain.EventComplete)
	if idx := room.Snapshot().QuestionIndex; idx != 2 {
		t.Fatalf("expected index to rest at question count after finish, got %d", idx)
	}
}

func TestTeardownCancelsPendingTimer(t *testing.T) {
	cfg := fastConfig()
	cfg.QuestionTimeLimit = 30 * time.Millisecond

	room := app.NewRoom("r1", twoQuestions(), cfg, nil, nil)
	room.Join("a", "Alice")
	if err := room.Start("a", nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	room.Leave("a")
	if !room.Closed() {
		t.Fatalf("expected room torn down when roster emptied")
	}
	// A stale countdown firing after teardown must be a no-op, not a panic.
	time.Sleep(60 * time.Millisecond)
}

func TestLeaveOfLastHoldoutAdvancesRound(t *testing.T) {
	room := app.NewRoom("r1", twoQuestions()[:1], fastConfig(), nil, nil)
	chA, _ := room.Join("a", "Alice")
	room.Join("b", "Bob")

	if err := room.Start("a", nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	room.SubmitAnswer("a", 0)
	room.Leave("b") // Bob was the only one still to answer

	complete := waitFor(t, chA, domain.EventComplete).Payload.(domain.CompletePayload)
	if len(complete.FinalScores) != 1 || complete.FinalScores[0].ConnectionID != "a" {
		t.Fatalf("expected match to finish for Alice alone, got %+v", complete.FinalScores)
	}
}

func waitFor(t *testing.T, ch <-chan domain.Event, eventType string) domain.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed while waiting for %s", eventType)
			}
			if ev.Type == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", eventType)
		}
	}
}
