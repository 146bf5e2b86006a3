package domain

import "time"

// NoAnswer is the sentinel answer index for a participant who let the
// countdown elapse (or explicitly passed). It is always scored incorrect.
const NoAnswer = -1

// Question is a single multiple-choice question. CorrectOption indexes into
// Options and is stripped from every payload sent to clients.
type Question struct {
	ID            int      `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correctOption"`
	TimeLimitSec  int      `json:"timeLimitSec,omitempty"` // falls back to the configured limit if zero
}

// Validate checks the structural invariants a playable question must hold.
func (q Question) Validate() error {
	if len(q.Options) < 2 {
		return ErrInvalidQuestion
	}
	if q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
		return ErrInvalidQuestion
	}
	return nil
}

// QuestionSet is an ordered sequence of questions loaded from the bank.
type QuestionSet struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// Participant tracks one connected player inside a room.
type Participant struct {
	ConnectionID string
	DisplayName  string
	Score        int
	Answered     bool
}

// ParticipantView is the roster-facing snapshot of a participant.
type ParticipantView struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName"`
	Score        int    `json:"score"`
}

// FinalScore is one ranked leaderboard row after a match finishes.
type FinalScore struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName"`
	Score        int    `json:"score"`
	Rank         int    `json:"rank"`
}

// MatchResult is handed to the results sink when a room reaches FINISHED.
type MatchResult struct {
	RoomID     string       `json:"roomId"`
	FinishedAt time.Time    `json:"finishedAt"`
	Scores     []FinalScore `json:"scores"`
}

// RoomSnapshot is a read-only view of room state used by tests and
// diagnostics. Mutation only happens through room operations.
type RoomSnapshot struct {
	RoomID        string
	HostID        string
	Active        bool
	Finished      bool
	QuestionIndex int
	Participants  []ParticipantView
}
