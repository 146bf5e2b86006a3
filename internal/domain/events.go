package domain

// Event is the envelope for every server→client message.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

const (
	EventJoined   = "joined"
	EventRoster   = "roster"
	EventQuestion = "question"
	EventScores   = "scores"
	EventReveal   = "reveal"
	EventComplete = "complete"
	EventError    = "error"
)

// JoinedPayload acknowledges a join and tells the client its own id.
type JoinedPayload struct {
	ConnectionID string `json:"connectionId"`
	RoomID       string `json:"roomId"`
}

// RosterPayload is broadcast after every join or leave.
type RosterPayload struct {
	Participants []ParticipantView `json:"participants"`
	HostID       string            `json:"hostId"`
}

// QuestionPayload is the sanitized question sent on activation; the correct
// option index never appears here.
type QuestionPayload struct {
	ID             int      `json:"id"`
	Text           string   `json:"text"`
	Options        []string `json:"options"`
	QuestionNumber int      `json:"questionNumber"`
	TotalQuestions int      `json:"totalQuestions"`
	TimeLimitSec   int      `json:"timeLimitSec"`
}

// ScoresPayload is broadcast after each accepted answer.
type ScoresPayload struct {
	Scores map[string]int `json:"scores"`
}

// RevealPayload announces the correct option at round advance.
type RevealPayload struct {
	CorrectOption int `json:"correctOption"`
}

// CompletePayload carries the ranked final leaderboard.
type CompletePayload struct {
	FinalScores []FinalScore `json:"finalScores"`
}

// ErrorPayload is unicast for authorization and validation failures.
type ErrorPayload struct {
	Message string `json:"message"`
}
