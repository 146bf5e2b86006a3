package domain

import "errors"

var (
	// ErrNotHost is returned when a non-host participant tries to start a match.
	ErrNotHost = errors.New("only the host can start the game")
	// ErrRoomNotFound indicates the referenced room does not exist.
	ErrRoomNotFound = errors.New("room not found")
	// ErrQuestionSetNotFound indicates the question bank has no such set.
	ErrQuestionSetNotFound = errors.New("question set not found")
	// ErrAlreadyInRoom is returned when a connection tries to join a second room.
	ErrAlreadyInRoom = errors.New("connection already belongs to a room")
	// ErrInvalidQuestion indicates a question with too few options or an
	// out-of-range correct index.
	ErrInvalidQuestion = errors.New("question must have at least two options and an in-range correct index")
)
