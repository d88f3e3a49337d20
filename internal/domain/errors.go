package domain

import "errors"

// Engine failures form a closed, result-style set: none are fatal, each maps to
// a user-facing message in the dispatch layer and leaves engine state untouched.
var (
	// ErrSessionAlreadyRunning is returned when a room's session is still in progress.
	ErrSessionAlreadyRunning = errors.New("a session is already running in this room")
	// ErrNoQuestions is returned when the question bank is empty.
	ErrNoQuestions = errors.New("no questions available")
	// ErrNoQuestionsForTopic is returned when a topic filter matches nothing.
	ErrNoQuestionsForTopic = errors.New("no questions for this topic")
	// ErrNotAuthorized is returned when the requester lacks the required privilege.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrNoActiveSession is returned when an operation needs a running session.
	ErrNoActiveSession = errors.New("no active session")
	// ErrSessionPaused is returned when answers arrive while the session is paused.
	ErrSessionPaused = errors.New("session is paused")
	// ErrTimeExpired is returned when an answer arrives after the question's deadline.
	ErrTimeExpired = errors.New("time for this question has expired")
	// ErrStaleQuestion is returned for answers to a question the room moved past.
	ErrStaleQuestion = errors.New("question is no longer active")
	// ErrDuplicateAnswer is returned on a second answer to the same question.
	ErrDuplicateAnswer = errors.New("already answered this question")
	// ErrInvalidAnswer is returned for an option index outside the question.
	ErrInvalidAnswer = errors.New("invalid answer option")

	// ErrBankReadOnly is returned for edits when no writable bank is wired.
	ErrBankReadOnly = errors.New("question bank is read-only")
	// ErrQuestionNotFound indicates a bank lookup or edit for an unknown id.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidQuestion indicates a question that fails structural validation.
	ErrInvalidQuestion = errors.New("invalid question")
)
