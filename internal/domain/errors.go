package domain

import "errors"

var (
	// ErrQuestionNotFound indicates the question does not exist (or has expired).
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidQuestion is returned when a question is missing a required field.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrInvalidSubmission is returned when an answer is missing a required field.
	ErrInvalidSubmission = errors.New("invalid answer submission")
	// ErrAnswerWindowExpired is returned when no live answer window exists for the user.
	ErrAnswerWindowExpired = errors.New("answer window expired")
	// ErrDuplicateAnswer is returned when the user already answered the question.
	ErrDuplicateAnswer = errors.New("question already answered")
	// ErrStoreUnavailable marks infrastructure faults of the backing store.
	ErrStoreUnavailable = errors.New("store unavailable")
)
