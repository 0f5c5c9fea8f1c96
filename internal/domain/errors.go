package domain

import "errors"

var (
	// ErrMalformedDocument is returned when a question document fails
	// structural validation. The wrapped message names the offending field.
	ErrMalformedDocument = errors.New("malformed question document")
	// ErrBankNotFound indicates the question bank could not be loaded.
	ErrBankNotFound = errors.New("question bank not found")
	// ErrSessionNotFound is returned when a practice session does not exist.
	ErrSessionNotFound = errors.New("practice session not found")
	// ErrSessionExpired is returned when selecting after the time limit.
	ErrSessionExpired = errors.New("practice session time limit reached")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrChoiceNotFound indicates a selected choice index is out of range.
	ErrChoiceNotFound = errors.New("choice not found")
)
