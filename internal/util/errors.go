package util

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindConflict     ErrorKind = "conflict"
	KindNotFound     ErrorKind = "not_found"
	KindCollaborator ErrorKind = "collaborator"
)

// EngineError is the error type returned by the assessment engine. Two
// EngineErrors match under errors.Is when their codes are equal.
type EngineError struct {
	Kind        ErrorKind `json:"kind"`
	Code        string    `json:"code"`
	Message     string    `json:"message"`
	Recoverable bool      `json:"recoverable"`
	Err         error     `json:"-"`
}

func (e *EngineError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// With returns a copy of e carrying a more specific message.
func (e *EngineError) With(format string, args ...interface{}) *EngineError {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

func newError(kind ErrorKind, code, msg string, recoverable bool) *EngineError {
	return &EngineError{Kind: kind, Code: code, Message: msg, Recoverable: recoverable}
}

var (
	ErrIncompleteAnswers   = newError(KindValidation, "IncompleteAnswers", "every question must be answered", false)
	ErrNoQuestions         = newError(KindValidation, "NoQuestions", "activity has no questions", false)
	ErrUnknownQuestion     = newError(KindValidation, "UnknownQuestion", "answer references a question outside the activity", false)
	ErrInvalidFileMetadata = newError(KindValidation, "InvalidFileMetadata", "invalid file metadata", false)
	ErrInvalidGrade        = newError(KindValidation, "InvalidGrade", "grade must be within [0,5]", false)
	ErrWrongActivityKind   = newError(KindValidation, "WrongActivityKind", "operation not supported for this activity kind", false)
	ErrInvalidCombine      = newError(KindValidation, "InvalidCombineStrategy", "unknown combine strategy", false)

	ErrConcurrentAttempt    = newError(KindConflict, "ConcurrentAttempt", "another attempt was recorded concurrently", false)
	ErrAlreadyPassed        = newError(KindConflict, "AlreadyPassed", "activity already passed", false)
	ErrConfirmationRequired = newError(KindConflict, "ConfirmationRequired", "resubmitting discards the reviewed grade; confirmation required", false)
	ErrInvalidTransition    = newError(KindConflict, "InvalidTransition", "submission state does not allow this transition", false)

	ErrActivityNotFound   = newError(KindNotFound, "ActivityNotFound", "activity not found", false)
	ErrSubmissionNotFound = newError(KindNotFound, "SubmissionNotFound", "submission not found", false)
	ErrLessonNotFound     = newError(KindNotFound, "LessonNotFound", "lesson not found", false)

	ErrCollaborator       = newError(KindCollaborator, "CollaboratorFailed", "collaborator call failed", true)
	ErrLessonUnlockFailed = newError(KindCollaborator, "LessonUnlockFailed", "next lesson could not be unlocked", true)
)

// Collaborator wraps a persistence/storage/unlock failure as a recoverable error.
// EngineErrors pass through unchanged.
func Collaborator(op string, err error) error {
	if err == nil {
		return nil
	}
	var ee *EngineError
	if errors.As(err, &ee) {
		return err
	}
	cp := *ErrCollaborator
	cp.Message = op
	cp.Err = err
	return &cp
}

// UnlockFailed wraps err as a LessonUnlockFailed error.
func UnlockFailed(lessonID uint, err error) *EngineError {
	cp := *ErrLessonUnlockFailed
	cp.Message = fmt.Sprintf("unlock after lesson %d failed", lessonID)
	cp.Err = err
	return &cp
}

// KindOf reports the kind of err, or "" when err is not an EngineError.
func KindOf(err error) ErrorKind {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ""
}
