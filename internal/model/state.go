package model

// AttemptState is the derived state of an (activity, learner) pair.
type AttemptState string

const (
	AttemptStateNone           AttemptState = "no_attempt"
	AttemptStatePassed         AttemptState = "passed"
	AttemptStateRetryAvailable AttemptState = "retry_available"
	AttemptStateExhausted      AttemptState = "exhausted"
)

func (s AttemptState) Terminal() bool {
	return s == AttemptStatePassed || s == AttemptStateExhausted
}

// TerminalOutcome is what the progression cascade reacts to.
type TerminalOutcome string

const (
	OutcomePassed                     TerminalOutcome = "passed"
	OutcomeExhausted                  TerminalOutcome = "exhausted"
	OutcomeSubmissionReviewedPositive TerminalOutcome = "submission_reviewed_positive"
)
