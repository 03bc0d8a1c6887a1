package service

import "course_engine_backend/internal/model"

// DeriveState folds an attempt history into the learner's state for the activity.
func DeriveState(activity *model.Activity, attempts []model.AttemptRecord, policy GradingPolicy) model.AttemptState {
	if len(attempts) == 0 {
		return model.AttemptStateNone
	}
	for _, a := range attempts {
		if a.Passed {
			return model.AttemptStatePassed
		}
	}
	if activity.Reviewed && len(attempts) >= policy.ReviewedAttemptLimit {
		return model.AttemptStateExhausted
	}
	return model.AttemptStateRetryAvailable
}

// AttemptsLeft is nil for unreviewed activities, which allow unlimited retries.
func AttemptsLeft(activity *model.Activity, used int, policy GradingPolicy) *int {
	if !activity.Reviewed {
		return nil
	}
	left := policy.ReviewedAttemptLimit - used
	if left < 0 {
		left = 0
	}
	return &left
}

func bestScore(attempts []model.AttemptRecord) float64 {
	var best float64
	for _, a := range attempts {
		if a.Score > best {
			best = a.Score
		}
	}
	return best
}
