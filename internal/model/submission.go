package model

import (
	"fmt"
	"time"
)

type SubmissionKind string

const (
	SubmissionKindFile SubmissionKind = "file"
	SubmissionKindURL  SubmissionKind = "url"
)

func ParseSubmissionKind(s string) (SubmissionKind, error) {
	switch k := SubmissionKind(s); k {
	case SubmissionKindFile, SubmissionKindURL:
		return k, nil
	default:
		return "", fmt.Errorf("unknown submission kind %q", s)
	}
}

type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionReviewed SubmissionStatus = "reviewed"
)

// Submission is the single active hand-in of a learner for a document upload
// activity. Resubmitting overwrites the row.
//
// swagger:model Submission
type Submission struct {
	BaseModel

	ActivityID  uint             `gorm:"not null;uniqueIndex:uk_submission_activity_learner,priority:1" json:"activityId"`
	LearnerID   uint             `gorm:"not null;uniqueIndex:uk_submission_activity_learner,priority:2;index" json:"learnerId"`
	Kind        SubmissionKind   `gorm:"size:16;not null" json:"kind"`
	Locator     string           `gorm:"size:1024;not null" json:"locator"`
	FileName    string           `gorm:"size:255" json:"fileName,omitempty"`
	ContentType string           `gorm:"size:128" json:"contentType,omitempty"`
	Size        int64            `json:"size,omitempty"`
	Status      SubmissionStatus `gorm:"size:16;not null;index" json:"status"`
	// Grade is nil until a reviewer grades the submission.
	Grade       *float64   `json:"grade"`
	Feedback    *string    `gorm:"type:text" json:"feedback"`
	ReviewerID  *uint      `json:"reviewerId,omitempty"`
	ReviewedAt  *time.Time `json:"reviewedAt,omitempty"`
	SubmittedAt time.Time  `json:"submittedAt"`
}

func (Submission) TableName() string {
	return "submissions"
}

// IsComplete reports whether the submission counts as a completed activity.
// A reviewed grade of 0 does not.
func (s *Submission) IsComplete() bool {
	return s.Status == SubmissionReviewed && s.Grade != nil && *s.Grade > 0
}

// IsGraded reports whether a reviewer has assigned a grade, including 0.
func (s *Submission) IsGraded() bool {
	return s.Status == SubmissionReviewed && s.Grade != nil
}
