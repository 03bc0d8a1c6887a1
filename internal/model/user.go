package model

// UserRole is carried in the JWT issued by the identity service. Learners act
// on their own attempts; teachers review submissions.
type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)
