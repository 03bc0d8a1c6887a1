package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// Grade scale shared by attempts, submissions and course summaries.
const (
	MinScore = 0.0
	MaxScore = 5.0
)

// WelcomeLessonTitle is always ordered first among a course's lessons.
const WelcomeLessonTitle = "bienvenida"

const GradeSummaryCacheKeyPrefix = "grade_summary"
