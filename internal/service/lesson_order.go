package service

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"course_engine_backend/internal/model"
	"course_engine_backend/internal/util"
)

var firstNumber = regexp.MustCompile(`\d+`)

const (
	rankWelcome = iota
	rankExplicit
	rankNumbered
	rankUnnumbered
)

func lessonRank(l model.Lesson, legacyTitles bool) (int, int) {
	if l.Order != nil {
		return rankExplicit, *l.Order
	}
	if !legacyTitles {
		return rankUnnumbered, 0
	}
	title := strings.TrimSpace(l.Title)
	if strings.EqualFold(title, util.WelcomeLessonTitle) {
		return rankWelcome, 0
	}
	if m := firstNumber.FindString(title); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			return rankNumbered, n
		}
	}
	return rankUnnumbered, 0
}

// OrderLessons sorts a course's lessons into curriculum order. Lessons with an
// explicit order use it. With legacyTitles enabled, the rest follow the old
// title convention: "bienvenida" first, then by the first integer in the
// title. Ties fall back to id.
func OrderLessons(lessons []model.Lesson, legacyTitles bool) []model.Lesson {
	out := make([]model.Lesson, len(lessons))
	copy(out, lessons)
	sort.SliceStable(out, func(i, j int) bool {
		ri, ni := lessonRank(out[i], legacyTitles)
		rj, nj := lessonRank(out[j], legacyTitles)
		if ri != rj {
			return ri < rj
		}
		if ni != nj {
			return ni < nj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// nextLesson returns the lesson after lessonID in ordered, or nil when
// lessonID is last. found is false when lessonID is not in the course.
func nextLesson(ordered []model.Lesson, lessonID uint) (next *model.Lesson, found bool) {
	for i := range ordered {
		if ordered[i].ID != lessonID {
			continue
		}
		if i+1 < len(ordered) {
			return &ordered[i+1], true
		}
		return nil, true
	}
	return nil, false
}

// isLastActivity reports whether activityID closes its lesson. activities must
// be ordered by position then id.
func isLastActivity(activities []model.Activity, activityID uint) bool {
	if len(activities) == 0 {
		return false
	}
	return activities[len(activities)-1].ID == activityID
}
