package rl

import (
	"sort"

	"github.com/jgirmay/timetabled/internal/domain"
	"github.com/jgirmay/timetabled/internal/model"
)

// action is one choice available to the agent for a conflicting course: a
// specific alternative domain.Option, or the no-op defer (Option == nil).
type action struct {
	Option *domain.Option
}

// candidateActions returns up to topK alternative options for course (its
// domain table is already filtered to its own department by construction)
// plus a trailing defer action.
func candidateActions(course model.Course, domains domain.Table, topK int) []action {
	opts := domains[course.CourseID]
	n := len(opts)
	if n > topK {
		n = topK
	}

	actions := make([]action, 0, n+1)
	for i := 0; i < n; i++ {
		opt := opts[i]
		actions = append(actions, action{Option: &opt})
	}
	actions = append(actions, action{Option: nil}) // defer
	return actions
}

func deferIndex(actions []action) int {
	return len(actions) - 1
}

// dominantConflictKind picks a deterministic representative kind for a
// course's conflicts, so the state fingerprint is stable across runs.
func dominantConflictKind(kinds []model.ConflictKind) model.ConflictKind {
	if len(kinds) == 0 {
		return ""
	}
	sorted := append([]model.ConflictKind(nil), kinds...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[0]
}
