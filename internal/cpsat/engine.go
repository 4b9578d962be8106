package cpsat

import (
	"context"
	"sort"
	"time"

	"github.com/jgirmay/timetabled/internal/catalog"
	"github.com/jgirmay/timetabled/internal/domain"
	"github.com/jgirmay/timetabled/internal/model"
)

// attemptResult is the outcome of trying one strategy against one cluster.
type attemptResult struct {
	choices map[string]domain.Option // course_id -> chosen option
	ok      bool
}

// solveAttempt runs one strategy-ladder rung as chronological backtracking
// search: courses are visited in constraint-density order (spec's HC1-HC5
// ordering heuristic, shared with the greedy fallback); each is assigned
// the best-scoring domain option that does not violate anything already
// placed. When a course has no remaining feasible option, the previous
// course's placement is undone and its search resumes from its next
// candidate, rather than failing the whole attempt outright. The attempt
// is infeasible only if backtracking empties the very first course's
// option list, or the timeout/constraint budget runs out first.
func solveAttempt(ctx context.Context, cluster []model.Course, domains domain.Table, strat Strategy, cat catalog.Catalog) attemptResult {
	deadline := time.Now().Add(strat.Timeout)
	ordered := orderByConstraintDensity(cluster)

	s := newState(cat)
	choices := make(map[string]domain.Option, len(cluster))
	placedAt := make([]domain.Option, len(ordered)) // opt committed at each position, for undo
	nextOpt := make([]int, len(ordered))             // cursor into domains[course] per position
	checks := 0

	i := 0
	for i < len(ordered) {
		if ctx.Err() != nil {
			return attemptResult{ok: false}
		}
		if time.Now().After(deadline) {
			return attemptResult{ok: false}
		}

		course := ordered[i]
		opts := domains[course.CourseID]

		placed := false
		for nextOpt[i] < len(opts) {
			opt := opts[nextOpt[i]]
			nextOpt[i]++
			checks++
			if strat.ConstraintBudget > 0 && checks > strat.ConstraintBudget {
				return attemptResult{ok: false}
			}
			if s.fits(course, opt, strat.StudentPriority, strat.EnforceStudents) {
				s.commit(course, opt)
				choices[course.CourseID] = opt
				placedAt[i] = opt
				placed = true
				break
			}
		}

		if placed {
			i++
			continue
		}

		// Backtrack: this course is out of options under the current prefix.
		// Undo the previous course's placement and let it try its next
		// candidate; its own cursor was already advanced past the option it
		// committed, so resuming the loop there tries something new.
		nextOpt[i] = 0
		i--
		if i < 0 {
			return attemptResult{ok: false}
		}
		delete(choices, ordered[i].CourseID)
		s.undo(ordered[i], placedAt[i])
	}

	return attemptResult{choices: choices, ok: true}
}

// orderByConstraintDensity sorts courses by students x feature-cardinality,
// descending. This is the same ordering the greedy fallback uses, applied
// here too since it is also the ordering most likely to surface
// infeasibility early in a constructive search.
func orderByConstraintDensity(courses []model.Course) []model.Course {
	out := append([]model.Course(nil), courses...)
	sort.SliceStable(out, func(i, j int) bool {
		return density(out[i]) > density(out[j])
	})
	return out
}

func density(c model.Course) int {
	return len(c.StudentIDs) * (1 + len(c.RequiredFeatures))
}
