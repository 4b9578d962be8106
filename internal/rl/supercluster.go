package rl

import (
	"context"
	"sort"
	"time"

	"github.com/jgirmay/timetabled/internal/model"
)

// superclusterTimeout bounds the optional shared-student grouping pass. A
// timeout falls back to singleton groups, which orderByGroups handles like
// any other grouping.
const superclusterTimeout = 200 * time.Millisecond

// groupBySharedStudents partitions courses into connected components under
// "shares at least one student", so batches can be drawn with courses whose
// conflicts are likely entangled kept adjacent. This is a candidate-
// narrowing optimization, never a correctness requirement: an all-singleton
// grouping is always a valid input to orderByGroups.
func groupBySharedStudents(ctx context.Context, courses []model.Course) [][]model.Course {
	parent := make(map[string]string, len(courses))
	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}
	for _, c := range courses {
		parent[c.CourseID] = c.CourseID
	}

	studentOwner := make(map[string]string)
	for _, c := range courses {
		select {
		case <-ctx.Done():
			return singletonGroups(courses)
		default:
		}
		for _, sid := range c.StudentIDs {
			if owner, ok := studentOwner[sid]; ok {
				union(owner, c.CourseID)
			} else {
				studentOwner[sid] = c.CourseID
			}
		}
	}

	groups := make(map[string][]model.Course)
	for _, c := range courses {
		root := find(c.CourseID)
		groups[root] = append(groups[root], c)
	}

	out := make([][]model.Course, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	return out
}

func singletonGroups(courses []model.Course) [][]model.Course {
	out := make([][]model.Course, 0, len(courses))
	for _, c := range courses {
		out = append(out, []model.Course{c})
	}
	return out
}

// orderByGroups flattens groups into one deterministic course list, each
// group's members adjacent to one another.
func orderByGroups(groups [][]model.Course) []model.Course {
	for _, g := range groups {
		sort.Slice(g, func(i, j int) bool { return g[i].CourseID < g[j].CourseID })
	}
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i]) == 0 || len(groups[j]) == 0 {
			return len(groups[i]) > len(groups[j])
		}
		return groups[i][0].CourseID < groups[j][0].CourseID
	})

	total := 0
	for _, g := range groups {
		total += len(g)
	}
	out := make([]model.Course, 0, total)
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
