package cpsat

import (
	"sort"

	"github.com/jgirmay/timetabled/internal/catalog"
	"github.com/jgirmay/timetabled/internal/domain"
	"github.com/jgirmay/timetabled/internal/model"
)

// GreedyResult is the deterministic fallback's output: every course it
// managed to place, plus the courses it could not.
type GreedyResult struct {
	Choices  map[string]domain.Option
	Deferred []string // course ids left unassigned
}

// Greedy is the deterministic fallback: courses ordered by constraint
// density descending; for each, wall-clock periods are scanned
// in canonical (day, period) order and rooms in capacity-ascending order,
// accepting the first (slot, room) combination that violates no HC1-HC6
// against the set assigned so far. It always returns a (possibly partial)
// assignment and never errors.
func Greedy(cluster []model.Course, cat catalog.Catalog, s *state) GreedyResult {
	if s == nil {
		s = newState(cat)
	}
	ordered := orderByConstraintDensity(cluster)

	result := GreedyResult{Choices: make(map[string]domain.Option)}
	for _, course := range ordered {
		opt, ok := firstFittingCanonicalOption(cat, course, s)
		if !ok {
			result.Deferred = append(result.Deferred, course.CourseID)
			continue
		}
		s.commit(course, opt)
		result.Choices[course.CourseID] = opt
	}
	return result
}

// firstFittingCanonicalOption scans days/periods in canonical ascending
// order and, for each anchor, rooms in capacity-ascending order, returning
// the first option that fits the current state.
func firstFittingCanonicalOption(cat catalog.Catalog, course model.Course, s *state) (domain.Option, bool) {
	faculty, ok := cat.Faculty(course.FacultyID)
	if !ok {
		return domain.Option{}, false
	}

	rooms := roomsCapacityAscending(cat, course)
	anchors := canonicalAnchors(cat, course.DeptID)

	for _, anchor := range anchors {
		for _, roomID := range rooms {
			opt, ok := buildOption(cat, course, faculty, roomID, anchor.day, anchor.period)
			if !ok {
				continue
			}
			if s.fits(course, opt, PriorityAll, true) {
				return opt, true
			}
		}
	}
	return domain.Option{}, false
}

type dayPeriod struct{ day, period int }

func canonicalAnchors(cat catalog.Catalog, deptID string) []dayPeriod {
	seen := make(map[dayPeriod]bool)
	var out []dayPeriod
	for _, slotID := range cat.SlotIDsByDept(deptID) {
		slot, _ := cat.Slot(slotID)
		dp := dayPeriod{slot.Day, slot.Period}
		if !seen[dp] {
			seen[dp] = true
			out = append(out, dp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].day != out[j].day {
			return out[i].day < out[j].day
		}
		return out[i].period < out[j].period
	})
	return out
}

func roomsCapacityAscending(cat catalog.Catalog, course model.Course) []string {
	ids := cat.RoomIDs()
	var fit []string
	for _, id := range ids {
		room, _ := cat.Room(id)
		if room.SeatingCapacity < course.EnrollmentCount {
			continue
		}
		if !hasAllFeatures(room.Features, course.RequiredFeatures) {
			continue
		}
		fit = append(fit, id)
	}
	sort.Slice(fit, func(i, j int) bool {
		ri, _ := cat.Room(fit[i])
		rj, _ := cat.Room(fit[j])
		return ri.SeatingCapacity < rj.SeatingCapacity
	})
	return fit
}

func hasAllFeatures(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, f := range have {
		set[f] = true
	}
	for _, f := range want {
		if !set[f] {
			return false
		}
	}
	return true
}

func buildOption(cat catalog.Catalog, course model.Course, faculty model.Faculty, roomID string, day, startPeriod int) (domain.Option, bool) {
	sessions := make([]model.SlotRoom, course.Duration)
	for i := 0; i < course.Duration; i++ {
		period := startPeriod + i
		slotID := model.MakeSlotID(course.DeptID, day, period)
		slot, ok := cat.Slot(slotID)
		if !ok || slot.Day != day || slot.Period != period {
			return domain.Option{}, false
		}
		if !faculty.Availability[model.WallClock{Day: day, Period: period}] {
			return domain.Option{}, false
		}
		sessions[i] = model.SlotRoom{SlotID: slotID, RoomID: roomID}
	}
	return domain.Option{RoomID: roomID, Sessions: sessions}, true
}
