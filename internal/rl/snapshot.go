package rl

import (
	"github.com/jgirmay/timetabled/internal/catalog"
	"github.com/jgirmay/timetabled/internal/domain"
	"github.com/jgirmay/timetabled/internal/model"
)

type entryRef struct {
	courseID string
	roomID   string
}

// snapshot is a read-only, once-per-batch index of the assignment grouped
// by wall clock. Episodes within a batch share it to price conflict deltas
// as a local lookup instead of a full qualitymetrics pass per action.
type snapshot struct {
	cat          catalog.Catalog
	groups       map[model.WallClock][]entryRef
	courseWC     map[string][]model.WallClock // course id -> wall clocks it currently occupies
}

func buildSnapshot(assignment model.Assignment, cat catalog.Catalog) *snapshot {
	s := &snapshot{
		cat:      cat,
		groups:   make(map[model.WallClock][]entryRef),
		courseWC: make(map[string][]model.WallClock),
	}
	assignment.Each(func(key model.SessionKey, sr model.SlotRoom) {
		slot, ok := cat.Slot(sr.SlotID)
		if !ok {
			return
		}
		wc := slot.WallClock()
		s.groups[wc] = append(s.groups[wc], entryRef{courseID: key.CourseID, roomID: sr.RoomID})
		s.courseWC[key.CourseID] = append(s.courseWC[key.CourseID], wc)
	})
	return s
}

// violationKindsForCourseAt returns the violations course would carry at wc,
// given it would occupy roomID there: one ConflictStudent per student shared
// with each OTHER course's entry in that group, plus at most one
// ConflictFaculty and at most one ConflictRoom however many entries collide.
func (s *snapshot) violationKindsForCourseAt(course model.Course, wc model.WallClock, roomID string) []model.ConflictKind {
	var kinds []model.ConflictKind
	facultyHit, roomHit := false, false

	for _, other := range s.groups[wc] {
		if other.courseID == course.CourseID {
			continue
		}
		otherCourse, ok := s.cat.Course(other.courseID)
		if !ok {
			continue
		}
		if otherCourse.FacultyID == course.FacultyID {
			facultyHit = true
		}
		if other.roomID == roomID {
			roomHit = true
		}
		for i := 0; i < sharedStudentCount(course.StudentIDs, otherCourse.StudentIDs); i++ {
			kinds = append(kinds, model.ConflictStudent)
		}
	}

	if facultyHit {
		kinds = append(kinds, model.ConflictFaculty)
	}
	if roomHit {
		kinds = append(kinds, model.ConflictRoom)
	}
	return kinds
}

// violationsForCourseAt counts the violations at wc; a thin wrapper over
// violationKindsForCourseAt for callers that only need the tally.
func (s *snapshot) violationsForCourseAt(course model.Course, wc model.WallClock, roomID string) int {
	return len(s.violationKindsForCourseAt(course, wc, roomID))
}

// conflictsForCourse sums violationsForCourseAt across every wall clock the
// course currently occupies, using its current room at each.
func (s *snapshot) conflictsForCourse(course model.Course, currentRoomByWC map[model.WallClock]string) int {
	total := 0
	for _, wc := range s.courseWC[course.CourseID] {
		total += s.violationsForCourseAt(course, wc, currentRoomByWC[wc])
	}
	return total
}

// conflictKindsForCourse collects every violation kind the course currently
// carries, across all the wall clocks it occupies.
func (s *snapshot) conflictKindsForCourse(course model.Course, currentRoomByWC map[model.WallClock]string) []model.ConflictKind {
	var kinds []model.ConflictKind
	for _, wc := range s.courseWC[course.CourseID] {
		kinds = append(kinds, s.violationKindsForCourseAt(course, wc, currentRoomByWC[wc])...)
	}
	return kinds
}

// conflictsIfOption sums violationsForCourseAt as if course instead
// occupied every (wall clock, room) pair opt describes.
func (s *snapshot) conflictsIfOption(course model.Course, opt domain.Option) int {
	total := 0
	for _, sr := range opt.Sessions {
		slot, ok := s.cat.Slot(sr.SlotID)
		if !ok {
			continue
		}
		total += s.violationsForCourseAt(course, slot.WallClock(), sr.RoomID)
	}
	return total
}

// violationKindsForOption collects every violation kind course would carry
// if it occupied opt's (wall clock, room) pairs instead of its current ones.
func (s *snapshot) violationKindsForOption(course model.Course, opt domain.Option) []model.ConflictKind {
	var kinds []model.ConflictKind
	for _, sr := range opt.Sessions {
		slot, ok := s.cat.Slot(sr.SlotID)
		if !ok {
			continue
		}
		kinds = append(kinds, s.violationKindsForCourseAt(course, slot.WallClock(), sr.RoomID)...)
	}
	return kinds
}

func sharedStudentCount(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(b))
	for _, s := range b {
		set[s] = true
	}
	n := 0
	for _, s := range a {
		if set[s] {
			n++
		}
	}
	return n
}
