package cpsat

import (
	"github.com/jgirmay/timetabled/internal/catalog"
	"github.com/jgirmay/timetabled/internal/domain"
	"github.com/jgirmay/timetabled/internal/model"
)

// state tracks everything needed to check HC1-HC5 for a candidate option
// without re-scanning the whole in-progress assignment.
type state struct {
	cat catalog.Catalog

	facultyWallClock map[string]map[model.WallClock]bool
	roomSlot         map[string]map[string]bool // room_id -> slot_id -> used
	studentWallClock map[string]map[model.WallClock]bool
	facultyLoad      map[string]int

	studentEnrollCount map[string]int
}

func newState(cat catalog.Catalog) *state {
	return &state{
		cat:                cat,
		facultyWallClock:   make(map[string]map[model.WallClock]bool),
		roomSlot:            make(map[string]map[string]bool),
		studentWallClock:   make(map[string]map[model.WallClock]bool),
		facultyLoad:        make(map[string]int),
		studentEnrollCount: make(map[string]int),
	}
}

func (s *state) enrollCount(studentID string) int {
	if c, ok := s.studentEnrollCount[studentID]; ok {
		return c
	}
	c := len(s.cat.CoursesByStudent(studentID))
	s.studentEnrollCount[studentID] = c
	return c
}

// fits reports whether opt can be placed for course without violating HC1,
// HC2, HC3 (at the given priority), or HC5 against everything already placed
// in s.
func (s *state) fits(course model.Course, opt domain.Option, priority StudentPriority, enforceStudents bool) bool {
	minEnroll := minEnrollmentFor(priority)

	for _, sr := range opt.Sessions {
		slot, ok := s.cat.Slot(sr.SlotID)
		if !ok {
			return false
		}
		wc := slot.WallClock()

		if s.facultyWallClock[course.FacultyID][wc] {
			return false
		}
		if s.roomSlot[sr.RoomID][sr.SlotID] {
			return false
		}
		if enforceStudents {
			for _, sid := range course.StudentIDs {
				if minEnroll > 0 && s.enrollCount(sid) < minEnroll {
					continue
				}
				if s.studentWallClock[sid][wc] {
					return false
				}
			}
		}
	}

	faculty, ok := s.cat.Faculty(course.FacultyID)
	if ok && faculty.MaxWeeklyLoad > 0 {
		if s.facultyLoad[course.FacultyID]+len(opt.Sessions) > faculty.MaxWeeklyLoad {
			return false
		}
	}

	return true
}

// commit records opt as placed for course, assuming fits already returned
// true for it.
func (s *state) commit(course model.Course, opt domain.Option) {
	for _, sr := range opt.Sessions {
		slot, ok := s.cat.Slot(sr.SlotID)
		if !ok {
			continue
		}
		wc := slot.WallClock()

		if s.facultyWallClock[course.FacultyID] == nil {
			s.facultyWallClock[course.FacultyID] = make(map[model.WallClock]bool)
		}
		s.facultyWallClock[course.FacultyID][wc] = true

		if s.roomSlot[sr.RoomID] == nil {
			s.roomSlot[sr.RoomID] = make(map[string]bool)
		}
		s.roomSlot[sr.RoomID][sr.SlotID] = true

		for _, sid := range course.StudentIDs {
			if s.studentWallClock[sid] == nil {
				s.studentWallClock[sid] = make(map[model.WallClock]bool)
			}
			s.studentWallClock[sid][wc] = true
		}
	}
	s.facultyLoad[course.FacultyID] += len(opt.Sessions)
}

// undo reverses a prior commit for course/opt, restoring s to the state it
// was in before that course was placed. Used by solveAttempt's backtracking
// when a later course turns out to have no feasible option left.
func (s *state) undo(course model.Course, opt domain.Option) {
	for _, sr := range opt.Sessions {
		slot, ok := s.cat.Slot(sr.SlotID)
		if !ok {
			continue
		}
		wc := slot.WallClock()

		delete(s.facultyWallClock[course.FacultyID], wc)
		delete(s.roomSlot[sr.RoomID], sr.SlotID)
		for _, sid := range course.StudentIDs {
			delete(s.studentWallClock[sid], wc)
		}
	}
	s.facultyLoad[course.FacultyID] -= len(opt.Sessions)
}
