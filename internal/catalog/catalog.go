// Package catalog holds the read-only entity catalog loaded once per job:
// courses, faculty, rooms, students, and the generated time slots that tie
// departments to the shared wall-clock grid.
package catalog

import (
	"fmt"
	"sort"

	"github.com/jgirmay/timetabled/internal/model"
)

// TimeConfig describes the shared slot grid every department is carved
// from; it is the only time-related input the catalog provider supplies.
type TimeConfig struct {
	WorkingDays  int
	SlotsPerDay  int
	StartTime    string
	EndTime      string
	LunchBreak   *int // period index skipped for lunch, if any
}

// Catalog is the immutable, read-only view shared by every stage after
// load. Nothing mutates it once Build returns.
type Catalog struct {
	courses  map[string]model.Course
	faculty  map[string]model.Faculty
	rooms    map[string]model.Room
	students map[string]model.Student
	slots    map[string]model.TimeSlot

	courseOrder []string // load order, for deterministic iteration

	deptCourses map[string][]string // dept_id -> course ids
	deptSlots   map[string][]string // dept_id -> slot ids

	wallClockIndex map[model.WallClock][]string // wall clock -> slot ids across all depts

	studentCourses map[string]map[string]bool // student_id -> set of course ids
	facultyCourses map[string]map[string]bool // faculty_id -> set of course ids
}

// Raw is the shape the external catalog provider collaborator returns
// (spec §6): entity lists plus the time grid config. The catalog
// synthesizes TimeSlot values from TimeConfig; slots are never supplied
// directly by the provider.
type Raw struct {
	Courses    []model.Course
	Faculty    []model.Faculty
	Rooms      []model.Room
	Students   []model.Student
	TimeConfig TimeConfig
	// Depts enumerates the department ids that own a slot grid. If empty,
	// departments are inferred from the courses/faculty supplied.
	Depts []string
}

// Build validates raw and constructs an immutable Catalog, synthesizing one
// TimeSlot per (dept, day, period) in the shared grid.
func Build(raw Raw) (Catalog, error) {
	if len(raw.Courses) == 0 {
		return Catalog{}, &courseErr{"empty catalog: no courses"}
	}
	if raw.TimeConfig.WorkingDays <= 0 || raw.TimeConfig.SlotsPerDay <= 0 {
		return Catalog{}, &courseErr{"invalid time_config: working_days and slots_per_day must be positive"}
	}

	c := Catalog{
		courses:        make(map[string]model.Course, len(raw.Courses)),
		faculty:        make(map[string]model.Faculty, len(raw.Faculty)),
		rooms:          make(map[string]model.Room, len(raw.Rooms)),
		students:       make(map[string]model.Student, len(raw.Students)),
		slots:          make(map[string]model.TimeSlot),
		deptCourses:    make(map[string][]string),
		deptSlots:      make(map[string][]string),
		wallClockIndex: make(map[model.WallClock][]string),
		studentCourses: make(map[string]map[string]bool),
		facultyCourses: make(map[string]map[string]bool),
	}

	depts := make(map[string]bool)
	for _, d := range raw.Depts {
		depts[d] = true
	}

	for _, course := range raw.Courses {
		if course.Duration <= 0 {
			return Catalog{}, &courseErr{fmt.Sprintf("course %s has non-positive duration %d", course.CourseID, course.Duration)}
		}
		if _, dup := c.courses[course.CourseID]; dup {
			return Catalog{}, &courseErr{fmt.Sprintf("duplicate course id %s", course.CourseID)}
		}
		c.courses[course.CourseID] = course
		c.courseOrder = append(c.courseOrder, course.CourseID)
		c.deptCourses[course.DeptID] = append(c.deptCourses[course.DeptID], course.CourseID)
		depts[course.DeptID] = true

		if c.facultyCourses[course.FacultyID] == nil {
			c.facultyCourses[course.FacultyID] = make(map[string]bool)
		}
		c.facultyCourses[course.FacultyID][course.CourseID] = true

		for _, sid := range course.StudentIDs {
			if c.studentCourses[sid] == nil {
				c.studentCourses[sid] = make(map[string]bool)
			}
			c.studentCourses[sid][course.CourseID] = true
		}
	}

	for _, f := range raw.Faculty {
		c.faculty[f.FacultyID] = f
		depts[f.DeptID] = true
	}
	for _, r := range raw.Rooms {
		c.rooms[r.RoomID] = r
	}
	for _, s := range raw.Students {
		c.students[s.StudentID] = s
	}

	deptList := make([]string, 0, len(depts))
	for d := range depts {
		deptList = append(deptList, d)
	}
	sort.Strings(deptList)

	for _, dept := range deptList {
		for day := 0; day < raw.TimeConfig.WorkingDays; day++ {
			for period := 0; period < raw.TimeConfig.SlotsPerDay; period++ {
				if raw.TimeConfig.LunchBreak != nil && period == *raw.TimeConfig.LunchBreak {
					continue
				}
				slotID := model.MakeSlotID(dept, day, period)
				slot := model.TimeSlot{
					SlotID:    slotID,
					DeptID:    dept,
					Day:       day,
					Period:    period,
					StartTime: raw.TimeConfig.StartTime,
					EndTime:   raw.TimeConfig.EndTime,
				}
				c.slots[slotID] = slot
				c.deptSlots[dept] = append(c.deptSlots[dept], slotID)
				wc := slot.WallClock()
				c.wallClockIndex[wc] = append(c.wallClockIndex[wc], slotID)
			}
		}
	}

	return c, nil
}

type courseErr struct{ reason string }

func (e *courseErr) Error() string { return e.reason }

// AsInvalid converts a Build error into the tagged CatalogInvalid variant
// for callers that need the structured form.
func AsInvalid(err error) *model.CatalogInvalidError {
	if err == nil {
		return nil
	}
	return &model.CatalogInvalidError{Reason: err.Error()}
}

// Course looks up a course by id.
func (c Catalog) Course(id string) (model.Course, bool) {
	v, ok := c.courses[id]
	return v, ok
}

// Faculty looks up a faculty member by id.
func (c Catalog) Faculty(id string) (model.Faculty, bool) {
	v, ok := c.faculty[id]
	return v, ok
}

// Room looks up a room by id.
func (c Catalog) Room(id string) (model.Room, bool) {
	v, ok := c.rooms[id]
	return v, ok
}

// Student looks up a student by id.
func (c Catalog) Student(id string) (model.Student, bool) {
	v, ok := c.students[id]
	return v, ok
}

// Slot looks up a time slot by id.
func (c Catalog) Slot(id string) (model.TimeSlot, bool) {
	v, ok := c.slots[id]
	return v, ok
}

// Courses returns all courses in stable load order.
func (c Catalog) Courses() []model.Course {
	out := make([]model.Course, 0, len(c.courseOrder))
	for _, id := range c.courseOrder {
		out = append(out, c.courses[id])
	}
	return out
}

// CourseIDsByDept returns the course ids owned by one department.
func (c Catalog) CourseIDsByDept(deptID string) []string {
	return c.deptCourses[deptID]
}

// SlotIDsByDept returns the slot ids owned by one department.
func (c Catalog) SlotIDsByDept(deptID string) []string {
	return c.deptSlots[deptID]
}

// SlotsAtWallClock is the single source of truth for wall-clock collision
// checks: every department-qualified slot id sharing one (day, period).
func (c Catalog) SlotsAtWallClock(wc model.WallClock) []string {
	return c.wallClockIndex[wc]
}

// CoursesByStudent returns the set of course ids a student is enrolled in.
func (c Catalog) CoursesByStudent(studentID string) map[string]bool {
	return c.studentCourses[studentID]
}

// CoursesByFaculty returns the set of course ids taught by one faculty.
func (c Catalog) CoursesByFaculty(facultyID string) map[string]bool {
	return c.facultyCourses[facultyID]
}

// NumCourses returns the total course count, used to verify cluster
// partitions preserve it.
func (c Catalog) NumCourses() int {
	return len(c.courses)
}

// RoomIDs returns every room id, sorted ascending.
func (c Catalog) RoomIDs() []string {
	out := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
