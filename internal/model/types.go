// Package model holds the immutable value types shared by every stage of
// the timetabling pipeline: courses, faculty, rooms, time slots, students,
// and the assignment and conflict records produced while scheduling them.
package model

import "fmt"

// WallClock identifies a (day, period) pair that is observable across
// every department, independent of which department's slot IDs are used.
type WallClock struct {
	Day    int
	Period int
}

// Course is immutable after load. Duration is the number of contiguous
// sessions the course occupies; StudentIDs and RequiredFeatures are owned
// copies, never shared with the catalog's internal indexes.
type Course struct {
	CourseID         string
	DeptID           string
	Duration         int
	FacultyID        string
	StudentIDs       []string
	RequiredFeatures []string
	EnrollmentCount  int
}

// Faculty is immutable after load.
type Faculty struct {
	FacultyID     string
	DeptID        string
	MaxWeeklyLoad int
	Availability  map[WallClock]bool
	Preferences   map[string]float64
}

// Room is shared across departments.
type Room struct {
	RoomID          string
	SeatingCapacity int
	Features        []string
	BuildingID      string
}

// TimeSlot is department-qualified: its identity is {DeptID, Day, Period}.
// Two slots in different departments can share a WallClock.
type TimeSlot struct {
	SlotID    string
	DeptID    string
	Day       int
	Period    int
	StartTime string
	EndTime   string
}

// WallClock returns the slot's cross-department collision key.
func (s TimeSlot) WallClock() WallClock {
	return WallClock{Day: s.Day, Period: s.Period}
}

// String renders a WallClock as the "day_period" key faculty Preferences
// maps are keyed by, independent of any department's slot id.
func (w WallClock) String() string {
	return fmt.Sprintf("%d_%d", w.Day, w.Period)
}

// MakeSlotID builds the canonical "{dept_id}_{day}_{period}" slot id.
func MakeSlotID(deptID string, day, period int) string {
	return fmt.Sprintf("%s_%d_%d", deptID, day, period)
}

// Student is immutable after load.
type Student struct {
	StudentID        string
	EnrolledCourseIDs []string
}

// SessionKey uniquely identifies one session of one course.
type SessionKey struct {
	CourseID     string
	SessionIndex int
}

// SlotRoom is the value half of an Assignment entry.
type SlotRoom struct {
	SlotID string
	RoomID string
}

// Assignment maps (course_id, session_index) to (slot_id, room_id). The
// zero value is an empty, usable assignment.
type Assignment struct {
	entries map[SessionKey]SlotRoom
}

// NewAssignment returns an empty assignment ready for use.
func NewAssignment() Assignment {
	return Assignment{entries: make(map[SessionKey]SlotRoom)}
}

// Set records the slot/room pair for a session, overwriting any prior value.
func (a *Assignment) Set(key SessionKey, value SlotRoom) {
	if a.entries == nil {
		a.entries = make(map[SessionKey]SlotRoom)
	}
	a.entries[key] = value
}

// Delete removes a session's entry, if any.
func (a *Assignment) Delete(key SessionKey) {
	delete(a.entries, key)
}

// Get returns the slot/room pair for a session and whether it was present.
func (a Assignment) Get(key SessionKey) (SlotRoom, bool) {
	v, ok := a.entries[key]
	return v, ok
}

// Len returns the number of assigned sessions.
func (a Assignment) Len() int {
	return len(a.entries)
}

// Each calls fn once per (session, slot/room) entry in unspecified order.
func (a Assignment) Each(fn func(SessionKey, SlotRoom)) {
	for k, v := range a.entries {
		fn(k, v)
	}
}

// Clone returns an independent deep copy, used whenever a stage needs its
// own mutable working copy (e.g. the GA population).
func (a Assignment) Clone() Assignment {
	out := make(map[SessionKey]SlotRoom, len(a.entries))
	for k, v := range a.entries {
		out[k] = v
	}
	return Assignment{entries: out}
}

// ConflictKind tags the variant of a Conflict record.
type ConflictKind string

const (
	ConflictFaculty  ConflictKind = "faculty"
	ConflictRoom     ConflictKind = "room"
	ConflictStudent  ConflictKind = "student"
	ConflictCapacity ConflictKind = "capacity"
	ConflictFeature  ConflictKind = "feature"
)

// Conflict is a tagged-variant record; only the fields relevant to Kind are
// populated ({FacultyConflict, RoomConflict, ...} folded into one struct).
type Conflict struct {
	Kind      ConflictKind
	FacultyID string
	RoomID    string
	StudentID string
	CourseID  string
	WallClock WallClock
}

// Cluster is an ordered group of courses sharing one cluster id.
type Cluster struct {
	ClusterID string
	Courses   []Course
}
