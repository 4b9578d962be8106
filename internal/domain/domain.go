// Package domain precomputes, per course, the valid (slot, room) options a
// scheduler may choose from without inspecting any other course: domain
// validity (HC6 capacity/features, department match, faculty availability)
// plus multi-session contiguity (HC4) folded in directly.
package domain

import (
	"sort"

	"github.com/jgirmay/timetabled/internal/catalog"
	"github.com/jgirmay/timetabled/internal/model"
)

// MaxDomainSize caps the number of options kept per course (spec: "at most
// 20 pairs per variable").
const MaxDomainSize = 20

// Option is one self-consistent way to schedule every session of a course:
// an anchor day/period plus one room, expanded into the full per-session
// (slot, room) pairs. Sessions of a course share one room and occupy
// consecutive periods within one day, satisfying HC4 by construction.
type Option struct {
	RoomID   string
	Sessions []model.SlotRoom // len == course.Duration, index == session_index
	// Score ranks options for the greedy domain cap: higher is preferred.
	Score float64
}

// Table maps course id to its capped, score-sorted option list.
type Table map[string][]Option

// Compute builds the domain table for every course in the catalog.
func Compute(cat catalog.Catalog) Table {
	table := make(Table, cat.NumCourses())
	for _, course := range cat.Courses() {
		table[course.CourseID] = computeOne(cat, course)
	}
	return table
}

func computeOne(cat catalog.Catalog, course model.Course) []Option {
	faculty, ok := cat.Faculty(course.FacultyID)
	if !ok {
		return nil
	}

	var options []Option
	for _, roomID := range cat.RoomIDs() {
		room, _ := cat.Room(roomID)
		if room.SeatingCapacity < course.EnrollmentCount {
			continue
		}
		if !hasAllFeatures(room.Features, course.RequiredFeatures) {
			continue
		}

		for _, slotID := range cat.SlotIDsByDept(course.DeptID) {
			slot, _ := cat.Slot(slotID)
			opt, ok := tryAnchor(cat, course, faculty, room, slot.Day, slot.Period)
			if !ok {
				continue
			}
			options = append(options, opt)
		}
	}

	sort.Slice(options, func(i, j int) bool { return options[i].Score > options[j].Score })
	if len(options) > MaxDomainSize {
		options = options[:MaxDomainSize]
	}
	return options
}

func tryAnchor(cat catalog.Catalog, course model.Course, faculty model.Faculty, room model.Room, day, startPeriod int) (Option, bool) {
	sessions := make([]model.SlotRoom, course.Duration)
	for s := 0; s < course.Duration; s++ {
		period := startPeriod + s
		slotID := model.MakeSlotID(course.DeptID, day, period)
		slot, ok := cat.Slot(slotID)
		if !ok || slot.Day != day || slot.Period != period {
			return Option{}, false
		}
		if !faculty.Availability[model.WallClock{Day: day, Period: period}] {
			return Option{}, false
		}
		sessions[s] = model.SlotRoom{SlotID: slotID, RoomID: room.RoomID}
	}

	score := roomFitScore(room, course) + slotCentralityScore(day, startPeriod)
	return Option{RoomID: room.RoomID, Sessions: sessions, Score: score}, true
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

// roomFitScore prefers rooms whose capacity is close to enrollment (less
// wasted capacity) over cavernous over-provisioned rooms.
func roomFitScore(room model.Room, course model.Course) float64 {
	if course.EnrollmentCount <= 0 {
		return 0
	}
	slack := float64(room.SeatingCapacity-course.EnrollmentCount) / float64(course.EnrollmentCount)
	if slack < 0 {
		return 0
	}
	return 1.0 / (1.0 + slack)
}

// slotCentralityScore mildly prefers mid-morning/early-afternoon anchors
// over the first and last periods of the day, all else equal.
func slotCentralityScore(_ int, startPeriod int) float64 {
	return 1.0 / float64(1+abs(startPeriod-2))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
