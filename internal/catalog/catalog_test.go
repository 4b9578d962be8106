package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgirmay/timetabled/internal/model"
)

func minimalRaw() Raw {
	return Raw{
		Courses: []model.Course{
			{CourseID: "CS101", DeptID: "CS", Duration: 1, FacultyID: "F1", StudentIDs: []string{"S1"}, EnrollmentCount: 1},
		},
		Faculty: []model.Faculty{
			{FacultyID: "F1", DeptID: "CS", MaxWeeklyLoad: 10, Availability: map[model.WallClock]bool{{Day: 0, Period: 0}: true}},
		},
		Rooms: []model.Room{
			{RoomID: "R1", SeatingCapacity: 50},
		},
		Students: []model.Student{
			{StudentID: "S1", EnrolledCourseIDs: []string{"CS101"}},
		},
		TimeConfig: TimeConfig{WorkingDays: 1, SlotsPerDay: 2},
	}
}

func TestBuild_EmptyCatalogIsInvalid(t *testing.T) {
	_, err := Build(Raw{TimeConfig: TimeConfig{WorkingDays: 1, SlotsPerDay: 1}})
	require.Error(t, err)
	assert.Equal(t, "empty catalog: no courses", AsInvalid(err).Reason)
}

func TestBuild_SynthesizesSlotsPerDept(t *testing.T) {
	c, err := Build(minimalRaw())
	require.NoError(t, err)

	slotIDs := c.SlotIDsByDept("CS")
	assert.Len(t, slotIDs, 2)

	slot, ok := c.Slot(model.MakeSlotID("CS", 0, 0))
	require.True(t, ok)
	assert.Equal(t, "CS", slot.DeptID)
	assert.Equal(t, 0, slot.Day)
	assert.Equal(t, 0, slot.Period)
}

func TestBuild_WallClockIndexSpansDepartments(t *testing.T) {
	raw := minimalRaw()
	raw.Courses = append(raw.Courses, model.Course{
		CourseID: "PH101", DeptID: "PH", Duration: 1, FacultyID: "F2", EnrollmentCount: 1,
	})
	raw.Faculty = append(raw.Faculty, model.Faculty{FacultyID: "F2", DeptID: "PH", MaxWeeklyLoad: 10})

	c, err := Build(raw)
	require.NoError(t, err)

	atZero := c.SlotsAtWallClock(model.WallClock{Day: 0, Period: 0})
	assert.Contains(t, atZero, model.MakeSlotID("CS", 0, 0))
	assert.Contains(t, atZero, model.MakeSlotID("PH", 0, 0))
}

func TestBuild_RejectsNonPositiveDuration(t *testing.T) {
	raw := minimalRaw()
	raw.Courses[0].Duration = 0
	_, err := Build(raw)
	require.Error(t, err)
}

func TestBuild_RejectsDuplicateCourseID(t *testing.T) {
	raw := minimalRaw()
	raw.Courses = append(raw.Courses, raw.Courses[0])
	_, err := Build(raw)
	require.Error(t, err)
}

func TestBuild_LunchBreakSkipsPeriod(t *testing.T) {
	raw := minimalRaw()
	lunch := 1
	raw.TimeConfig = TimeConfig{WorkingDays: 1, SlotsPerDay: 3, LunchBreak: &lunch}
	c, err := Build(raw)
	require.NoError(t, err)

	_, ok := c.Slot(model.MakeSlotID("CS", 0, 1))
	assert.False(t, ok)
	_, ok = c.Slot(model.MakeSlotID("CS", 0, 0))
	assert.True(t, ok)
	_, ok = c.Slot(model.MakeSlotID("CS", 0, 2))
	assert.True(t, ok)
}

func TestCatalog_CoursesByStudentAndFaculty(t *testing.T) {
	c, err := Build(minimalRaw())
	require.NoError(t, err)

	assert.True(t, c.CoursesByStudent("S1")["CS101"])
	assert.True(t, c.CoursesByFaculty("F1")["CS101"])
}
