package qualitymetrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgirmay/timetabled/internal/catalog"
	"github.com/jgirmay/timetabled/internal/model"
)

func buildCatalog(t *testing.T) catalog.Catalog {
	t.Helper()
	raw := catalog.Raw{
		Courses: []model.Course{
			{CourseID: "C1", DeptID: "CS", Duration: 1, FacultyID: "F1", StudentIDs: []string{"S1"}, EnrollmentCount: 5},
			{CourseID: "C2", DeptID: "PH", Duration: 1, FacultyID: "F2", StudentIDs: []string{"S1"}, EnrollmentCount: 5},
		},
		Faculty: []model.Faculty{
			{FacultyID: "F1", DeptID: "CS", MaxWeeklyLoad: 10},
			{FacultyID: "F2", DeptID: "PH", MaxWeeklyLoad: 10},
		},
		Rooms: []model.Room{
			{RoomID: "R1", SeatingCapacity: 10},
			{RoomID: "R2", SeatingCapacity: 10},
		},
		Students: []model.Student{
			{StudentID: "S1", EnrolledCourseIDs: []string{"C1", "C2"}},
		},
		TimeConfig: catalog.TimeConfig{WorkingDays: 1, SlotsPerDay: 2},
	}
	cat, err := catalog.Build(raw)
	require.NoError(t, err)
	return cat
}

func TestCompute_DetectsCrossDeptStudentConflictAtSameWallClock(t *testing.T) {
	cat := buildCatalog(t)

	assignment := model.NewAssignment()
	assignment.Set(model.SessionKey{CourseID: "C1", SessionIndex: 0}, model.SlotRoom{SlotID: model.MakeSlotID("CS", 0, 0), RoomID: "R1"})
	assignment.Set(model.SessionKey{CourseID: "C2", SessionIndex: 0}, model.SlotRoom{SlotID: model.MakeSlotID("PH", 0, 0), RoomID: "R2"})

	report := Compute(assignment, cat, 2)
	assert.Equal(t, 1, report.ConflictsByKind[model.ConflictStudent])
	assert.False(t, report.Feasible)
	assert.Equal(t, 0.0, report.Quality)
}

func TestCompute_NoConflictsWhenWallClocksDiffer(t *testing.T) {
	cat := buildCatalog(t)

	assignment := model.NewAssignment()
	assignment.Set(model.SessionKey{CourseID: "C1", SessionIndex: 0}, model.SlotRoom{SlotID: model.MakeSlotID("CS", 0, 0), RoomID: "R1"})
	assignment.Set(model.SessionKey{CourseID: "C2", SessionIndex: 0}, model.SlotRoom{SlotID: model.MakeSlotID("PH", 0, 1), RoomID: "R2"})

	report := Compute(assignment, cat, 2)
	assert.Equal(t, 0, totalConflicts(report.ConflictsByKind))
	assert.True(t, report.Feasible)
}

func TestCompute_DetectsCapacityViolation(t *testing.T) {
	raw := catalog.Raw{
		Courses: []model.Course{
			{CourseID: "C1", DeptID: "CS", Duration: 1, FacultyID: "F1", EnrollmentCount: 50},
		},
		Faculty:    []model.Faculty{{FacultyID: "F1", DeptID: "CS"}},
		Rooms:      []model.Room{{RoomID: "R1", SeatingCapacity: 10}},
		TimeConfig: catalog.TimeConfig{WorkingDays: 1, SlotsPerDay: 1},
	}
	cat, err := catalog.Build(raw)
	require.NoError(t, err)

	assignment := model.NewAssignment()
	assignment.Set(model.SessionKey{CourseID: "C1", SessionIndex: 0}, model.SlotRoom{SlotID: model.MakeSlotID("CS", 0, 0), RoomID: "R1"})

	report := Compute(assignment, cat, 1)
	assert.Equal(t, 1, report.ConflictsByKind[model.ConflictCapacity])
	assert.False(t, report.Feasible)
}

func TestCompute_IsPureAcrossRepeatedCalls(t *testing.T) {
	cat := buildCatalog(t)
	assignment := model.NewAssignment()
	assignment.Set(model.SessionKey{CourseID: "C1", SessionIndex: 0}, model.SlotRoom{SlotID: model.MakeSlotID("CS", 0, 0), RoomID: "R1"})
	assignment.Set(model.SessionKey{CourseID: "C2", SessionIndex: 0}, model.SlotRoom{SlotID: model.MakeSlotID("PH", 0, 1), RoomID: "R2"})

	first := Compute(assignment, cat, 3)
	second := Compute(assignment, cat, 1)

	assert.Equal(t, first.ConflictsByKind, second.ConflictsByKind)
	assert.Equal(t, first.Quality, second.Quality)
}

func TestWorkloadBalanceScore_PerfectWhenEvenlyLoaded(t *testing.T) {
	raw := catalog.Raw{
		Courses: []model.Course{
			{CourseID: "C1", DeptID: "CS", Duration: 1, FacultyID: "F1", EnrollmentCount: 1},
			{CourseID: "C2", DeptID: "CS", Duration: 1, FacultyID: "F2", EnrollmentCount: 1},
		},
		Faculty:    []model.Faculty{{FacultyID: "F1", DeptID: "CS"}, {FacultyID: "F2", DeptID: "CS"}},
		Rooms:      []model.Room{{RoomID: "R1", SeatingCapacity: 10}},
		TimeConfig: catalog.TimeConfig{WorkingDays: 1, SlotsPerDay: 2},
	}
	cat, err := catalog.Build(raw)
	require.NoError(t, err)

	assignment := model.NewAssignment()
	assignment.Set(model.SessionKey{CourseID: "C1", SessionIndex: 0}, model.SlotRoom{SlotID: model.MakeSlotID("CS", 0, 0), RoomID: "R1"})
	assignment.Set(model.SessionKey{CourseID: "C2", SessionIndex: 0}, model.SlotRoom{SlotID: model.MakeSlotID("CS", 0, 1), RoomID: "R1"})

	report := Compute(assignment, cat, 1)
	assert.Equal(t, 1.0, report.WorkloadBalance)
}
