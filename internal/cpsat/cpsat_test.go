package cpsat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgirmay/timetabled/internal/catalog"
	"github.com/jgirmay/timetabled/internal/domain"
	"github.com/jgirmay/timetabled/internal/model"
	"github.com/jgirmay/timetabled/internal/resource"
)

func twoCourseCatalog(t *testing.T) catalog.Catalog {
	t.Helper()
	raw := catalog.Raw{
		Courses: []model.Course{
			{CourseID: "C1", DeptID: "CS", Duration: 1, FacultyID: "F1", StudentIDs: []string{"S1"}, EnrollmentCount: 1},
			{CourseID: "C2", DeptID: "CS", Duration: 1, FacultyID: "F2", StudentIDs: []string{"S1"}, EnrollmentCount: 1},
		},
		Faculty: []model.Faculty{
			{FacultyID: "F1", DeptID: "CS", MaxWeeklyLoad: 10, Availability: fullAvailability(2, 2)},
			{FacultyID: "F2", DeptID: "CS", MaxWeeklyLoad: 10, Availability: fullAvailability(2, 2)},
		},
		Rooms: []model.Room{
			{RoomID: "R1", SeatingCapacity: 10},
		},
		Students: []model.Student{
			{StudentID: "S1", EnrolledCourseIDs: []string{"C1", "C2"}},
		},
		TimeConfig: catalog.TimeConfig{WorkingDays: 2, SlotsPerDay: 2},
	}
	cat, err := catalog.Build(raw)
	require.NoError(t, err)
	return cat
}

func mustCourse(t *testing.T, cat catalog.Catalog, id string) model.Course {
	t.Helper()
	c, ok := cat.Course(id)
	require.True(t, ok, "course %s not found", id)
	return c
}

func fullAvailability(days, periods int) map[model.WallClock]bool {
	m := make(map[model.WallClock]bool)
	for d := 0; d < days; d++ {
		for p := 0; p < periods; p++ {
			m[model.WallClock{Day: d, Period: p}] = true
		}
	}
	return m
}

func TestSolveAttempt_SucceedsWhenRoomsAndSlotsSuffice(t *testing.T) {
	cat := twoCourseCatalog(t)
	courses := []model.Course{mustCourse(t, cat, "C1"), mustCourse(t, cat, "C2")}
	domains := domain.Compute(cat)

	strat := DefaultLadder()[0]
	result := solveAttempt(context.Background(), courses, domains, strat, cat)
	require.True(t, result.ok)
	assert.Len(t, result.choices, 2)
}

func TestSolveAttempt_FailsUnderImpossibleSingleRoomSingleSlot(t *testing.T) {
	raw := catalog.Raw{
		Courses: []model.Course{
			{CourseID: "A", DeptID: "CS", Duration: 1, FacultyID: "FA", EnrollmentCount: 1},
			{CourseID: "B", DeptID: "CS", Duration: 1, FacultyID: "FB", EnrollmentCount: 1},
		},
		Faculty: []model.Faculty{
			{FacultyID: "FA", DeptID: "CS", Availability: fullAvailability(1, 1)},
			{FacultyID: "FB", DeptID: "CS", Availability: fullAvailability(1, 1)},
		},
		Rooms:      []model.Room{{RoomID: "R1", SeatingCapacity: 5}},
		TimeConfig: catalog.TimeConfig{WorkingDays: 1, SlotsPerDay: 1},
	}
	cat, err := catalog.Build(raw)
	require.NoError(t, err)

	courses := []model.Course{mustCourse(t, cat, "A"), mustCourse(t, cat, "B")}
	domains := domain.Compute(cat)
	strat := DefaultLadder()[0]

	result := solveAttempt(context.Background(), courses, domains, strat, cat)
	assert.False(t, result.ok)
}

// TestSolveAttempt_BacktracksWhenGreedyChoiceBlocksALaterCourse builds a
// cluster where the single-pass greedy choice for the first course (by
// raw score) locks the only room the second course can use; a solver with
// no backtracking would fail this cluster outright. solveAttempt must
// instead undo the first course's top choice and retry its next-best
// option, freeing the room the second course needs.
func TestSolveAttempt_BacktracksWhenGreedyChoiceBlocksALaterCourse(t *testing.T) {
	raw := catalog.Raw{
		Courses: []model.Course{
			// A has no required features, so it fits either room, and its top
			// score prefers R1 (tighter capacity fit) over R2.
			{CourseID: "A", DeptID: "CS", Duration: 1, FacultyID: "FA", EnrollmentCount: 8},
			// B requires "proj", which only R1 has, so B's domain is R1 alone.
			{CourseID: "B", DeptID: "CS", Duration: 1, FacultyID: "FB", EnrollmentCount: 10, RequiredFeatures: []string{"proj"}},
		},
		Faculty: []model.Faculty{
			{FacultyID: "FA", DeptID: "CS", Availability: fullAvailability(1, 1)},
			{FacultyID: "FB", DeptID: "CS", Availability: fullAvailability(1, 1)},
		},
		Rooms: []model.Room{
			{RoomID: "R1", SeatingCapacity: 10, Features: []string{"proj"}},
			{RoomID: "R2", SeatingCapacity: 50},
		},
		TimeConfig: catalog.TimeConfig{WorkingDays: 1, SlotsPerDay: 1},
	}
	cat, err := catalog.Build(raw)
	require.NoError(t, err)

	courses := []model.Course{mustCourse(t, cat, "A"), mustCourse(t, cat, "B")}
	domains := domain.Compute(cat)
	require.Equal(t, "R1", domains["A"][0].RoomID, "test assumes A's top-scored option is R1")
	require.Len(t, domains["B"], 1, "test assumes B's only feasible room is R1")

	strat := DefaultLadder()[0]
	result := solveAttempt(context.Background(), courses, domains, strat, cat)

	require.True(t, result.ok, "backtracking should recover a feasible placement")
	assert.Equal(t, "R2", result.choices["A"].RoomID, "A should have backed off its first choice")
	assert.Equal(t, "R1", result.choices["B"].RoomID)
}

func TestGreedy_PlacesWhatItCanAndDefersTheRest(t *testing.T) {
	raw := catalog.Raw{
		Courses: []model.Course{
			{CourseID: "A", DeptID: "CS", Duration: 1, FacultyID: "FA", EnrollmentCount: 1},
			{CourseID: "B", DeptID: "CS", Duration: 1, FacultyID: "FB", EnrollmentCount: 1},
		},
		Faculty: []model.Faculty{
			{FacultyID: "FA", DeptID: "CS", Availability: fullAvailability(1, 1)},
			{FacultyID: "FB", DeptID: "CS", Availability: fullAvailability(1, 1)},
		},
		Rooms:      []model.Room{{RoomID: "R1", SeatingCapacity: 5}},
		TimeConfig: catalog.TimeConfig{WorkingDays: 1, SlotsPerDay: 1},
	}
	cat, err := catalog.Build(raw)
	require.NoError(t, err)

	courses := []model.Course{mustCourse(t, cat, "A"), mustCourse(t, cat, "B")}
	result := Greedy(courses, cat, nil)

	assert.Len(t, result.Choices, 1)
	assert.Len(t, result.Deferred, 1)
}

func TestGreedy_CanonicalOrderIsDeterministic(t *testing.T) {
	cat := twoCourseCatalog(t)
	courses := []model.Course{mustCourse(t, cat, "C1"), mustCourse(t, cat, "C2")}

	first := Greedy(courses, cat, nil)
	second := Greedy(courses, cat, nil)
	assert.Equal(t, first.Choices["C1"].Sessions, second.Choices["C1"].Sessions)
	assert.Equal(t, first.Choices["C2"].Sessions, second.Choices["C2"].Sessions)
}

func TestSolve_FallsBackToGreedyWhenLadderExhausted(t *testing.T) {
	raw := catalog.Raw{
		Courses: []model.Course{
			{CourseID: "A", DeptID: "CS", Duration: 1, FacultyID: "FA", EnrollmentCount: 1},
			{CourseID: "B", DeptID: "CS", Duration: 1, FacultyID: "FB", EnrollmentCount: 1},
		},
		Faculty: []model.Faculty{
			{FacultyID: "FA", DeptID: "CS", Availability: fullAvailability(1, 1)},
			{FacultyID: "FB", DeptID: "CS", Availability: fullAvailability(1, 1)},
		},
		Rooms:      []model.Room{{RoomID: "R1", SeatingCapacity: 5}},
		TimeConfig: catalog.TimeConfig{WorkingDays: 1, SlotsPerDay: 1},
	}
	cat, err := catalog.Build(raw)
	require.NoError(t, err)

	clusters := map[string][]model.Course{
		"cluster-0": {mustCourse(t, cat, "A"), mustCourse(t, cat, "B")},
	}
	domains := domain.Compute(cat)

	assignment, outcomes := Solve(context.Background(), clusters, domains, cat, DefaultOptions(), func() resource.Level { return resource.LevelNormal }, nil)

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].UsedFallback)
	assert.Len(t, outcomes[0].DeferredCourses, 1)
	assert.Equal(t, 1, assignment.Len())
}

func TestSolve_PrefersLadderWhenFeasible(t *testing.T) {
	cat := twoCourseCatalog(t)
	clusters := map[string][]model.Course{
		"cluster-0": {mustCourse(t, cat, "C1"), mustCourse(t, cat, "C2")},
	}
	domains := domain.Compute(cat)

	assignment, outcomes := Solve(context.Background(), clusters, domains, cat, DefaultOptions(), func() resource.Level { return resource.LevelNormal }, nil)

	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].UsedFallback)
	assert.Equal(t, "Full Solve", outcomes[0].Strategy)
	assert.Equal(t, 2, assignment.Len())
}

func TestWorkerCount_SerializesUnderCriticalPressure(t *testing.T) {
	w := workerCount(0, func() resource.Level { return resource.LevelCritical })
	assert.Equal(t, 1, w)
}
