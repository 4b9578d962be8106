package jobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jgirmay/timetabled/internal/catalog"
	"github.com/jgirmay/timetabled/internal/model"
	"github.com/jgirmay/timetabled/internal/qualitymetrics"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	return db
}

func sampleRaw() catalog.Raw {
	return catalog.Raw{
		Courses: []model.Course{
			{CourseID: "C1", DeptID: "CS", Duration: 1, FacultyID: "F1", StudentIDs: []string{"S1"}, EnrollmentCount: 1},
		},
		Faculty:  []model.Faculty{{FacultyID: "F1", DeptID: "CS", MaxWeeklyLoad: 10}},
		Rooms:    []model.Room{{RoomID: "R1", SeatingCapacity: 50}},
		Students: []model.Student{{StudentID: "S1", EnrolledCourseIDs: []string{"C1"}}},
		TimeConfig: catalog.TimeConfig{
			WorkingDays: 5,
			SlotsPerDay: 6,
			StartTime:   "09:00",
			EndTime:     "17:00",
		},
	}
}

func TestStore_CreateJobThenLoadRebuildsCatalog(t *testing.T) {
	store := New(setupTestDB(t))
	require.NoError(t, store.Migrate(context.Background()))

	require.NoError(t, store.CreateJob(context.Background(), "job-1", sampleRaw()))

	cat, err := store.Load(context.Background(), "job-1")
	require.NoError(t, err)
	course, ok := cat.Course("C1")
	require.True(t, ok)
	assert.Equal(t, "CS", course.DeptID)
}

func TestStore_LoadUnknownJobReturnsError(t *testing.T) {
	store := New(setupTestDB(t))
	require.NoError(t, store.Migrate(context.Background()))

	_, err := store.Load(context.Background(), "missing")
	assert.Error(t, err)
}

func TestStore_SaveThenLoadAssignmentRoundTrips(t *testing.T) {
	store := New(setupTestDB(t))
	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, store.CreateJob(context.Background(), "job-2", sampleRaw()))

	assignment := model.NewAssignment()
	assignment.Set(model.SessionKey{CourseID: "C1", SessionIndex: 0}, model.SlotRoom{SlotID: "CS_0_0", RoomID: "R1"})
	report := qualitymetrics.Report{Feasible: true, Quality: 0.9}

	require.NoError(t, store.Save(context.Background(), "job-2", assignment, report))

	got, err := store.LoadAssignment(context.Background(), "job-2")
	require.NoError(t, err)
	slotRoom, ok := got.Get(model.SessionKey{CourseID: "C1", SessionIndex: 0})
	require.True(t, ok)
	assert.Equal(t, "R1", slotRoom.RoomID)
}

func TestStore_MarkFailedRecordsErrorMessage(t *testing.T) {
	store := New(setupTestDB(t))
	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, store.CreateJob(context.Background(), "job-3", sampleRaw()))

	require.NoError(t, store.MarkFailed(context.Background(), "job-3", "cpsat", assertErr{"boom"}))

	var row JobRow
	require.NoError(t, store.db.Where("job_id = ?", "job-3").First(&row).Error)
	assert.Equal(t, "failed", row.Status)
	assert.Contains(t, row.ErrorMessage, "boom")
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
