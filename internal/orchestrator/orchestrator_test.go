package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgirmay/timetabled/internal/catalog"
	"github.com/jgirmay/timetabled/internal/ga"
	"github.com/jgirmay/timetabled/internal/model"
	"github.com/jgirmay/timetabled/internal/progress"
	"github.com/jgirmay/timetabled/internal/qualitymetrics"
)

type fixedCatalogProvider struct {
	cat catalog.Catalog
	err error
}

func (p fixedCatalogProvider) Load(ctx context.Context, jobID string) (catalog.Catalog, error) {
	return p.cat, p.err
}

type recordingSink struct {
	saved       bool
	assignment  model.Assignment
	report      qualitymetrics.Report
	failWithErr error
}

func (s *recordingSink) Save(ctx context.Context, jobID string, assignment model.Assignment, report qualitymetrics.Report) error {
	if s.failWithErr != nil {
		return s.failWithErr
	}
	s.saved = true
	s.assignment = assignment
	s.report = report
	return nil
}

func smallCatalog(t *testing.T) catalog.Catalog {
	t.Helper()
	raw := catalog.Raw{
		Courses: []model.Course{
			{CourseID: "C1", DeptID: "CS", Duration: 1, FacultyID: "F1", StudentIDs: []string{"S1"}, EnrollmentCount: 5},
			{CourseID: "C2", DeptID: "CS", Duration: 1, FacultyID: "F2", StudentIDs: []string{"S2"}, EnrollmentCount: 5},
		},
		Faculty: []model.Faculty{
			{FacultyID: "F1", DeptID: "CS", MaxWeeklyLoad: 10, Availability: fullAvail(2, 2)},
			{FacultyID: "F2", DeptID: "CS", MaxWeeklyLoad: 10, Availability: fullAvail(2, 2)},
		},
		Rooms: []model.Room{
			{RoomID: "R1", SeatingCapacity: 10},
			{RoomID: "R2", SeatingCapacity: 10},
		},
		Students: []model.Student{
			{StudentID: "S1", EnrolledCourseIDs: []string{"C1"}},
			{StudentID: "S2", EnrolledCourseIDs: []string{"C2"}},
		},
		TimeConfig: catalog.TimeConfig{WorkingDays: 2, SlotsPerDay: 2},
	}
	cat, err := catalog.Build(raw)
	require.NoError(t, err)
	return cat
}

func fullAvail(days, periods int) map[model.WallClock]bool {
	m := make(map[model.WallClock]bool)
	for d := 0; d < days; d++ {
		for p := 0; p < periods; p++ {
			m[model.WallClock{Day: d, Period: p}] = true
		}
	}
	return m
}

func TestRun_CompletesAndPersistsOnSuccess(t *testing.T) {
	cat := smallCatalog(t)
	sink := &recordingSink{}
	orch := New(fixedCatalogProvider{cat: cat}, sink, progress.New(), nil)

	gaCfg := ga.Config{NumIslands: 1, PopulationPerIsland: 3, Generations: 2, MigrationInterval: 5, EarlyStopPatience: 10, MutationRateStart: 0.1, MutationRateEnd: 0.02, Seed: 1}
	outcome := orch.Run(context.Background(), "job-1", Options{GA: gaCfg})

	require.False(t, outcome.Failed)
	assert.True(t, sink.saved)
	assert.Equal(t, cat.NumCourses(), outcome.Assignment.Len())
}

func TestRun_ReturnsFailedOutcomeWhenLoadFails(t *testing.T) {
	sink := &recordingSink{}
	orch := New(fixedCatalogProvider{err: &model.CatalogInvalidError{Reason: "boom"}}, sink, progress.New(), nil)

	outcome := orch.Run(context.Background(), "job-2", Options{})

	assert.True(t, outcome.Failed)
	assert.Equal(t, progress.StageLoad, outcome.FailureStage)
	assert.False(t, sink.saved)
}

func TestRun_SkipsPersistenceOnCancellation(t *testing.T) {
	cat := smallCatalog(t)
	sink := &recordingSink{}
	bus := progress.New()
	bus.Cancel("job-3")
	orch := New(fixedCatalogProvider{cat: cat}, sink, bus, nil)

	outcome := orch.Run(context.Background(), "job-3", Options{})

	assert.False(t, sink.saved)
	assert.False(t, outcome.Failed)
	assert.Equal(t, 0, outcome.Assignment.Len())
}

func TestRun_DoesNotPersistWhenSinkFails(t *testing.T) {
	cat := smallCatalog(t)
	sink := &recordingSink{failWithErr: assertErr{}}
	orch := New(fixedCatalogProvider{cat: cat}, sink, progress.New(), nil)

	gaCfg := ga.Config{NumIslands: 1, PopulationPerIsland: 3, Generations: 1, MigrationInterval: 5, EarlyStopPatience: 10, MutationRateStart: 0.1, MutationRateEnd: 0.02, Seed: 1}
	outcome := orch.Run(context.Background(), "job-4", Options{GA: gaCfg})

	assert.True(t, outcome.Failed)
	assert.Equal(t, "persistence", outcome.FailureStage)
}

type assertErr struct{}

func (assertErr) Error() string { return "sink failure" }

type panickingCatalogProvider struct{}

func (panickingCatalogProvider) Load(ctx context.Context, jobID string) (catalog.Catalog, error) {
	panic("boom: catalog provider exploded")
}

func TestRun_RecoversFromPanicInsteadOfCrashing(t *testing.T) {
	sink := &recordingSink{}
	orch := New(panickingCatalogProvider{}, sink, progress.New(), nil)

	outcome := orch.Run(context.Background(), "job-5", Options{})

	assert.True(t, outcome.Failed)
	assert.Equal(t, "orchestrator", outcome.FailureStage)
	require.Error(t, outcome.FailureErr)
	assert.False(t, sink.saved)
}
