package jobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jgirmay/timetabled/internal/catalog"
	"github.com/jgirmay/timetabled/internal/model"
	"github.com/jgirmay/timetabled/internal/qualitymetrics"
)

// Store is the GORM-backed reference CatalogProvider/PersistenceSink pair,
// shaped like this codebase's *RepositoryImpl{db *gorm.DB} structs.
type Store struct {
	db *gorm.DB
}

// New wraps an already-open *gorm.DB. Migrate must be called once before
// first use.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the jobs table.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&JobRow{})
}

// CreateJob seeds a pending job row with its catalog input, the piece of
// state a CatalogProvider.Load call later reads back.
func (s *Store) CreateJob(ctx context.Context, jobID string, raw catalog.Raw) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("jobstore: marshal catalog: %w", err)
	}
	row := JobRow{JobID: jobID, Status: "pending", CatalogData: data, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Create(&row).Error
}

// Load implements orchestrator.CatalogProvider: it reads back the raw
// catalog input seeded by CreateJob and rebuilds the immutable Catalog.
func (s *Store) Load(ctx context.Context, jobID string) (catalog.Catalog, error) {
	var row JobRow
	if err := s.db.WithContext(ctx).Where("job_id = ?", jobID).First(&row).Error; err != nil {
		return catalog.Catalog{}, fmt.Errorf("jobstore: load job %s: %w", jobID, err)
	}
	var raw catalog.Raw
	if err := json.Unmarshal(row.CatalogData, &raw); err != nil {
		return catalog.Catalog{}, fmt.Errorf("jobstore: unmarshal catalog for job %s: %w", jobID, err)
	}
	cat, err := catalog.Build(raw)
	if err != nil {
		return catalog.Catalog{}, catalog.AsInvalid(err)
	}
	return cat, nil
}

// Save implements orchestrator.PersistenceSink.
func (s *Store) Save(ctx context.Context, jobID string, assignment model.Assignment, report qualitymetrics.Report) error {
	assignmentData, err := marshalAssignment(assignment)
	if err != nil {
		return fmt.Errorf("jobstore: marshal assignment: %w", err)
	}
	reportData, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("jobstore: marshal report: %w", err)
	}
	now := time.Now()
	return s.db.WithContext(ctx).Model(&JobRow{}).Where("job_id = ?", jobID).
		Updates(map[string]interface{}{
			"status":       "completed",
			"assignment":   assignmentData,
			"report":       reportData,
			"updated_at":   now,
			"completed_at": now,
		}).Error
}

// MarkFailed records a hard stage failure, using the same single-row
// Updates(map[string]interface{}{...}) idiom as Save.
func (s *Store) MarkFailed(ctx context.Context, jobID, stage string, cause error) error {
	return s.db.WithContext(ctx).Model(&JobRow{}).Where("job_id = ?", jobID).
		Updates(map[string]interface{}{
			"status":        "failed",
			"error_message": fmt.Sprintf("%s: %v", stage, cause),
			"updated_at":    time.Now(),
		}).Error
}

// LoadAssignment reads back a completed job's persisted assignment, used by
// read paths that don't need the full qualitymetrics.Report.
func (s *Store) LoadAssignment(ctx context.Context, jobID string) (model.Assignment, error) {
	var row JobRow
	if err := s.db.WithContext(ctx).Where("job_id = ?", jobID).First(&row).Error; err != nil {
		return model.Assignment{}, fmt.Errorf("jobstore: load job %s: %w", jobID, err)
	}
	if len(row.Assignment) == 0 {
		return model.NewAssignment(), nil
	}
	return unmarshalAssignment(row.Assignment)
}

func marshalAssignment(a model.Assignment) ([]byte, error) {
	entries := make([]assignmentEntry, 0, a.Len())
	a.Each(func(key model.SessionKey, value model.SlotRoom) {
		entries = append(entries, assignmentEntry{
			CourseID:     key.CourseID,
			SessionIndex: key.SessionIndex,
			SlotID:       value.SlotID,
			RoomID:       value.RoomID,
		})
	})
	return json.Marshal(entries)
}

func unmarshalAssignment(data []byte) (model.Assignment, error) {
	var entries []assignmentEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return model.Assignment{}, err
	}
	out := model.NewAssignment()
	for _, e := range entries {
		out.Set(model.SessionKey{CourseID: e.CourseID, SessionIndex: e.SessionIndex}, model.SlotRoom{SlotID: e.SlotID, RoomID: e.RoomID})
	}
	return out, nil
}
