// Package jobstore is the GORM-backed reference implementation of
// orchestrator.CatalogProvider and orchestrator.PersistenceSink. Catalog
// input and solver output are each large, tree-shaped value types
// (internal/catalog.Raw, internal/model.Assignment,
// internal/qualitymetrics.Report); rather than normalizing every entity
// into its own table, each is stored as one jsonb blob per job row, the
// same shape this codebase uses elsewhere for Metadata/TaskData/Result
// columns holding opaque structured payloads.
package jobstore

import (
	"encoding/json"
	"time"
)

// JobRow is the one-row-per-job table backing both CatalogProvider and
// PersistenceSink.
type JobRow struct {
	JobID        string          `json:"job_id" gorm:"type:varchar(255);primary_key"`
	Status       string          `json:"status" gorm:"type:varchar(50);index;default:'pending'"`
	CatalogData  json.RawMessage `json:"catalog_data" gorm:"type:jsonb"`
	Assignment   json.RawMessage `json:"assignment" gorm:"type:jsonb"`
	Report       json.RawMessage `json:"report" gorm:"type:jsonb"`
	ErrorMessage string          `json:"error_message" gorm:"type:text"`
	CreatedAt    time.Time       `json:"created_at" gorm:"index"`
	UpdatedAt    time.Time       `json:"updated_at"`
	CompletedAt  *time.Time      `json:"completed_at"`
}

// TableName specifies the table name for GORM.
func (JobRow) TableName() string {
	return "timetabling_jobs"
}

// assignmentEntry is the wire shape one (session, slot/room) pair is
// marshalled to; model.Assignment has no exported fields to encode/decode
// directly.
type assignmentEntry struct {
	CourseID     string `json:"course_id"`
	SessionIndex int    `json:"session_index"`
	SlotID       string `json:"slot_id"`
	RoomID       string `json:"room_id"`
}
