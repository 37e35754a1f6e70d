package labrequest

import (
	"time"
)

// Status is the lifecycle state of a lab request.
//
// PENDING  -> ASSIGNED  -> COMPLETED (terminal)
// PENDING | ASSIGNED    -> CANCELED  (terminal)
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAssigned  Status = "ASSIGNED"
	StatusCompleted Status = "COMPLETED"
	StatusCanceled  Status = "CANCELED"
)

// ValidStatus reports whether s is a known status value.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusAssigned, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are permitted from s.
// COMPLETED still accepts an idempotent re-confirm with the same file.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// LabRequest maps to the lab_request table.
//
// Invariants, held after every operation:
//   - PENDING   <=> assignee is null
//   - ASSIGNED  <=> assignee set and medical file null
//   - COMPLETED <=> medical file set, immutable afterwards
//   - CANCELED  is terminal
type LabRequest struct {
	ID                 int64      `db:"id" json:"id"`
	PatientID          int64      `db:"patient_id" json:"patient_id"`
	CreatedByUserID    int64      `db:"created_by_user_id" json:"created_by_user_id"`
	AssigneeLaborantID *int64     `db:"assignee_laborant_id" json:"assignee_laborant_id,omitempty"`
	FileTitle          string     `db:"file_title" json:"file_title"`
	Notes              *string    `db:"notes" json:"notes,omitempty"`
	Status             Status     `db:"status" json:"status"`
	MedicalFileID      *int64     `db:"medical_file_id" json:"medical_file_id,omitempty"`
	RequestedAt        time.Time  `db:"requested_at" json:"requested_at"`
	AssignedAt         *time.Time `db:"assigned_at" json:"assigned_at,omitempty"`
	CompletedAt        *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CanceledAt         *time.Time `db:"canceled_at" json:"canceled_at,omitempty"`

	// Denormalized display names, populated on reads.
	PatientName  string `db:"-" json:"patient_name,omitempty"`
	CreatorName  string `db:"-" json:"creator_name,omitempty"`
	AssigneeName string `db:"-" json:"assignee_name,omitempty"`
}

// Filter narrows List results. Nil fields are ignored.
type Filter struct {
	Status             *Status
	PatientID          *int64
	AssigneeLaborantID *int64
	CreatedByUserID    *int64
}
