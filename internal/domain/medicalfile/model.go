// Package medicalfile manages stored test-result artifacts: metadata for
// uploaded files, patient-scoped listing, and soft deletion. The binary
// content itself lives in the artifact store; this package only tracks the
// descriptor. Linking a file to a lab request is owned by the lab-request
// engine and never happens here.
package medicalfile

import "time"

// MedicalFile maps to the medical_file table. RequestID is a write-once
// back-reference set by the lab-request engine on confirmation; once
// non-null it never changes to a different request.
type MedicalFile struct {
	ID          int64      `db:"id" json:"id"`
	PatientID   int64      `db:"patient_id" json:"patient_id"`
	LaborantID  *int64     `db:"laborant_id" json:"laborant_id,omitempty"`
	FileName    string     `db:"file_name" json:"file_name"`
	FileURL     string     `db:"file_url" json:"file_url"`
	FileType    string     `db:"file_type" json:"file_type"`
	FileSizeKB  int64      `db:"file_size_kb" json:"file_size_kb"`
	TestName    string     `db:"test_name" json:"test_name"`
	TestDate    *time.Time `db:"test_date" json:"test_date,omitempty"`
	Description *string    `db:"description" json:"description,omitempty"`
	RequestID   *int64     `db:"request_id" json:"request_id,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	DeletedAt   *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`

	PatientName string `db:"-" json:"patient_name,omitempty"`
}

// Filter narrows List results. Nil fields are ignored. Deleted files are
// excluded unless IncludeDeleted is set.
type Filter struct {
	PatientID      *int64
	LaborantID     *int64
	TestName       *string
	IncludeDeleted bool
}
