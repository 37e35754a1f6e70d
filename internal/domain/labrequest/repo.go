package labrequest

import (
	"context"
)

// LabRequestRepository persists lab requests. Claim, Assign, Cancel, and
// LinkFile are conditional writes: the precondition is re-checked inside the
// same statement or transaction as the mutation, so a lost race surfaces as
// a typed Conflict error rather than a silent overwrite.
type LabRequestRepository interface {
	Create(ctx context.Context, lr *LabRequest) error
	GetByID(ctx context.Context, id int64) (*LabRequest, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*LabRequest, int, error)

	// Claim sets the assignee only when the request is PENDING and
	// unassigned. Exactly one concurrent caller wins.
	Claim(ctx context.Context, id, laborantID int64) (*LabRequest, error)

	// Assign overwrites the assignee from any non-terminal status.
	Assign(ctx context.Context, id, laborantID int64) (*LabRequest, error)

	// Cancel moves any non-COMPLETED request to CANCELED. Canceling an
	// already-CANCELED request returns it unchanged.
	Cancel(ctx context.Context, id int64) (*LabRequest, error)

	// LinkFile atomically binds one medical file to one request and marks
	// the request COMPLETED. Both writes commit together or not at all.
	LinkFile(ctx context.Context, requestID, fileID int64) (*LabRequest, error)
}
