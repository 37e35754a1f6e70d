package labrequest

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clinicore/clinicore/internal/platform/apperr"
	"github.com/clinicore/clinicore/internal/platform/db"
)

// LinkFile binds one medical file to one lab request and marks the request
// COMPLETED inside a single transaction. Both rows are locked FOR UPDATE
// before the preconditions are checked, so the checks and the two writes
// commit or roll back together. The partial unique index on
// medical_file.request_id backstops the lock ordering: a unique violation
// surfaces as Conflict rather than a broken link.
func (r *labRequestRepoPG) LinkFile(ctx context.Context, requestID, fileID int64) (*LabRequest, error) {
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		tx := db.TxFromContext(ctx)

		var (
			reqStatus Status
			reqFileID *int64
		)
		err := tx.QueryRow(ctx,
			`SELECT status, medical_file_id FROM lab_request WHERE id = $1 FOR UPDATE`,
			requestID).Scan(&reqStatus, &reqFileID)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("lab request %d not found", requestID)
		}
		if err != nil {
			return err
		}

		var (
			fileReqID *int64
			deletedAt *time.Time
		)
		err = tx.QueryRow(ctx,
			`SELECT request_id, deleted_at FROM medical_file WHERE id = $1 FOR UPDATE`,
			fileID).Scan(&fileReqID, &deletedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("medical file %d not found", fileID)
		}
		if err != nil {
			return err
		}
		if deletedAt != nil {
			return apperr.NotFound("medical file %d not found", fileID)
		}

		if fileReqID != nil && *fileReqID != requestID {
			return apperr.Conflict("medical file %d is already attached to another lab request", fileID)
		}
		if reqFileID != nil {
			if *reqFileID == fileID {
				// Already linked to this exact file. Idempotent success.
				return nil
			}
			return apperr.Conflict("lab request %d is already completed with a different file", requestID)
		}
		if reqStatus == StatusCanceled {
			return apperr.Conflict("lab request %d is canceled", requestID)
		}
		if reqStatus == StatusCompleted {
			return apperr.Conflict("lab request %d is already completed", requestID)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE medical_file SET request_id = $1 WHERE id = $2`,
			requestID, fileID); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE lab_request
			SET medical_file_id = $2, status = $3, completed_at = NOW()
			WHERE id = $1`,
			requestID, fileID, StatusCompleted)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("medical file %d was attached concurrently, retry", fileID)
		}
		return nil, err
	}
	return r.GetByID(ctx, requestID)
}
