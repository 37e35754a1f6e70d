package labrequest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/platform/apperr"
	"github.com/clinicore/clinicore/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type labRequestRepoPG struct{ pool *pgxpool.Pool }

func NewLabRequestRepoPG(pool *pgxpool.Pool) LabRequestRepository {
	return &labRequestRepoPG{pool: pool}
}

func (r *labRequestRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const labRequestCols = `lr.id, lr.patient_id, lr.created_by_user_id, lr.assignee_laborant_id,
	lr.file_title, lr.notes, lr.status, lr.medical_file_id,
	lr.requested_at, lr.assigned_at, lr.completed_at, lr.canceled_at,
	COALESCE(pu.first_name || ' ' || pu.last_name, ''),
	COALESCE(cu.first_name || ' ' || cu.last_name, ''),
	COALESCE(lu.first_name || ' ' || lu.last_name, '')`

const labRequestFrom = ` FROM lab_request lr
	LEFT JOIN patient p ON p.id = lr.patient_id
	LEFT JOIN app_user pu ON pu.id = p.user_id
	LEFT JOIN app_user cu ON cu.id = lr.created_by_user_id
	LEFT JOIN laborant l ON l.id = lr.assignee_laborant_id
	LEFT JOIN app_user lu ON lu.id = l.user_id`

func scanLabRequest(row pgx.Row) (*LabRequest, error) {
	var lr LabRequest
	err := row.Scan(&lr.ID, &lr.PatientID, &lr.CreatedByUserID, &lr.AssigneeLaborantID,
		&lr.FileTitle, &lr.Notes, &lr.Status, &lr.MedicalFileID,
		&lr.RequestedAt, &lr.AssignedAt, &lr.CompletedAt, &lr.CanceledAt,
		&lr.PatientName, &lr.CreatorName, &lr.AssigneeName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("lab request not found")
	}
	return &lr, err
}

func (r *labRequestRepoPG) Create(ctx context.Context, lr *LabRequest) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO lab_request
			(patient_id, created_by_user_id, assignee_laborant_id, file_title, notes, status, assigned_at)
		VALUES ($1, $2, $3, $4, $5, $6, CASE WHEN $3::bigint IS NULL THEN NULL ELSE NOW() END)
		RETURNING id, requested_at, assigned_at`,
		lr.PatientID, lr.CreatedByUserID, lr.AssigneeLaborantID, lr.FileTitle, lr.Notes, lr.Status,
	).Scan(&lr.ID, &lr.RequestedAt, &lr.AssignedAt)
}

func (r *labRequestRepoPG) GetByID(ctx context.Context, id int64) (*LabRequest, error) {
	return scanLabRequest(r.conn(ctx).QueryRow(ctx,
		`SELECT `+labRequestCols+labRequestFrom+` WHERE lr.id = $1`, id))
}

func (r *labRequestRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*LabRequest, int, error) {
	var conds []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != nil {
		add("lr.status = $%d", *f.Status)
	}
	if f.PatientID != nil {
		add("lr.patient_id = $%d", *f.PatientID)
	}
	if f.AssigneeLaborantID != nil {
		add("lr.assignee_laborant_id = $%d", *f.AssigneeLaborantID)
	}
	if f.CreatedByUserID != nil {
		add("lr.created_by_user_id = $%d", *f.CreatedByUserID)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM lab_request lr`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + labRequestCols + labRequestFrom + where +
		fmt.Sprintf(` ORDER BY lr.requested_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*LabRequest
	for rows.Next() {
		lr, err := scanLabRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, lr)
	}
	return items, total, rows.Err()
}

// Claim is a single conditional UPDATE: the WHERE clause re-checks the
// claimable state so that of two concurrent claimants exactly one sees a
// row affected. The loser gets a Conflict carrying the current status.
func (r *labRequestRepoPG) Claim(ctx context.Context, id, laborantID int64) (*LabRequest, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_request
		SET assignee_laborant_id = $2, status = $3, assigned_at = NOW()
		WHERE id = $1 AND status = $4 AND assignee_laborant_id IS NULL`,
		id, laborantID, StatusAssigned, StatusPending)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		cur, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, apperr.Conflict("lab request %d is not claimable (status %s)", id, cur.Status)
	}
	return r.GetByID(ctx, id)
}

func (r *labRequestRepoPG) Assign(ctx context.Context, id, laborantID int64) (*LabRequest, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_request
		SET assignee_laborant_id = $2, status = $3, assigned_at = NOW()
		WHERE id = $1 AND status NOT IN ($4, $5)`,
		id, laborantID, StatusAssigned, StatusCompleted, StatusCanceled)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		cur, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, apperr.Conflict("lab request %d cannot be assigned (status %s)", id, cur.Status)
	}
	return r.GetByID(ctx, id)
}

func (r *labRequestRepoPG) Cancel(ctx context.Context, id int64) (*LabRequest, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_request
		SET status = $2, canceled_at = NOW()
		WHERE id = $1 AND status NOT IN ($2, $3)`,
		id, StatusCanceled, StatusCompleted)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		cur, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		// Repeat cancel is an idempotent no-op.
		if cur.Status == StatusCanceled {
			return cur, nil
		}
		return nil, apperr.Conflict("lab request %d is completed and cannot be canceled", id)
	}
	return r.GetByID(ctx, id)
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
