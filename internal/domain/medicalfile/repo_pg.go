package medicalfile

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

type medicalFileRepoPG struct{ pool *pgxpool.Pool }

func NewMedicalFileRepoPG(pool *pgxpool.Pool) MedicalFileRepository {
	return &medicalFileRepoPG{pool: pool}
}

func (r *medicalFileRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const fileCols = `mf.id, mf.patient_id, mf.laborant_id, mf.file_name, mf.file_url,
	mf.file_type, mf.file_size_kb, mf.test_name, mf.test_date, mf.description,
	mf.request_id, mf.created_at, mf.deleted_at,
	COALESCE(pu.first_name || ' ' || pu.last_name, '')`

const fileFrom = ` FROM medical_file mf
	LEFT JOIN patient p ON p.id = mf.patient_id
	LEFT JOIN app_user pu ON pu.id = p.user_id`

func scanFile(row pgx.Row) (*MedicalFile, error) {
	var f MedicalFile
	err := row.Scan(&f.ID, &f.PatientID, &f.LaborantID, &f.FileName, &f.FileURL,
		&f.FileType, &f.FileSizeKB, &f.TestName, &f.TestDate, &f.Description,
		&f.RequestID, &f.CreatedAt, &f.DeletedAt, &f.PatientName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("medical file not found")
	}
	return &f, err
}

func (r *medicalFileRepoPG) Create(ctx context.Context, f *MedicalFile) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_file
			(patient_id, laborant_id, file_name, file_url, file_type, file_size_kb,
			 test_name, test_date, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		f.PatientID, f.LaborantID, f.FileName, f.FileURL, f.FileType, f.FileSizeKB,
		f.TestName, f.TestDate, f.Description,
	).Scan(&f.ID, &f.CreatedAt)
}

func (r *medicalFileRepoPG) GetByID(ctx context.Context, id int64) (*MedicalFile, error) {
	return scanFile(r.conn(ctx).QueryRow(ctx,
		`SELECT `+fileCols+fileFrom+` WHERE mf.id = $1`, id))
}

func (r *medicalFileRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*MedicalFile, int, error) {
	var conds []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.PatientID != nil {
		add("mf.patient_id = $%d", *f.PatientID)
	}
	if f.LaborantID != nil {
		add("mf.laborant_id = $%d", *f.LaborantID)
	}
	if f.TestName != nil {
		add("mf.test_name ILIKE '%%' || $%d || '%%'", *f.TestName)
	}
	if !f.IncludeDeleted {
		conds = append(conds, "mf.deleted_at IS NULL")
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medical_file mf`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + fileCols + fileFrom + where +
		fmt.Sprintf(` ORDER BY mf.created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*MedicalFile
	for rows.Next() {
		mf, err := scanFile(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, mf)
	}
	return items, total, rows.Err()
}

func (r *medicalFileRepoPG) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE medical_file SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		f, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		// Already tombstoned. Repeat delete is a no-op.
		if f.DeletedAt != nil {
			return nil
		}
	}
	return nil
}

func (r *medicalFileRepoPG) Restore(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE medical_file SET deleted_at = NULL WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("medical file %d not found", id)
	}
	return nil
}

// HardDelete removes the row. Files referenced by a lab request are
// protected: the linkage outlives the artifact's visibility.
func (r *medicalFileRepoPG) HardDelete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM medical_file WHERE id = $1 AND request_id IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		f, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if f.RequestID != nil {
			return apperr.Conflict("medical file %d completes lab request %d and cannot be removed", id, *f.RequestID)
		}
		return apperr.NotFound("medical file %d not found", id)
	}
	return nil
}
