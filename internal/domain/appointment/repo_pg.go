package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

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

type slotRepoPG struct{ pool *pgxpool.Pool }

func NewSlotRepoPG(pool *pgxpool.Pool) SlotRepository {
	return &slotRepoPG{pool: pool}
}

func (r *slotRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const slotCols = `s.id, s.doctor_id, s.starts_at, s.ends_at, s.status, s.patient_id,
	s.booked_at, s.created_at,
	COALESCE(du.first_name || ' ' || du.last_name, ''),
	COALESCE(pu.first_name || ' ' || pu.last_name, '')`

const slotFrom = ` FROM appointment_slot s
	LEFT JOIN doctor d ON d.id = s.doctor_id
	LEFT JOIN app_user du ON du.id = d.user_id
	LEFT JOIN patient p ON p.id = s.patient_id
	LEFT JOIN app_user pu ON pu.id = p.user_id`

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	err := row.Scan(&s.ID, &s.DoctorID, &s.StartsAt, &s.EndsAt, &s.Status, &s.PatientID,
		&s.BookedAt, &s.CreatedAt, &s.DoctorName, &s.PatientName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("slot not found")
	}
	return &s, err
}

func (r *slotRepoPG) CreateSlots(ctx context.Context, doctorID int64, starts []time.Time, duration time.Duration) ([]*Slot, error) {
	var created []*Slot
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		tx := db.TxFromContext(ctx)
		for _, start := range starts {
			var id int64
			err := tx.QueryRow(ctx, `
				INSERT INTO appointment_slot (doctor_id, starts_at, ends_at, status)
				VALUES ($1, $2, $3, $4)
				RETURNING id`,
				doctorID, start, start.Add(duration), SlotOpen).Scan(&id)
			if err != nil {
				return err
			}
			created = append(created, &Slot{
				ID:       id,
				DoctorID: doctorID,
				StartsAt: start,
				EndsAt:   start.Add(duration),
				Status:   SlotOpen,
			})
		}
		return nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, apperr.Conflict("doctor %d already has a slot at one of the requested times", doctorID)
		}
		return nil, err
	}
	return created, nil
}

func (r *slotRepoPG) GetByID(ctx context.Context, id int64) (*Slot, error) {
	return scanSlot(r.conn(ctx).QueryRow(ctx,
		`SELECT `+slotCols+slotFrom+` WHERE s.id = $1`, id))
}

func (r *slotRepoPG) List(ctx context.Context, f SlotFilter, limit, offset int) ([]*Slot, int, error) {
	var conds []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.DoctorID != nil {
		add("s.doctor_id = $%d", *f.DoctorID)
	}
	if f.PatientID != nil {
		add("s.patient_id = $%d", *f.PatientID)
	}
	if f.Status != nil {
		add("s.status = $%d", *f.Status)
	}
	if f.From != nil {
		add("s.starts_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("s.starts_at < $%d", *f.To)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointment_slot s`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + slotCols + slotFrom + where +
		fmt.Sprintf(` ORDER BY s.starts_at LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

// Book re-checks the slot is still OPEN in the UPDATE itself, so racing
// patients get at most one winner.
func (r *slotRepoPG) Book(ctx context.Context, slotID, patientID int64) (*Slot, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment_slot
		SET patient_id = $2, status = $3, booked_at = NOW()
		WHERE id = $1 AND status = $4`,
		slotID, patientID, SlotBooked, SlotOpen)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, slotID); err != nil {
			return nil, err
		}
		return nil, apperr.Conflict("slot %d is no longer available", slotID)
	}
	return r.GetByID(ctx, slotID)
}

func (r *slotRepoPG) Release(ctx context.Context, slotID int64) (*Slot, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment_slot
		SET patient_id = NULL, status = $2, booked_at = NULL
		WHERE id = $1 AND status = $3`,
		slotID, SlotOpen, SlotBooked)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		cur, err := r.GetByID(ctx, slotID)
		if err != nil {
			return nil, err
		}
		// Already open. Releasing twice is a no-op.
		if cur.Status == SlotOpen {
			return cur, nil
		}
		return nil, apperr.Conflict("slot %d cannot be released (status %s)", slotID, cur.Status)
	}
	return r.GetByID(ctx, slotID)
}
