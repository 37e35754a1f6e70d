package appointment

import (
	"context"
	"time"
)

// SlotRepository persists availability slots. Book and Release are
// conditional writes with the zero-rows-affected race signal; CreateSlots
// relies on the (doctor_id, starts_at) unique constraint to reject
// duplicate openings.
type SlotRepository interface {
	CreateSlots(ctx context.Context, doctorID int64, starts []time.Time, duration time.Duration) ([]*Slot, error)
	GetByID(ctx context.Context, id int64) (*Slot, error)
	List(ctx context.Context, f SlotFilter, limit, offset int) ([]*Slot, int, error)

	// Book sets the patient only when the slot is still OPEN. Exactly one
	// concurrent caller wins.
	Book(ctx context.Context, slotID, patientID int64) (*Slot, error)

	// Release returns a BOOKED slot to OPEN.
	Release(ctx context.Context, slotID int64) (*Slot, error)
}
