// Package appointment manages doctor availability slots and patient
// bookings. A slot is opened by the doctor (or an admin), booked by exactly
// one patient, and may be released back to open on cancellation. Booking is
// a conditional write so two patients racing for the same slot get exactly
// one winner.
package appointment

import "time"

// SlotStatus is the state of an availability slot.
type SlotStatus string

const (
	SlotOpen   SlotStatus = "OPEN"
	SlotBooked SlotStatus = "BOOKED"
)

// Slot maps to the appointment_slot table.
type Slot struct {
	ID        int64      `db:"id" json:"id"`
	DoctorID  int64      `db:"doctor_id" json:"doctor_id"`
	StartsAt  time.Time  `db:"starts_at" json:"starts_at"`
	EndsAt    time.Time  `db:"ends_at" json:"ends_at"`
	Status    SlotStatus `db:"status" json:"status"`
	PatientID *int64     `db:"patient_id" json:"patient_id,omitempty"`
	BookedAt  *time.Time `db:"booked_at" json:"booked_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`

	DoctorName  string `db:"-" json:"doctor_name,omitempty"`
	PatientName string `db:"-" json:"patient_name,omitempty"`
}

// SlotFilter narrows ListSlots results. Nil fields are ignored; From/To
// bound starts_at.
type SlotFilter struct {
	DoctorID  *int64
	PatientID *int64
	Status    *SlotStatus
	From      *time.Time
	To        *time.Time
}
