package appointment

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/domain/identity"
	"github.com/clinicore/clinicore/internal/platform/apperr"
	"github.com/clinicore/clinicore/internal/platform/notification"
)

// Directory is the slice of the identity service this package consumes.
type Directory interface {
	ResolveActor(ctx context.Context, userID int64) (*identity.Actor, error)
	FindDoctor(ctx context.Context, id int64) (*identity.Doctor, error)
	GetUser(ctx context.Context, id int64) (*identity.User, error)
}

const defaultSlotDuration = 30 * time.Minute

type Service struct {
	repo     SlotRepository
	dir      Directory
	notifier notification.Notifier
	logger   zerolog.Logger
}

func NewService(repo SlotRepository, dir Directory, notifier notification.Notifier, logger zerolog.Logger) *Service {
	return &Service{repo: repo, dir: dir, notifier: notifier, logger: logger}
}

type OpenSlotsInput struct {
	DoctorID        *int64      `json:"doctor_id,omitempty"`
	Starts          []time.Time `json:"starts"`
	DurationMinutes int         `json:"duration_minutes,omitempty"`
}

// OpenSlots publishes availability. Doctors open their own schedule; admins
// may open slots for any doctor.
func (s *Service) OpenSlots(ctx context.Context, callerUserID int64, in OpenSlotsInput) ([]*Slot, error) {
	actor, err := s.dir.ResolveActor(ctx, callerUserID)
	if err != nil {
		return nil, err
	}

	var doctorID int64
	switch actor.Role {
	case identity.RoleDoctor:
		if actor.DoctorID == nil {
			return nil, apperr.Forbidden("caller has no doctor profile")
		}
		doctorID = *actor.DoctorID
		if in.DoctorID != nil && *in.DoctorID != doctorID {
			return nil, apperr.Forbidden("doctors may only open their own slots")
		}
	case identity.RoleAdmin:
		if in.DoctorID == nil {
			return nil, apperr.BadRequest("doctor_id is required")
		}
		if _, err := s.dir.FindDoctor(ctx, *in.DoctorID); err != nil {
			return nil, err
		}
		doctorID = *in.DoctorID
	default:
		return nil, apperr.Forbidden("role %s may not open slots", actor.Role)
	}

	if len(in.Starts) == 0 {
		return nil, apperr.BadRequest("at least one start time is required")
	}
	duration := defaultSlotDuration
	if in.DurationMinutes > 0 {
		duration = time.Duration(in.DurationMinutes) * time.Minute
	}
	now := time.Now()
	for _, start := range in.Starts {
		if start.Before(now) {
			return nil, apperr.BadRequest("slot start %s is in the past", start.Format(time.RFC3339))
		}
	}

	slots, err := s.repo.CreateSlots(ctx, doctorID, in.Starts, duration)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Int64("doctor_id", doctorID).
		Int("slots", len(slots)).
		Msg("availability slots opened")
	return slots, nil
}

// ListSlots returns slots matching f. Patients asking for booked slots are
// restricted to their own bookings; open-slot browsing is unrestricted.
func (s *Service) ListSlots(ctx context.Context, callerUserID int64, f SlotFilter, limit, offset int) ([]*Slot, int, error) {
	actor, err := s.dir.ResolveActor(ctx, callerUserID)
	if err != nil {
		return nil, 0, err
	}
	if actor.Role == identity.RolePatient {
		if f.PatientID != nil || (f.Status != nil && *f.Status == SlotBooked) {
			f.PatientID = actor.PatientID
		}
	}
	return s.repo.List(ctx, f, limit, offset)
}

// Book reserves an open slot for the calling patient. Race-safe: two
// patients racing for the same slot get exactly one winner, the loser a
// Conflict.
func (s *Service) Book(ctx context.Context, callerUserID, slotID int64) (*Slot, error) {
	actor, err := s.dir.ResolveActor(ctx, callerUserID)
	if err != nil {
		return nil, err
	}
	if actor.Role != identity.RolePatient || actor.PatientID == nil {
		return nil, apperr.Forbidden("only patients may book appointments")
	}

	slot, err := s.repo.GetByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot.StartsAt.Before(time.Now()) {
		return nil, apperr.Conflict("slot %d is in the past", slotID)
	}

	booked, err := s.repo.Book(ctx, slotID, *actor.PatientID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Int64("slot_id", booked.ID).
		Int64("patient_id", *actor.PatientID).
		Int64("doctor_id", booked.DoctorID).
		Msg("appointment booked")
	s.notifier.Notify(notification.EventAppointmentBooked, actor.Email, map[string]string{
		"patient_name": actor.Name,
		"doctor_name":  booked.DoctorName,
		"date":         booked.StartsAt.Format("2006-01-02"),
		"time":         booked.StartsAt.Format("15:04"),
	})
	return booked, nil
}

// Cancel releases a booked slot back to open. Allowed for the booking
// patient, the slot's doctor, and admins.
func (s *Service) Cancel(ctx context.Context, callerUserID, slotID int64) (*Slot, error) {
	actor, err := s.dir.ResolveActor(ctx, callerUserID)
	if err != nil {
		return nil, err
	}
	slot, err := s.repo.GetByID(ctx, slotID)
	if err != nil {
		return nil, err
	}

	allowed := false
	switch actor.Role {
	case identity.RoleAdmin:
		allowed = true
	case identity.RoleDoctor:
		allowed = actor.DoctorID != nil && *actor.DoctorID == slot.DoctorID
	case identity.RolePatient:
		allowed = actor.PatientID != nil && slot.PatientID != nil && *actor.PatientID == *slot.PatientID
	}
	if !allowed {
		return nil, apperr.Forbidden("caller may not cancel slot %d", slotID)
	}

	released, err := s.repo.Release(ctx, slotID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Int64("slot_id", slotID).
		Int64("canceled_by", actor.UserID).
		Msg("appointment canceled")
	return released, nil
}
