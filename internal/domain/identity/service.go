// Package identity is the user/role directory: who exists, what role they
// hold, and which role profile (patient, doctor, laborant) they carry. Other
// domains resolve actors and profile references through it; registration and
// credential handling live outside this service.
package identity

import (
	"context"

	"github.com/clinicore/clinicore/internal/platform/apperr"
)

type Service struct {
	users UserRepository
}

func NewService(users UserRepository) *Service {
	return &Service{users: users}
}

// ResolveActor loads the user and attaches their role profile id.
func (s *Service) ResolveActor(ctx context.Context, userID int64) (*Actor, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, apperr.Forbidden("user account is deactivated")
	}

	actor := &Actor{UserID: u.ID, Role: u.Role, Name: u.FullName(), Email: u.Email}
	switch u.Role {
	case RolePatient:
		p, err := s.users.GetPatientByUserID(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		actor.PatientID = &p.ID
	case RoleDoctor:
		d, err := s.users.GetDoctorByUserID(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		actor.DoctorID = &d.ID
	case RoleLaborant:
		l, err := s.users.GetLaborantByUserID(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		actor.LaborantID = &l.ID
	}
	return actor, nil
}

// FindLaborant resolves idOrUserID to a laborant profile. The value may be
// the laborant-profile id or the laborant's underlying user id; the profile
// id wins when both match.
func (s *Service) FindLaborant(ctx context.Context, idOrUserID int64) (*Laborant, error) {
	l, err := s.users.GetLaborant(ctx, idOrUserID)
	if err == nil {
		return l, nil
	}
	if !apperr.IsKind(err, apperr.KindNotFound) {
		return nil, err
	}
	return s.users.GetLaborantByUserID(ctx, idOrUserID)
}

// FindPatient returns the patient profile with the given id.
func (s *Service) FindPatient(ctx context.Context, id int64) (*Patient, error) {
	return s.users.GetPatient(ctx, id)
}

// FindDoctor returns the doctor profile with the given id.
func (s *Service) FindDoctor(ctx context.Context, id int64) (*Doctor, error) {
	return s.users.GetDoctor(ctx, id)
}

func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.users.GetUser(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, role string, limit, offset int) ([]*User, int, error) {
	if role != "" && !ValidRole(role) {
		return nil, 0, apperr.BadRequest("unknown role %q", role)
	}
	return s.users.ListUsers(ctx, role, limit, offset)
}
