package identity

import (
	"context"
)

type UserRepository interface {
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context, role string, limit, offset int) ([]*User, int, error)

	GetPatient(ctx context.Context, id int64) (*Patient, error)
	GetPatientByUserID(ctx context.Context, userID int64) (*Patient, error)

	GetDoctor(ctx context.Context, id int64) (*Doctor, error)
	GetDoctorByUserID(ctx context.Context, userID int64) (*Doctor, error)

	GetLaborant(ctx context.Context, id int64) (*Laborant, error)
	GetLaborantByUserID(ctx context.Context, userID int64) (*Laborant, error)
}
