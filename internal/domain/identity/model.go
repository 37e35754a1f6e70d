package identity

import (
	"time"
)

// Roles recognised by the directory. Stored lowercase in app_user.role.
const (
	RolePatient  = "patient"
	RoleDoctor   = "doctor"
	RoleAdmin    = "admin"
	RoleCashier  = "cashier"
	RoleLaborant = "laborant"
	RoleCleaner  = "cleaner"
)

// ValidRole reports whether role is a known role value.
func ValidRole(role string) bool {
	switch role {
	case RolePatient, RoleDoctor, RoleAdmin, RoleCashier, RoleLaborant, RoleCleaner:
		return true
	}
	return false
}

// User maps to the app_user table. Credentials live elsewhere; the directory
// only knows who exists and what role they hold.
type User struct {
	ID        int64     `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Role      string    `db:"role" json:"role"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// FullName returns "First Last" for display.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// Patient maps to the patient table.
type Patient struct {
	ID        int64      `db:"id" json:"id"`
	UserID    int64      `db:"user_id" json:"user_id"`
	BirthDate *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Gender    *string    `db:"gender" json:"gender,omitempty"`
	Phone     *string    `db:"phone" json:"phone,omitempty"`
	BloodType *string    `db:"blood_type" json:"blood_type,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Doctor maps to the doctor table.
type Doctor struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Specialty string    `db:"specialty" json:"specialty"`
	RoomNo    *string   `db:"room_no" json:"room_no,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Laborant maps to the laborant table.
type Laborant struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Actor is a resolved caller: the user, their role, and whichever role
// profile they carry. At most one profile id is non-nil.
type Actor struct {
	UserID     int64  `json:"user_id"`
	Role       string `json:"role"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	PatientID  *int64 `json:"patient_id,omitempty"`
	DoctorID   *int64 `json:"doctor_id,omitempty"`
	LaborantID *int64 `json:"laborant_id,omitempty"`
}
