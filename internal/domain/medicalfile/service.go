package medicalfile

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/domain/identity"
	"github.com/clinicore/clinicore/internal/platform/apperr"
)

// Directory is the slice of the identity service this package consumes.
type Directory interface {
	ResolveActor(ctx context.Context, userID int64) (*identity.Actor, error)
	FindPatient(ctx context.Context, id int64) (*identity.Patient, error)
}

type Service struct {
	repo   MedicalFileRepository
	dir    Directory
	logger zerolog.Logger
}

func NewService(repo MedicalFileRepository, dir Directory, logger zerolog.Logger) *Service {
	return &Service{repo: repo, dir: dir, logger: logger}
}

type CreateInput struct {
	PatientID   int64      `json:"patient_id"`
	FileName    string     `json:"file_name"`
	FileURL     string     `json:"file_url"`
	FileType    string     `json:"file_type"`
	FileSizeKB  int64      `json:"file_size_kb"`
	TestName    string     `json:"test_name"`
	TestDate    *time.Time `json:"test_date,omitempty"`
	Description *string    `json:"description,omitempty"`
}

// Create records the descriptor of an already-uploaded artifact. The upload
// transport persisted the bytes before this runs; only laborants and admins
// may register results. A laborant caller becomes the uploader of record.
func (s *Service) Create(ctx context.Context, callerUserID int64, in CreateInput) (*MedicalFile, error) {
	actor, err := s.dir.ResolveActor(ctx, callerUserID)
	if err != nil {
		return nil, err
	}
	if actor.Role != identity.RoleLaborant && actor.Role != identity.RoleAdmin {
		return nil, apperr.Forbidden("role %s may not upload medical files", actor.Role)
	}
	if in.FileName == "" || in.FileURL == "" {
		return nil, apperr.BadRequest("file_name and file_url are required")
	}
	if in.TestName == "" {
		return nil, apperr.BadRequest("test_name is required")
	}
	if _, err := s.dir.FindPatient(ctx, in.PatientID); err != nil {
		return nil, err
	}

	f := &MedicalFile{
		PatientID:   in.PatientID,
		LaborantID:  actor.LaborantID,
		FileName:    in.FileName,
		FileURL:     in.FileURL,
		FileType:    in.FileType,
		FileSizeKB:  in.FileSizeKB,
		TestName:    in.TestName,
		TestDate:    in.TestDate,
		Description: in.Description,
	}
	if err := s.repo.Create(ctx, f); err != nil {
		return nil, err
	}
	s.logger.Info().
		Int64("medical_file_id", f.ID).
		Int64("patient_id", f.PatientID).
		Str("test_name", f.TestName).
		Msg("medical file registered")
	return s.repo.GetByID(ctx, f.ID)
}

// Get returns one file. Patients may only see their own, and tombstoned
// files are hidden from everyone but admins.
func (s *Service) Get(ctx context.Context, callerUserID, id int64) (*MedicalFile, error) {
	actor, err := s.dir.ResolveActor(ctx, callerUserID)
	if err != nil {
		return nil, err
	}
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.DeletedAt != nil && actor.Role != identity.RoleAdmin {
		return nil, apperr.NotFound("medical file not found")
	}
	if actor.Role == identity.RolePatient && (actor.PatientID == nil || *actor.PatientID != f.PatientID) {
		return nil, apperr.Forbidden("medical file %d belongs to another patient", id)
	}
	return f, nil
}

// List returns files matching f, scoped by the caller's role. Patients are
// restricted to their own; only admins may include deleted files.
func (s *Service) List(ctx context.Context, callerUserID int64, f Filter, limit, offset int) ([]*MedicalFile, int, error) {
	actor, err := s.dir.ResolveActor(ctx, callerUserID)
	if err != nil {
		return nil, 0, err
	}
	switch actor.Role {
	case identity.RolePatient:
		f.PatientID = actor.PatientID
		f.LaborantID = nil
		f.IncludeDeleted = false
	case identity.RoleAdmin:
	default:
		f.IncludeDeleted = false
	}
	return s.repo.List(ctx, f, limit, offset)
}

// SoftDelete tombstones a file. Only the uploading laborant or an admin may
// delete; repeat deletion is a no-op. The linkage to a completed lab
// request, if any, survives the tombstone.
func (s *Service) SoftDelete(ctx context.Context, callerUserID, id int64) error {
	actor, err := s.dir.ResolveActor(ctx, callerUserID)
	if err != nil {
		return err
	}
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if actor.Role != identity.RoleAdmin {
		if actor.LaborantID == nil || f.LaborantID == nil || *actor.LaborantID != *f.LaborantID {
			return apperr.Forbidden("only the uploader or an admin may delete medical file %d", id)
		}
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().
		Int64("medical_file_id", id).
		Int64("deleted_by", actor.UserID).
		Msg("medical file soft-deleted")
	return nil
}

// Restore clears the tombstone. Admin only.
func (s *Service) Restore(ctx context.Context, callerUserID, id int64) (*MedicalFile, error) {
	actor, err := s.dir.ResolveActor(ctx, callerUserID)
	if err != nil {
		return nil, err
	}
	if actor.Role != identity.RoleAdmin {
		return nil, apperr.Forbidden("only admins may restore medical files")
	}
	if err := s.repo.Restore(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// HardDelete permanently removes an unlinked file. Admin only; files that
// complete a lab request are refused with Conflict.
func (s *Service) HardDelete(ctx context.Context, callerUserID, id int64) error {
	actor, err := s.dir.ResolveActor(ctx, callerUserID)
	if err != nil {
		return err
	}
	if actor.Role != identity.RoleAdmin {
		return apperr.Forbidden("only admins may permanently delete medical files")
	}
	if err := s.repo.HardDelete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().
		Int64("medical_file_id", id).
		Int64("deleted_by", actor.UserID).
		Msg("medical file permanently deleted")
	return nil
}
