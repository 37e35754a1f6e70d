// Package labrequest implements the lab-request workflow: a doctor or admin
// opens a request for a patient, a laborant picks it up (by claim or by
// explicit assignment), uploads a result file, and confirms it, which links
// the file and completes the request. All status transitions pass through
// this package; other domains only read.
package labrequest

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/domain/identity"
	"github.com/clinicore/clinicore/internal/platform/apperr"
	"github.com/clinicore/clinicore/internal/platform/notification"
)

// Directory is the slice of the identity service the engine consumes.
type Directory interface {
	ResolveActor(ctx context.Context, userID int64) (*identity.Actor, error)
	FindLaborant(ctx context.Context, idOrUserID int64) (*identity.Laborant, error)
	FindPatient(ctx context.Context, id int64) (*identity.Patient, error)
	GetUser(ctx context.Context, id int64) (*identity.User, error)
}

// capability names an engine operation a role may invoke. Ownership checks
// (creator-or-admin on assign/cancel, own-assignment on confirm) apply on
// top of the capability.
type capability string

const (
	capCreate  capability = "create"
	capView    capability = "view"
	capAssign  capability = "assign"
	capClaim   capability = "claim"
	capConfirm capability = "confirm"
	capCancel  capability = "cancel"
)

var roleCaps = map[string]map[capability]bool{
	identity.RoleDoctor:   {capCreate: true, capView: true, capAssign: true, capCancel: true},
	identity.RoleAdmin:    {capCreate: true, capView: true, capAssign: true, capCancel: true},
	identity.RoleCashier:  {capView: true},
	identity.RoleLaborant: {capView: true, capClaim: true, capConfirm: true},
	identity.RolePatient:  {capView: true},
}

func (s *Service) require(actor *identity.Actor, c capability) error {
	if !roleCaps[actor.Role][c] {
		return apperr.Forbidden("role %s may not %s lab requests", actor.Role, c)
	}
	return nil
}

type Service struct {
	repo     LabRequestRepository
	dir      Directory
	notifier notification.Notifier
	logger   zerolog.Logger
}

func NewService(repo LabRequestRepository, dir Directory, notifier notification.Notifier, logger zerolog.Logger) *Service {
	return &Service{repo: repo, dir: dir, notifier: notifier, logger: logger}
}

type CreateInput struct {
	PatientID          int64   `json:"patient_id"`
	FileTitle          string  `json:"file_title"`
	Notes              *string `json:"notes,omitempty"`
	AssigneeLaborantID *int64  `json:"assignee_laborant_id,omitempty"`
}

// Create opens a request. With an assignee it starts ASSIGNED, otherwise
// PENDING and claimable by any laborant.
func (s *Service) Create(ctx context.Context, callerUserID int64, in CreateInput) (*LabRequest, error) {
	actor, err := s.dir.ResolveActor(ctx, callerUserID)
	if err != nil {
		return nil, err
	}
	if err := s.require(actor, capCreate); err != nil {
		return nil, err
	}
	if in.FileTitle == "" {
		return nil, apperr.BadRequest("file_title is required")
	}
	if _, err := s.dir.FindPatient(ctx, in.PatientID); err != nil {
		return nil, err
	}

	lr := &LabRequest{
		PatientID:       in.PatientID,
		CreatedByUserID: actor.UserID,
		FileTitle:       in.FileTitle,
		Notes:           in.Notes,
		Status:          StatusPending,
	}
	if in.AssigneeLaborantID != nil {
		lab, err := s.dir.FindLaborant(ctx, *in.AssigneeLaborantID)
		if err != nil {
			return nil, err
		}
		lr.AssigneeLaborantID = &lab.ID
		lr.Status = StatusAssigned
	}
	if err := s.repo.Create(ctx, lr); err != nil {
		return nil, err
	}

	out, err := s.repo.GetByID(ctx, lr.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Int64("lab_request_id", out.ID).
		Int64("patient_id", out.PatientID).
		Str("status", string(out.Status)).
		Msg("lab request created")
	s.notifyPatient(ctx, notification.EventLabRequestCreated, out)
	if out.AssigneeLaborantID != nil {
		s.notifyLaborant(ctx, notification.EventLabRequestAssigned, out)
	}
	return out, nil
}

// Get returns one request. Patients may only see their own.
func (s *Service) Get(ctx context.Context, callerUserID, id int64) (*LabRequest, error) {
	actor, err := s.dir.ResolveActor(ctx, callerUserID)
	if err != nil {
		return nil, err
	}
	if err := s.require(actor, capView); err != nil {
		return nil, err
	}
	lr, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == identity.RolePatient && (actor.PatientID == nil || *actor.PatientID != lr.PatientID) {
		return nil, apperr.Forbidden("lab request %d belongs to another patient", id)
	}
	return lr, nil
}

// List returns requests matching f, scoped by the caller's role. Patients
// are always restricted to their own requests. Laborants with no explicit
// filters default to their own assignments; they pass status=PENDING to
// browse the claimable queue.
func (s *Service) List(ctx context.Context, callerUserID int64, f Filter, limit, offset int) ([]*LabRequest, int, error) {
	actor, err := s.dir.ResolveActor(ctx, callerUserID)
	if err != nil {
		return nil, 0, err
	}
	if err := s.require(actor, capView); err != nil {
		return nil, 0, err
	}
	switch actor.Role {
	case identity.RolePatient:
		f.PatientID = actor.PatientID
		f.AssigneeLaborantID = nil
		f.CreatedByUserID = nil
	case identity.RoleLaborant:
		if f.Status == nil && f.AssigneeLaborantID == nil && f.PatientID == nil {
			f.AssigneeLaborantID = actor.LaborantID
		}
	}
	if f.Status != nil && !ValidStatus(*f.Status) {
		return nil, 0, apperr.BadRequest("unknown status %q", *f.Status)
	}
	return s.repo.List(ctx, f, limit, offset)
}

// Assign designates a laborant. Only the creator or an admin may assign.
// Allowed from any non-terminal status; reassignment overwrites the
// current assignee.
func (s *Service) Assign(ctx context.Context, callerUserID, requestID, laborantIDOrUserID int64) (*LabRequest, error) {
	actor, err := s.dir.ResolveActor(ctx, callerUserID)
	if err != nil {
		return nil, err
	}
	if err := s.require(actor, capAssign); err != nil {
		return nil, err
	}
	lr, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.requireCreatorOrAdmin(actor, lr); err != nil {
		return nil, err
	}
	lab, err := s.dir.FindLaborant(ctx, laborantIDOrUserID)
	if err != nil {
		return nil, err
	}

	out, err := s.repo.Assign(ctx, requestID, lab.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Int64("lab_request_id", out.ID).
		Int64("laborant_id", lab.ID).
		Int64("assigned_by", actor.UserID).
		Msg("lab request assigned")
	s.notifyLaborant(ctx, notification.EventLabRequestAssigned, out)
	return out, nil
}

// Claim lets a laborant take an unassigned PENDING request. Race-safe: of
// two concurrent claimants exactly one wins, the other gets Conflict.
func (s *Service) Claim(ctx context.Context, callerUserID, requestID int64) (*LabRequest, error) {
	actor, err := s.dir.ResolveActor(ctx, callerUserID)
	if err != nil {
		return nil, err
	}
	if err := s.require(actor, capClaim); err != nil {
		return nil, err
	}
	if actor.LaborantID == nil {
		return nil, apperr.Forbidden("caller has no laborant profile")
	}

	out, err := s.repo.Claim(ctx, requestID, *actor.LaborantID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Int64("lab_request_id", out.ID).
		Int64("laborant_id", *actor.LaborantID).
		Msg("lab request claimed")
	s.notifyPatient(ctx, notification.EventLabRequestAssigned, out)
	return out, nil
}

// ConfirmWithFile attaches an uploaded result file and completes the
// request. An unassigned request is implicitly claimed first; a request
// assigned to a different laborant is Forbidden. Re-confirming with the
// same file id is an idempotent success.
func (s *Service) ConfirmWithFile(ctx context.Context, callerUserID, requestID, fileID int64) (*LabRequest, error) {
	actor, err := s.dir.ResolveActor(ctx, callerUserID)
	if err != nil {
		return nil, err
	}
	if err := s.require(actor, capConfirm); err != nil {
		return nil, err
	}
	if actor.LaborantID == nil {
		return nil, apperr.Forbidden("caller has no laborant profile")
	}
	laborantID := *actor.LaborantID

	lr, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if lr.AssigneeLaborantID == nil && lr.Status == StatusPending {
		// Implicit claim. A Conflict here means another laborant got there
		// between our read and the claim; the re-read below settles it.
		if _, err := s.repo.Claim(ctx, requestID, laborantID); err != nil && !apperr.IsKind(err, apperr.KindConflict) {
			return nil, err
		}
		if lr, err = s.repo.GetByID(ctx, requestID); err != nil {
			return nil, err
		}
	}
	if lr.AssigneeLaborantID != nil && *lr.AssigneeLaborantID != laborantID {
		return nil, apperr.Forbidden("lab request %d is assigned to another laborant", requestID)
	}

	out, err := s.repo.LinkFile(ctx, requestID, fileID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Int64("lab_request_id", out.ID).
		Int64("medical_file_id", fileID).
		Int64("laborant_id", laborantID).
		Msg("lab request completed")
	s.notifyPatient(ctx, notification.EventLabRequestCompleted, out)
	s.notifyUser(ctx, notification.EventLabRequestCompleted, out, out.CreatedByUserID)
	return out, nil
}

// Cancel marks a request CANCELED. Only the creator or an admin may
// cancel; a COMPLETED request cannot be canceled, and canceling an
// already-CANCELED request is a no-op.
func (s *Service) Cancel(ctx context.Context, callerUserID, requestID int64) (*LabRequest, error) {
	actor, err := s.dir.ResolveActor(ctx, callerUserID)
	if err != nil {
		return nil, err
	}
	if err := s.require(actor, capCancel); err != nil {
		return nil, err
	}
	lr, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.requireCreatorOrAdmin(actor, lr); err != nil {
		return nil, err
	}

	wasCanceled := lr.Status == StatusCanceled
	out, err := s.repo.Cancel(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !wasCanceled {
		s.logger.Info().
			Int64("lab_request_id", out.ID).
			Int64("canceled_by", actor.UserID).
			Msg("lab request canceled")
		s.notifyPatient(ctx, notification.EventLabRequestCanceled, out)
		if out.AssigneeLaborantID != nil {
			s.notifyLaborant(ctx, notification.EventLabRequestCanceled, out)
		}
	}
	return out, nil
}

func (s *Service) requireCreatorOrAdmin(actor *identity.Actor, lr *LabRequest) error {
	if actor.Role == identity.RoleAdmin || actor.UserID == lr.CreatedByUserID {
		return nil
	}
	return apperr.Forbidden("only the creator or an admin may modify lab request %d", lr.ID)
}

func notifyData(lr *LabRequest) map[string]string {
	return map[string]string{
		"file_title":    lr.FileTitle,
		"patient_name":  lr.PatientName,
		"laborant_name": lr.AssigneeName,
	}
}

// notifyPatient emails the patient behind lr. Lookup or delivery failures
// are logged and dropped, never returned.
func (s *Service) notifyPatient(ctx context.Context, kind notification.EventKind, lr *LabRequest) {
	p, err := s.dir.FindPatient(ctx, lr.PatientID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("patient_id", lr.PatientID).Msg("skipping patient notification")
		return
	}
	s.notifyUser(ctx, kind, lr, p.UserID)
}

// notifyLaborant emails the current assignee, if any.
func (s *Service) notifyLaborant(ctx context.Context, kind notification.EventKind, lr *LabRequest) {
	if lr.AssigneeLaborantID == nil {
		return
	}
	lab, err := s.dir.FindLaborant(ctx, *lr.AssigneeLaborantID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("laborant_id", *lr.AssigneeLaborantID).Msg("skipping laborant notification")
		return
	}
	s.notifyUser(ctx, kind, lr, lab.UserID)
}

func (s *Service) notifyUser(ctx context.Context, kind notification.EventKind, lr *LabRequest, userID int64) {
	u, err := s.dir.GetUser(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("skipping notification")
		return
	}
	s.notifier.Notify(kind, u.Email, notifyData(lr))
}
