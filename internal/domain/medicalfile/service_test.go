package medicalfile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/domain/identity"
	"github.com/clinicore/clinicore/internal/platform/apperr"
)

type mockRepo struct {
	mu     sync.Mutex
	nextID int64
	files  map[int64]*MedicalFile
}

func newMockRepo() *mockRepo {
	return &mockRepo{nextID: 1, files: make(map[int64]*MedicalFile)}
}

func (m *mockRepo) Create(_ context.Context, f *MedicalFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.ID = m.nextID
	m.nextID++
	f.CreatedAt = time.Now().UTC()
	cp := *f
	m.files[f.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id int64) (*MedicalFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return nil, apperr.NotFound("medical file not found")
	}
	cp := *f
	return &cp, nil
}

func (m *mockRepo) List(_ context.Context, filter Filter, limit, offset int) ([]*MedicalFile, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*MedicalFile
	for _, f := range m.files {
		if filter.PatientID != nil && f.PatientID != *filter.PatientID {
			continue
		}
		if filter.LaborantID != nil && (f.LaborantID == nil || *f.LaborantID != *filter.LaborantID) {
			continue
		}
		if !filter.IncludeDeleted && f.DeletedAt != nil {
			continue
		}
		cp := *f
		out = append(out, &cp)
	}
	total := len(out)
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *mockRepo) SoftDelete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return apperr.NotFound("medical file not found")
	}
	if f.DeletedAt == nil {
		now := time.Now().UTC()
		f.DeletedAt = &now
	}
	return nil
}

func (m *mockRepo) Restore(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return apperr.NotFound("medical file not found")
	}
	f.DeletedAt = nil
	return nil
}

func (m *mockRepo) HardDelete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return apperr.NotFound("medical file not found")
	}
	if f.RequestID != nil {
		return apperr.Conflict("medical file %d completes lab request %d and cannot be removed", id, *f.RequestID)
	}
	delete(m.files, id)
	return nil
}

type mockDirectory struct{}

func (mockDirectory) ResolveActor(_ context.Context, userID int64) (*identity.Actor, error) {
	lab7, lab8, pat42 := int64(7), int64(8), int64(42)
	switch userID {
	case 1:
		return &identity.Actor{UserID: 1, Role: identity.RoleAdmin}, nil
	case 200:
		return &identity.Actor{UserID: 200, Role: identity.RoleLaborant, LaborantID: &lab7}, nil
	case 201:
		return &identity.Actor{UserID: 201, Role: identity.RoleLaborant, LaborantID: &lab8}, nil
	case 300:
		return &identity.Actor{UserID: 300, Role: identity.RolePatient, PatientID: &pat42}, nil
	case 100:
		return &identity.Actor{UserID: 100, Role: identity.RoleDoctor}, nil
	}
	return nil, apperr.NotFound("user not found")
}

func (mockDirectory) FindPatient(_ context.Context, id int64) (*identity.Patient, error) {
	if id == 42 {
		return &identity.Patient{ID: 42, UserID: 300}, nil
	}
	return nil, apperr.NotFound("patient not found")
}

const (
	adminUser    = int64(1)
	doctorUser   = int64(100)
	laborantUser = int64(200)
	otherLabUser = int64(201)
	patientUser  = int64(300)
)

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, mockDirectory{}, zerolog.Nop()), repo
}

func upload(t *testing.T, svc *Service) *MedicalFile {
	t.Helper()
	f, err := svc.Create(context.Background(), laborantUser, CreateInput{
		PatientID: 42,
		FileName:  "hemogram.pdf",
		FileURL:   "/files/hemogram.pdf",
		FileType:  "application/pdf",
		TestName:  "Hemogram",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return f
}

func TestCreate(t *testing.T) {
	svc, _ := newTestService()
	f := upload(t, svc)

	if f.LaborantID == nil || *f.LaborantID != 7 {
		t.Errorf("uploader = %v, want laborant 7", f.LaborantID)
	}
	if f.RequestID != nil {
		t.Errorf("request_id set on fresh upload")
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, doctorUser, CreateInput{PatientID: 42, FileName: "x", FileURL: "u", TestName: "t"}); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("doctor uploading: err = %v, want Forbidden", err)
	}
	if _, err := svc.Create(ctx, laborantUser, CreateInput{PatientID: 42, TestName: "t"}); !apperr.IsKind(err, apperr.KindBadRequest) {
		t.Errorf("missing file fields: err = %v, want BadRequest", err)
	}
	if _, err := svc.Create(ctx, laborantUser, CreateInput{PatientID: 999, FileName: "x", FileURL: "u", TestName: "t"}); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("unknown patient: err = %v, want NotFound", err)
	}
}

func TestSoftDeleteOwnership(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	f := upload(t, svc)

	if err := svc.SoftDelete(ctx, otherLabUser, f.ID); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("delete by non-uploader: err = %v, want Forbidden", err)
	}
	if err := svc.SoftDelete(ctx, laborantUser, f.ID); err != nil {
		t.Fatalf("delete by uploader: %v", err)
	}
	// Repeat delete is a no-op, and admins may always delete.
	if err := svc.SoftDelete(ctx, adminUser, f.ID); err != nil {
		t.Errorf("repeat delete: %v", err)
	}

	// Tombstoned files are invisible to non-admins.
	if _, err := svc.Get(ctx, laborantUser, f.ID); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("get deleted as laborant: err = %v, want NotFound", err)
	}
	if _, err := svc.Get(ctx, adminUser, f.ID); err != nil {
		t.Errorf("get deleted as admin: %v", err)
	}
}

func TestRestore(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	f := upload(t, svc)
	if err := svc.SoftDelete(ctx, laborantUser, f.ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	if _, err := svc.Restore(ctx, laborantUser, f.ID); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("restore by laborant: err = %v, want Forbidden", err)
	}
	out, err := svc.Restore(ctx, adminUser, f.ID)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if out.DeletedAt != nil {
		t.Errorf("deleted_at still set after restore")
	}
}

func TestHardDelete(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	f := upload(t, svc)

	if err := svc.HardDelete(ctx, laborantUser, f.ID); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("hard delete by laborant: err = %v, want Forbidden", err)
	}

	// A linked file is protected.
	reqID := int64(12)
	repo.mu.Lock()
	repo.files[f.ID].RequestID = &reqID
	repo.mu.Unlock()
	if err := svc.HardDelete(ctx, adminUser, f.ID); !apperr.IsKind(err, apperr.KindConflict) {
		t.Errorf("hard delete of linked file: err = %v, want Conflict", err)
	}

	repo.mu.Lock()
	repo.files[f.ID].RequestID = nil
	repo.mu.Unlock()
	if err := svc.HardDelete(ctx, adminUser, f.ID); err != nil {
		t.Fatalf("HardDelete: %v", err)
	}
	if _, err := svc.Get(ctx, adminUser, f.ID); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("get after hard delete: err = %v, want NotFound", err)
	}
}

func TestListScoping(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	upload(t, svc)

	// A file for another patient, seeded directly.
	foreign := &MedicalFile{PatientID: 5, FileName: "x", FileURL: "u", TestName: "t"}
	if err := repo.Create(ctx, foreign); err != nil {
		t.Fatalf("seed: %v", err)
	}

	items, total, err := svc.List(ctx, patientUser, Filter{}, 20, 0)
	if err != nil {
		t.Fatalf("List as patient: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].PatientID != 42 {
		t.Errorf("patient list = %d items (total %d), want own file only", len(items), total)
	}

	// Patients cannot peek at deleted files via the filter.
	if err := svc.SoftDelete(ctx, laborantUser, items[0].ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	_, total, err = svc.List(ctx, patientUser, Filter{IncludeDeleted: true}, 20, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 0 {
		t.Errorf("patient sees deleted files, total = %d", total)
	}

	// Admins may include them.
	_, total, err = svc.List(ctx, adminUser, Filter{IncludeDeleted: true}, 20, 0)
	if err != nil {
		t.Fatalf("List as admin: %v", err)
	}
	if total != 2 {
		t.Errorf("admin total = %d, want 2", total)
	}
}
