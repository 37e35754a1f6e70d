package medicalfile

import "context"

// MedicalFileRepository persists file descriptors. SoftDelete writes the
// tombstone timestamp; HardDelete removes the row and is refused while a
// lab request still references it.
type MedicalFileRepository interface {
	Create(ctx context.Context, f *MedicalFile) error
	GetByID(ctx context.Context, id int64) (*MedicalFile, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*MedicalFile, int, error)
	SoftDelete(ctx context.Context, id int64) error
	Restore(ctx context.Context, id int64) error
	HardDelete(ctx context.Context, id int64) error
}
