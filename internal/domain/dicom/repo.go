package dicom

import (
	"context"

	"github.com/ehr/radconsole/internal/domain/study"
	"github.com/ehr/radconsole/internal/platform/gateway"
)

// Repository is the backend's DICOM surface.
type Repository interface {
	PatientsWithStudies(ctx context.Context) ([]Patient, error)
	StudiesFor(ctx context.Context, patientID string) (*PatientStudies, error)
	Files(ctx context.Context, studyID string) ([]study.File, error)
	Upload(ctx context.Context, studyID string, files []gateway.UploadFile, progress gateway.ProgressFunc) (*UploadResult, error)
	Preview(ctx context.Context, studyID, name string) (*gateway.Stream, error)
	Download(ctx context.Context, studyID, name string) (*gateway.Stream, error)
	DeleteFile(ctx context.Context, studyID, name string) error
}
