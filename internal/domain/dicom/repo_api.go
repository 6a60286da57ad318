package dicom

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ehr/radconsole/internal/domain/study"
	"github.com/ehr/radconsole/internal/platform/gateway"
)

const (
	basePath    = "api/dicom"
	uploadField = "files"
)

type apiRepo struct {
	gw *gateway.Client
}

// NewAPIRepo returns a Repository backed by the clinical REST API.
func NewAPIRepo(gw *gateway.Client) Repository {
	return &apiRepo{gw: gw}
}

func filePath(kind, studyID, name string) string {
	p := basePath
	if kind != "" {
		p += "/" + kind
	}
	return p + "/" + url.PathEscape(studyID) + "/" + url.PathEscape(name)
}

func (r *apiRepo) PatientsWithStudies(ctx context.Context) ([]Patient, error) {
	var out []Patient
	if err := r.gw.Get(ctx, basePath+"/pacientes-con-estudios", nil, &out); err != nil {
		return nil, fmt.Errorf("list patients with studies: %w", err)
	}
	return out, nil
}

func (r *apiRepo) StudiesFor(ctx context.Context, patientID string) (*PatientStudies, error) {
	var out PatientStudies
	if err := r.gw.Get(ctx, basePath+"/estudios-por-paciente/"+url.PathEscape(patientID), nil, &out); err != nil {
		return nil, fmt.Errorf("list studies of patient %s: %w", patientID, err)
	}
	return &out, nil
}

func (r *apiRepo) Files(ctx context.Context, studyID string) ([]study.File, error) {
	var out StudyFiles
	if err := r.gw.Get(ctx, basePath+"/study/"+url.PathEscape(studyID), nil, &out); err != nil {
		return nil, fmt.Errorf("list files of study %s: %w", studyID, err)
	}
	return out.Files, nil
}

func (r *apiRepo) Upload(ctx context.Context, studyID string, files []gateway.UploadFile, progress gateway.ProgressFunc) (*UploadResult, error) {
	var out UploadResult
	if err := r.gw.Upload(ctx, basePath+"/upload/"+url.PathEscape(studyID), uploadField, files, progress, &out); err != nil {
		return nil, fmt.Errorf("upload to study %s: %w", studyID, err)
	}
	return &out, nil
}

func (r *apiRepo) Preview(ctx context.Context, studyID, name string) (*gateway.Stream, error) {
	s, err := r.gw.Open(ctx, filePath("preview", studyID, name))
	if err != nil {
		return nil, fmt.Errorf("preview %s/%s: %w", studyID, name, err)
	}
	return s, nil
}

func (r *apiRepo) Download(ctx context.Context, studyID, name string) (*gateway.Stream, error) {
	s, err := r.gw.Open(ctx, filePath("download", studyID, name))
	if err != nil {
		return nil, fmt.Errorf("download %s/%s: %w", studyID, name, err)
	}
	return s, nil
}

func (r *apiRepo) DeleteFile(ctx context.Context, studyID, name string) error {
	if err := r.gw.Delete(ctx, filePath("", studyID, name), nil); err != nil {
		return fmt.Errorf("delete %s/%s: %w", studyID, name, err)
	}
	return nil
}
