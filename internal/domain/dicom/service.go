package dicom

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/ehr/radconsole/internal/platform/gateway"
)

var (
	// ErrNoStudy is returned when an upload names no study.
	ErrNoStudy = errors.New("no study selected")
	// ErrNoFiles is returned when nothing in an upload survives inspection.
	ErrNoFiles = errors.New("no DICOM files to upload")
)

// Source is one file offered for upload. Open may be called more than once;
// each call starts from the beginning of the file.
type Source struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// Rejection is a file left out of an upload and why.
type Rejection struct {
	Name   string
	Reason string
}

// Summary describes a finished upload.
type Summary struct {
	StudyID    string
	Message    string
	Uploaded   int
	Bytes      int64
	Linked     int
	Patient    Patient
	Files      []FileView
	Rejected   []Rejection
	Modalities []string
	Warnings   []string
}

func (s Summary) HumanBytes() string {
	return humanize.Bytes(uint64(s.Bytes))
}

type Option func(*Service)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

type Service struct {
	repo    Repository
	tracker *Tracker
	logger  zerolog.Logger
}

func NewService(repo Repository, tracker *Tracker, opts ...Option) *Service {
	s := &Service{repo: repo, tracker: tracker, logger: zerolog.Nop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Tracker() *Tracker { return s.tracker }

func (s *Service) Patients(ctx context.Context) ([]Patient, error) {
	return s.repo.PatientsWithStudies(ctx)
}

func (s *Service) Studies(ctx context.Context, patientID string) (*PatientStudies, error) {
	return s.repo.StudiesFor(ctx, patientID)
}

func (s *Service) Files(ctx context.Context, studyID string) ([]FileView, error) {
	files, err := s.repo.Files(ctx, studyID)
	if err != nil {
		return nil, err
	}
	return Views(studyID, files), nil
}

func (s *Service) Preview(ctx context.Context, studyID, name string) (*gateway.Stream, error) {
	return s.repo.Preview(ctx, studyID, name)
}

func (s *Service) Download(ctx context.Context, studyID, name string) (*gateway.Stream, error) {
	return s.repo.Download(ctx, studyID, name)
}

func (s *Service) DeleteFile(ctx context.Context, studyID, name string) error {
	if !IsDICOMName(name) {
		return fmt.Errorf("delete %s: not a %s file", name, Extension)
	}
	return s.repo.DeleteFile(ctx, studyID, name)
}

// inspected is a source whose header parsed.
type inspected struct {
	Source
	header *Header
}

// screen drops non-.dcm names and files whose header does not parse.
func screen(sources []Source) ([]inspected, []Rejection) {
	var (
		ok       []inspected
		rejected []Rejection
	)
	for _, src := range sources {
		if !IsDICOMName(src.Name) {
			rejected = append(rejected, Rejection{Name: src.Name, Reason: "no es un archivo .dcm"})
			continue
		}
		h, err := inspectSource(src)
		if err != nil {
			rejected = append(rejected, Rejection{Name: src.Name, Reason: "encabezado DICOM ilegible"})
			continue
		}
		ok = append(ok, inspected{Source: src, header: h})
	}
	return ok, rejected
}

func inspectSource(src Source) (*Header, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return Inspect(rc, src.Size)
}

// Upload screens sources, posts the survivors to the study, and reports
// byte progress under key, a TrackKey. On success the study's file list is
// re-read so the summary shows what the backend now holds.
func (s *Service) Upload(ctx context.Context, key, studyID string, sources []Source) (*Summary, error) {
	s.tracker.Start(key)
	sum, err := s.upload(ctx, key, studyID, sources)
	s.tracker.Finish(key, err)
	return sum, err
}

func (s *Service) upload(ctx context.Context, key, studyID string, sources []Source) (*Summary, error) {
	sum := &Summary{StudyID: studyID}
	if studyID == "" {
		return sum, ErrNoStudy
	}
	files, rejected := screen(sources)
	sum.Rejected = rejected
	if len(files) == 0 {
		return sum, ErrNoFiles
	}

	parts := make([]gateway.UploadFile, 0, len(files))
	defer func() {
		for _, p := range parts {
			if c, ok := p.Reader.(io.Closer); ok {
				c.Close()
			}
		}
	}()
	patients := map[string]bool{}
	for _, f := range files {
		rc, err := f.Open()
		if err != nil {
			return sum, fmt.Errorf("open %s: %w", f.Name, err)
		}
		parts = append(parts, gateway.UploadFile{Name: f.Name, Size: f.Size, Reader: rc})
		sum.Bytes += f.Size
		if m := f.header.Modality; m != "" && !slices.Contains(sum.Modalities, m) {
			sum.Modalities = append(sum.Modalities, m)
		}
		if id := f.header.PatientID; id != "" {
			patients[id] = true
		}
	}
	if len(patients) > 1 {
		sum.Warnings = append(sum.Warnings,
			fmt.Sprintf("Los archivos traen %d identificadores de paciente DICOM distintos.", len(patients)))
	}

	res, err := s.repo.Upload(ctx, studyID, parts, func(sent, total int64) {
		s.tracker.Report(key, sent, total)
	})
	if err != nil {
		return sum, err
	}
	sum.Message = res.Message
	sum.Uploaded = len(res.Files)
	sum.Linked = res.Linked
	sum.Patient = res.Patient
	s.logger.Info().Str("study_id", studyID).Int("files", sum.Uploaded).
		Str("size", sum.HumanBytes()).Int("rejected", len(rejected)).Msg("dicom upload complete")

	current, err := s.repo.Files(ctx, studyID)
	if err != nil {
		s.logger.Warn().Err(err).Str("study_id", studyID).Msg("refresh study files after upload")
		current = res.Files
	}
	sum.Files = Views(studyID, current)
	return sum, nil
}
