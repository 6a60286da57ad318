package report

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/radconsole/internal/domain/study"
	"github.com/ehr/radconsole/internal/platform/export"
	"github.com/ehr/radconsole/internal/platform/form"
	"github.com/ehr/radconsole/internal/platform/gateway"
	"github.com/ehr/radconsole/internal/platform/listview"
	"github.com/ehr/radconsole/internal/platform/session"
	"github.com/ehr/radconsole/pkg/jsontime"
)

const viewName = "informes"

// ErrAlreadyLinked is returned by SyncImages when the report already has
// images.
var ErrAlreadyLinked = errors.New("report already has images")

// Query is the report list's filter bar. Status goes to the backend and is
// re-applied locally; the rest is local.
type Query struct {
	Search     string
	Status     string
	Quality    string
	Urgency    string
	Validation string
	Date       string
}

// QueryFrom reads the filter bar from the request.
func QueryFrom(c echo.Context) Query {
	return Query{
		Search:     strings.TrimSpace(c.QueryParam("search")),
		Status:     c.QueryParam("estado"),
		Quality:    c.QueryParam("calidad"),
		Urgency:    c.QueryParam("urgencia"),
		Validation: c.QueryParam("validacion"),
		Date:       c.QueryParam("fecha"),
	}
}

func (q Query) Params() gateway.Params {
	p := gateway.Params{}
	if !listview.IsAll(q.Status) {
		p["estado"] = q.Status
	}
	return p
}

func (q Query) Filter() listview.Filter[Report] {
	return listview.Filter[Report]{
		listview.Contains(q.Search,
			Report.PatientFullName,
			func(r Report) string { return r.StudyType },
			func(r Report) string { return r.Radiologist },
			func(r Report) string { return r.Findings },
		),
		listview.Equals(q.Status, func(r Report) string { return r.Status }),
		listview.Equals(q.Quality, func(r Report) string { return r.Quality }),
		listview.Equals(q.Urgency, Report.UrgencyLabel),
		listview.Equals(q.Validation, Report.ValidationLabel),
		listview.SameDay(q.Date, jsontime.Location(), func(r Report) time.Time { return r.Date.Time }),
	}
}

// StudySource loads the study a report belongs to.
type StudySource interface {
	Get(ctx context.Context, id string) (*study.Study, error)
}

// PreviewFetcher downloads preview images.
type PreviewFetcher interface {
	Fetch(ctx context.Context, path string) (*gateway.Blob, error)
}

type Option func(*Service)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

type Service struct {
	repo     Repository
	views    *listview.Registry
	studies  StudySource
	previews PreviewFetcher
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, views *listview.Registry, studies StudySource, previews PreviewFetcher, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		views:    views,
		studies:  studies,
		previews: previews,
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// List refreshes the caller's report view, newest report first.
func (s *Service) List(ctx context.Context, q Query) (*listview.Snapshot[Report], error) {
	v := listview.Lookup[Report](s.views, session.IDFromContext(ctx), viewName)
	return v.Load(ctx, q.Filter(), func(ctx context.Context) ([]Report, error) {
		items, err := s.repo.List(ctx, q.Params())
		if err != nil {
			return nil, err
		}
		listview.SortByTime(items, true, func(r Report) time.Time { return r.Date.Time })
		return items, nil
	})
}

func (s *Service) Get(ctx context.Context, id string) (*Report, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, in Input) (*Report, error) {
	return s.repo.Create(ctx, in.Payload())
}

func (s *Service) Update(ctx context.Context, id string, in Input) (*Report, error) {
	return s.repo.Update(ctx, id, in.Payload())
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("report id is required")
	}
	return s.repo.Delete(ctx, id)
}

// SyncImages links the study's DICOM files to a report that has none yet
// and returns how many were linked. A study without files links nothing.
func (s *Service) SyncImages(ctx context.Context, id string) (int, error) {
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if len(r.Images) > 0 {
		return 0, ErrAlreadyLinked
	}
	st, err := s.studies.Get(ctx, r.StudyID)
	if err != nil {
		return 0, fmt.Errorf("load study %s: %w", r.StudyID, err)
	}
	if len(st.Files) == 0 {
		return 0, nil
	}
	images := ImagesFromStudy(st.ID, st.Files)
	if _, err := s.repo.SetImages(ctx, id, images); err != nil {
		return 0, err
	}
	return len(images), nil
}

// PreviewPath is the backend path of a study file's PNG preview.
func PreviewPath(studyID, png string) string {
	return "api/dicom/preview/" + url.PathEscape(studyID) + "/" + url.PathEscape(png)
}

// Document assembles the printable report. When the study cannot be loaded
// the report's own joined fields stand in for it, and previews that fail to
// download are left out; both are logged.
func (s *Service) Document(ctx context.Context, id string) (*Report, export.Document, error) {
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, export.Document{}, err
	}

	studyType, modality, studyDate := r.StudyType, r.StudyModality, r.StudyDate.DisplayDate()
	patient, document := r.PatientFullName(), r.PatientDocument
	if st, err := s.studies.Get(ctx, r.StudyID); errors.Is(err, gateway.ErrUnauthorized) {
		return nil, export.Document{}, err
	} else if err != nil {
		s.logger.Warn().Err(err).Str("report_id", id).Str("study_id", r.StudyID).
			Msg("study unavailable, printing report fields")
	} else {
		studyType = st.StudyType
		modality = st.Modality
		if d := st.PerformedAt.DisplayDate(); d != "" {
			studyDate = d
		}
		if name := st.PatientFullName(); name != "" {
			patient = name
		}
		if st.PatientDocument != "" {
			document = st.PatientDocument
		}
	}

	doc := export.Document{
		Title:    "Informe Radiológico",
		Subtitle: strings.TrimSpace(studyType + " " + parens(study.ModalityName(modality))),
		Facts: []export.Fact{
			{Label: "Paciente", Value: patient},
			{Label: "Cédula", Value: document},
			{Label: "Tipo de estudio", Value: studyType},
			{Label: "Modalidad", Value: modality},
			{Label: "Fecha del estudio", Value: studyDate},
			{Label: "Médico radiólogo", Value: r.Radiologist},
			{Label: "Fecha del informe", Value: r.Date.DisplayDate()},
			{Label: "Estado", Value: r.Status},
			{Label: "Calidad del estudio", Value: r.Quality},
			{Label: "Urgente", Value: yesNo(r.Urgent)},
			{Label: "Validado", Value: yesNo(r.Validated)},
		},
		Footer: "Generado el " + s.now().In(jsontime.Location()).Format("02/01/2006 15:04"),
	}
	for _, sec := range []export.Section{
		{Title: "Técnica utilizada", Body: r.Technique},
		{Title: "Hallazgos", Body: r.Findings},
		{Title: "Impresión diagnóstica", Body: r.Impression},
		{Title: "Recomendaciones", Body: r.Recommendations},
		{Title: "Observaciones técnicas", Body: r.TechnicalNotes},
	} {
		if strings.TrimSpace(sec.Body) != "" {
			doc.Sections = append(doc.Sections, sec)
		}
	}

	images := slices.Clone(r.Images)
	slices.SortStableFunc(images, func(a, b Image) int { return a.Order - b.Order })
	for _, img := range images {
		studyID := img.StudyID
		if studyID == "" {
			studyID = r.StudyID
		}
		blob, err := s.previews.Fetch(ctx, PreviewPath(studyID, img.PNGFile))
		if err != nil {
			if errors.Is(err, gateway.ErrUnauthorized) {
				return nil, export.Document{}, err
			}
			s.logger.Warn().Err(err).Str("report_id", id).Str("file", img.PNGFile).
				Msg("preview unavailable, skipping image")
			continue
		}
		doc.Images = append(doc.Images, export.Image{
			Caption:     img.Description,
			ContentType: blob.ContentType,
			Data:        blob.Data,
		})
	}
	return r, doc, nil
}

func parens(s string) string {
	if s == "" {
		return ""
	}
	return "(" + s + ")"
}

func yesNo(b bool) string {
	if b {
		return "Sí"
	}
	return "No"
}

var _ form.Backend[Input, *Report] = (*Service)(nil)
