// Package dicom is the console's DICOM workspace: choosing a patient and
// study, uploading .dcm files with progress, and browsing the previews the
// backend renders for them.
package dicom

import (
	"path"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/ehr/radconsole/internal/domain/study"
	"github.com/ehr/radconsole/pkg/jsontime"
)

// Extension is the only file suffix the workspace accepts.
const Extension = ".dcm"

// IsDICOMName reports whether name carries the .dcm suffix, in any case.
func IsDICOMName(name string) bool {
	return strings.EqualFold(path.Ext(name), Extension)
}

// FilterDICOM keeps the names that end in .dcm, preserving order.
func FilterDICOM(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if IsDICOMName(n) {
			out = append(out, n)
		}
	}
	return out
}

// Patient is a patient as the DICOM pickers list them.
type Patient struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"nombre"`
	Surname  string `json:"apellidos"`
	Document string `json:"identificacion"`
	// Studies is how many studies the patient has.
	Studies int `json:"estudios_pendientes"`
}

func (p Patient) FullName() string {
	return strings.TrimSpace(p.Name + " " + p.Surname)
}

// Label is the picker text.
func (p Patient) Label() string {
	label := p.FullName()
	if p.Document != "" {
		label += " (" + p.Document + ")"
	}
	return label
}

// StudyRef is a study as the per-patient picker lists it.
type StudyRef struct {
	ID          string        `json:"id" validate:"required"`
	StudyType   string        `json:"tipo_estudio"`
	Status      study.Status  `json:"estado"`
	RequestedAt jsontime.Time `json:"fecha_solicitud"`
	ScheduledAt jsontime.Time `json:"fecha_programada"`
	Priority    string        `json:"prioridad"`
	Notes       string        `json:"indicaciones,omitempty"`
}

func (s StudyRef) Label() string {
	label := s.StudyType
	if d := s.RequestedAt.DisplayDate(); d != "" {
		label += " · " + d
	}
	if s.Status != "" {
		label += " · " + s.Status.Label()
	}
	return label
}

// PatientStudies is the answer of the per-patient study picker.
type PatientStudies struct {
	Patient Patient    `json:"paciente"`
	Studies []StudyRef `json:"estudios" validate:"dive"`
}

// StudyFiles is a study's attached file list.
type StudyFiles struct {
	StudyID string       `json:"estudio_id"`
	Files   []study.File `json:"archivos" validate:"dive"`
}

// UploadResult is what the backend answers to an upload.
type UploadResult struct {
	Message string       `json:"message"`
	Files   []study.File `json:"files" validate:"dive"`
	Patient Patient      `json:"paciente"`
	// Linked is how many images were attached to the study's report.
	Linked int `json:"imagenes_anexadas_a_informe"`
}

// FileView is a study file as the workspace table shows it.
type FileView struct {
	study.File
	StudyID string
}

func (f FileView) Name() string {
	if f.OriginalName != "" {
		return f.OriginalName
	}
	return f.SavedName
}

func (f FileView) HumanSize() string {
	if f.Size <= 0 {
		return "-"
	}
	return humanize.Bytes(uint64(f.Size))
}

// PreviewURL and DownloadURL point at the console's passthrough routes.
func (f FileView) PreviewURL() string {
	return consolePath(f.StudyID, "preview", f.Preview())
}

func (f FileView) DownloadURL() string {
	return consolePath(f.StudyID, "download", f.SavedName)
}

func (f FileView) ViewerURL() string {
	return consolePath(f.StudyID, "visor", f.SavedName)
}

func (f FileView) DeleteURL() string {
	return consolePath(f.StudyID, "eliminar", f.SavedName)
}

// Views pairs files with their study for rendering.
func Views(studyID string, files []study.File) []FileView {
	out := make([]FileView, len(files))
	for i, f := range files {
		out[i] = FileView{File: f, StudyID: studyID}
	}
	return out
}
