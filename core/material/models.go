package material

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/chuo/core"
)

// Material kinds
const (
	KindLectureNotes = "lecture_notes"
	KindPastPaper    = "past_paper"
	KindSyllabus     = "syllabus"
	KindAssignment   = "assignment"
	KindOther        = "other"
)

var Kinds = []string{KindLectureNotes, KindPastPaper, KindSyllabus, KindAssignment, KindOther}

type Material struct {
	ID           string    `json:"id"`
	CourseID     string    `json:"course_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Kind         string    `json:"kind"`
	AcademicYear string    `json:"academic_year"`
	Semester     int       `json:"semester"`
	Filename     string    `json:"filename"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	StorageKey   string    `json:"-"`
	UploadedBy   string    `json:"uploaded_by"`
	Downloads    int       `json:"downloads"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

// NewMaterial holds the metadata sent along with an uploaded file. It is also used to update metadata.
type NewMaterial struct {
	CourseID     string `json:"course_id" form:"course_id" validate:"required"`
	Title        string `json:"title" form:"title" validate:"required,max=255"`
	Description  string `json:"description" form:"description"`
	Kind         string `json:"kind" form:"kind" validate:"required,material_kind"`
	AcademicYear string `json:"academic_year" form:"academic_year" validate:"omitempty,academic_year"`
	Semester     int    `json:"semester" form:"semester" validate:"gte=0,lte=3"`
}

func (nm *NewMaterial) Validate(validate *validator.Validate) error {
	nm.CourseID = core.CleanString(nm.CourseID)
	nm.Title = core.CleanString(nm.Title)
	nm.Description = core.CleanString(nm.Description)
	nm.Kind = core.CleanString(nm.Kind, true /* lower */)
	nm.AcademicYear = core.CleanString(nm.AcademicYear)
	return validate.Struct(nm)
}

type QueryFilter struct {
	Search       string `query:"search"`
	CourseID     string `query:"course_id"`
	Kind         string `query:"kind"`
	AcademicYear string `query:"academic_year"`
	UploadedBy   string `query:"uploaded_by"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.CourseID = core.CleanString(qf.CourseID)
	qf.Kind = core.CleanString(qf.Kind, true /* lower */)
	qf.AcademicYear = core.CleanString(qf.AcademicYear)
}
