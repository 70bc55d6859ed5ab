package academics

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/chuo/core"
)

// Course levels
const (
	LevelCertificate   = "certificate"
	LevelDiploma       = "diploma"
	LevelUndergraduate = "undergraduate"
	LevelPostgraduate  = "postgraduate"
	LevelDoctorate     = "doctorate"
)

var Levels = []string{LevelCertificate, LevelDiploma, LevelUndergraduate, LevelPostgraduate, LevelDoctorate}

type Faculty struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

type Department struct {
	ID          string    `json:"id"`
	FacultyID   string    `json:"faculty_id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

type Course struct {
	ID            string    `json:"id"`
	DepartmentID  string    `json:"department_id"`
	Code          string    `json:"code"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Level         string    `json:"level"`
	DurationYears int       `json:"duration_years"`
	Credits       int       `json:"credits"`
	IsPublished   bool      `json:"is_published"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
}

// NewFaculty contains information needed to create or replace a Faculty.
type NewFaculty struct {
	Name        string `json:"name" validate:"required,max=128"`
	Code        string `json:"code" validate:"required,max=16,alphanum_"`
	Description string `json:"description"`
}

func (nf *NewFaculty) Validate(validate *validator.Validate) error {
	nf.Name = core.CleanString(nf.Name)
	nf.Code = core.CleanCode(nf.Code)
	nf.Description = core.CleanString(nf.Description)
	return validate.Struct(nf)
}

// NewDepartment contains information needed to create or replace a Department.
type NewDepartment struct {
	FacultyID   string `json:"faculty_id" validate:"required"`
	Name        string `json:"name" validate:"required,max=128"`
	Code        string `json:"code" validate:"required,max=16,alphanum_"`
	Description string `json:"description"`
}

func (nd *NewDepartment) Validate(validate *validator.Validate) error {
	nd.FacultyID = core.CleanString(nd.FacultyID)
	nd.Name = core.CleanString(nd.Name)
	nd.Code = core.CleanCode(nd.Code)
	nd.Description = core.CleanString(nd.Description)
	return validate.Struct(nd)
}

// NewCourse contains information needed to create or replace a Course.
type NewCourse struct {
	DepartmentID  string `json:"department_id" validate:"required"`
	Code          string `json:"code" validate:"required,max=16,alphanum_"`
	Title         string `json:"title" validate:"required,max=255"`
	Description   string `json:"description"`
	Level         string `json:"level" validate:"required,course_level"`
	DurationYears int    `json:"duration_years" validate:"gte=0,lte=10"`
	Credits       int    `json:"credits" validate:"gte=0"`
	IsPublished   bool   `json:"is_published"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.DepartmentID = core.CleanString(nc.DepartmentID)
	nc.Code = core.CleanCode(nc.Code)
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.Level = core.CleanString(nc.Level, true /* lower */)
	return validate.Struct(nc)
}

type FacultyFilter struct {
	Search string `query:"search"`
}

type DepartmentFilter struct {
	Search    string `query:"search"`
	FacultyID string `query:"faculty_id"`
}

type CourseFilter struct {
	Search       string `query:"search"`
	FacultyID    string `query:"faculty_id"`
	DepartmentID string `query:"department_id"`
	Level        string `query:"level"`
	Published    *bool  `query:"published"`
}

func (f *FacultyFilter) Clean() {
	f.Search = core.CleanString(f.Search)
}

func (f *DepartmentFilter) Clean() {
	f.Search = core.CleanString(f.Search)
	f.FacultyID = core.CleanString(f.FacultyID)
}

func (f *CourseFilter) Clean() {
	f.Search = core.CleanString(f.Search)
	f.FacultyID = core.CleanString(f.FacultyID)
	f.DepartmentID = core.CleanString(f.DepartmentID)
	f.Level = core.CleanString(f.Level, true /* lower */)
}
