package site

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/chuo/core"
)

// Document categories
const (
	CategoryReport        = "report"
	CategoryPolicy        = "policy"
	CategoryBudget        = "budget"
	CategoryAccreditation = "accreditation"
	CategoryOther         = "other"
)

var Categories = []string{CategoryReport, CategoryPolicy, CategoryBudget, CategoryAccreditation, CategoryOther}

// Document is a public report or policy, eg. an annual report or a budget.
type Document struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	Year        int       `json:"year"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	StorageKey  string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

type NewDocument struct {
	Title    string `json:"title" form:"title" validate:"required,max=255"`
	Category string `json:"category" form:"category" validate:"required,document_category"`
	Year     int    `json:"year" form:"year" validate:"omitempty,gte=1900,lte=2100"`
}

func (nd *NewDocument) Validate(validate *validator.Validate) error {
	nd.Title = core.CleanString(nd.Title)
	nd.Category = core.CleanString(nd.Category, true /* lower */)
	return validate.Struct(nd)
}

type QueryFilter struct {
	Category string `query:"category"`
	Year     int    `query:"year"`
}

func (qf *QueryFilter) Clean() {
	qf.Category = core.CleanString(qf.Category, true /* lower */)
}

// ContactMessage is sent through the public contact form.
type ContactMessage struct {
	Name    string `json:"name" validate:"required,max=128"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required,max=255"`
	Message string `json:"message" validate:"required,max=5000"`
}

func (cm *ContactMessage) Validate(validate *validator.Validate) error {
	cm.Name = core.CleanString(cm.Name)
	cm.Email = core.CleanString(cm.Email, true /* lower */)
	cm.Subject = core.CleanString(cm.Subject)
	cm.Message = core.CleanString(cm.Message)
	return validate.Struct(cm)
}
