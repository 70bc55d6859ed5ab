package admission

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/chuo/core"
)

// Application statuses
const (
	StatusSubmitted   = "submitted"
	StatusUnderReview = "under_review"
	StatusAccepted    = "accepted"
	StatusRejected    = "rejected"
	StatusWaitlisted  = "waitlisted"
)

// Document kinds
const (
	DocTranscript     = "transcript"
	DocIdentity       = "identity"
	DocPhoto          = "photo"
	DocRecommendation = "recommendation"
	DocOther          = "other"
)

var (
	Statuses = []string{StatusSubmitted, StatusUnderReview, StatusAccepted, StatusRejected, StatusWaitlisted}
	DocKinds = []string{DocTranscript, DocIdentity, DocPhoto, DocRecommendation, DocOther}

	// transitions lists the statuses reachable from each status.
	transitions = map[string][]string{
		StatusSubmitted:   {StatusUnderReview, StatusRejected},
		StatusUnderReview: {StatusAccepted, StatusRejected, StatusWaitlisted},
		StatusWaitlisted:  {StatusAccepted, StatusRejected},
	}

	refAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	refLen      = 6
)

// CanTransition reports whether an application may move from one status to another.
func CanTransition(from, to string) bool {
	return core.StringInSlice(to, transitions[from])
}

// IsDecision reports whether the status is one the applicant gets notified about.
func IsDecision(status string) bool {
	return status == StatusAccepted || status == StatusRejected || status == StatusWaitlisted
}

// IsTerminal reports whether no transition leaves the status.
func IsTerminal(status string) bool {
	return len(transitions[status]) == 0
}

// NewReference returns a random application reference: APP-<year>-<6 chars>.
func NewReference(now time.Time) (string, error) {
	suffix, err := core.RandomString(refLen, refAlphabet)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("APP-%d-%s", now.Year(), suffix), nil
}

type Application struct {
	ID          string    `json:"id"`
	Reference   string    `json:"reference"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	DateOfBirth time.Time `json:"date_of_birth"`
	Nationality string    `json:"nationality"`
	CourseID    string    `json:"course_id"`
	Intake      string    `json:"intake"`
	Statement   string    `json:"statement"`
	Status      string    `json:"status"`
	ReviewerID  string    `json:"reviewer_id"`
	ReviewNotes string    `json:"review_notes"`
	SubmittedAt time.Time `json:"submitted_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"`   // UTC
	ReviewedAt  time.Time `json:"reviewed_at"`  // UTC
}

func (app Application) FullName() string {
	return strings.TrimSpace(app.FirstName + " " + app.LastName)
}

// TrackedApplication is what applicants see when tracking their application.
type TrackedApplication struct {
	Reference   string     `json:"reference"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	CourseID    string     `json:"course_id"`
	Intake      string     `json:"intake"`
	Status      string     `json:"status"`
	SubmittedAt time.Time  `json:"submitted_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Documents   []Document `json:"documents"`
}

type Document struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"application_id"`
	Kind          string    `json:"kind"`
	Filename      string    `json:"filename"`
	ContentType   string    `json:"content_type"`
	Size          int64     `json:"size"`
	StorageKey    string    `json:"-"`
	UploadedAt    time.Time `json:"uploaded_at"` // UTC
}

// NewApplication contains what an applicant submits.
type NewApplication struct {
	FirstName   string    `json:"first_name" validate:"required,max=128"`
	LastName    string    `json:"last_name" validate:"required,max=128"`
	Email       string    `json:"email" validate:"required,email"`
	Phone       string    `json:"phone" validate:"max=32"`
	DateOfBirth time.Time `json:"date_of_birth" validate:"required"`
	Nationality string    `json:"nationality" validate:"max=64"`
	CourseID    string    `json:"course_id" validate:"required"`
	Intake      string    `json:"intake" validate:"required,max=32"`
	Statement   string    `json:"statement" validate:"max=5000"`
}

func (na *NewApplication) Validate(validate *validator.Validate) error {
	na.FirstName = core.CleanString(na.FirstName)
	na.LastName = core.CleanString(na.LastName)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.Phone = core.CleanString(na.Phone)
	na.Nationality = core.CleanString(na.Nationality)
	na.CourseID = core.CleanString(na.CourseID)
	na.Intake = core.CleanString(na.Intake)
	na.Statement = core.CleanString(na.Statement)
	return validate.Struct(na)
}

// Review is a reviewer's decision on an application.
type Review struct {
	Status string `json:"status" validate:"required,application_status"`
	Notes  string `json:"notes" validate:"max=5000"`
}

func (r *Review) Validate(validate *validator.Validate) error {
	r.Status = core.CleanString(r.Status, true /* lower */)
	r.Notes = core.CleanString(r.Notes)
	return validate.Struct(r)
}

// TrackRequest identifies an application on the public surface.
type TrackRequest struct {
	Reference string `json:"reference" query:"reference" validate:"required"`
	Email     string `json:"email" query:"email" validate:"required,email"`
}

func (tr *TrackRequest) Validate(validate *validator.Validate) error {
	tr.Reference = core.CleanString(strings.ToUpper(tr.Reference))
	tr.Email = core.CleanString(tr.Email, true /* lower */)
	return validate.Struct(tr)
}

type QueryFilter struct {
	Search        string    `query:"search"`
	Status        []string  `query:"status"`
	CourseID      string    `query:"course_id"`
	Intake        string    `query:"intake"`
	SubmittedFrom time.Time `query:"submitted_from"`
	SubmittedTo   time.Time `query:"submitted_to"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.CourseID = core.CleanString(qf.CourseID)
	qf.Intake = core.CleanString(qf.Intake)
}

// GetFilter selects a single Application; the first non-empty field wins.
type GetFilter struct {
	ID        string
	Reference string
}
