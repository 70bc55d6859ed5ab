package content

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/academics"
)

// Job kinds
const (
	KindCourseDescription = "course_description"
)

// Job statuses
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

var (
	Kinds    = []string{KindCourseDescription}
	Statuses = []string{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}
)

type Job struct {
	ID          int64     `json:"id"`
	Kind        string    `json:"kind"`
	TargetID    string    `json:"target_id"`
	Prompt      string    `json:"prompt"`
	Status      string    `json:"status"`
	Result      string    `json:"result"`
	Error       string    `json:"error"`
	Attempts    int       `json:"attempts"`
	CreatedAt   time.Time `json:"created_at"`   // UTC
	StartedAt   time.Time `json:"started_at"`   // UTC
	CompletedAt time.Time `json:"completed_at"` // UTC
}

// QueueStatus is a snapshot of the queue.
type QueueStatus struct {
	Counts  map[string]int `json:"counts"`
	Running bool           `json:"running"`
}

// EnqueueRequest asks for jobs on the given targets, or on every course without a description when empty.
type EnqueueRequest struct {
	Kind      string   `json:"kind" validate:"required,job_kind"`
	TargetIDs []string `json:"target_ids"`
}

func (er *EnqueueRequest) Validate(validate *validator.Validate) error {
	er.Kind = core.CleanString(er.Kind, true /* lower */)
	ids := make([]string, 0, len(er.TargetIDs))
	for _, id := range er.TargetIDs {
		if id = core.CleanString(id); id != "" && !core.StringInSlice(id, ids) {
			ids = append(ids, id)
		}
	}
	er.TargetIDs = ids
	return validate.Struct(er)
}

type QueryFilter struct {
	Status string `query:"status"`
}

func (qf *QueryFilter) Clean() {
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}

// CoursePrompt is the generator prompt for a course description.
func CoursePrompt(crs academics.Course) string {
	years := "year"
	if crs.DurationYears != 1 {
		years = "years"
	}
	return fmt.Sprintf(
		"Write an engaging description of about 120 words for the %s course %q (%s) lasting %d %s. "+
			"Address prospective students and mention what they will learn.",
		crs.Level, crs.Title, crs.Code, crs.DurationYears, years,
	)
}
