package mailbox

import (
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/trezcool/chuo/core"
)

// Account kinds
const (
	KindStudent = "student"
	KindStaff   = "staff"
)

// Account statuses
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusFailed    = "failed"
)

var (
	Kinds    = []string{KindStudent, KindStaff}
	Statuses = []string{StatusPending, StatusActive, StatusSuspended, StatusFailed}
)

type EmailAccount struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Address       string    `json:"address"`
	Kind          string    `json:"kind"`
	PersonalEmail string    `json:"personal_email"`
	Status        string    `json:"status"`
	FailureReason string    `json:"failure_reason"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`     // UTC
	UpdatedAt     time.Time `json:"updated_at"`     // UTC
	ProvisionedAt time.Time `json:"provisioned_at"` // UTC
}

func (acct EmailAccount) FullName() string {
	return strings.TrimSpace(acct.FirstName + " " + acct.LastName)
}

// NewEmailAccount contains information needed to provision an EmailAccount.
type NewEmailAccount struct {
	UserID        string `json:"user_id"`
	FirstName     string `json:"first_name" validate:"required,max=128"`
	LastName      string `json:"last_name" validate:"required,max=128"`
	Kind          string `json:"kind" validate:"required,mailbox_kind"`
	PersonalEmail string `json:"personal_email" validate:"omitempty,email"`
}

func (na *NewEmailAccount) Validate(validate *validator.Validate) error {
	na.UserID = core.CleanString(na.UserID)
	na.FirstName = core.CleanString(na.FirstName)
	na.LastName = core.CleanString(na.LastName)
	na.Kind = core.CleanString(na.Kind, true /* lower */)
	na.PersonalEmail = core.CleanString(na.PersonalEmail, true /* lower */)
	return validate.Struct(na)
}

type QueryFilter struct {
	Search string   `query:"search"`
	Status []string `query:"status"`
	Kind   string   `query:"kind"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Kind = core.CleanString(qf.Kind, true /* lower */)
}

// AddressPart folds diacritics, lowercases and drops anything outside [a-z0-9].
func AddressPart(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LocalPart returns the `first.last` local part of an address, or "" when nothing usable remains.
func LocalPart(firstName, lastName string) string {
	parts := make([]string, 0, 2)
	for _, name := range []string{firstName, lastName} {
		if p := AddressPart(name); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}
