package library

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/chuo/core"
)

type Book struct {
	ID            string    `json:"id"`
	ISBN          string    `json:"isbn"`
	Title         string    `json:"title"`
	Authors       string    `json:"authors"`
	Publisher     string    `json:"publisher"`
	PublishedYear int       `json:"published_year"`
	Category      string    `json:"category"`
	Copies        int       `json:"copies"`
	Available     int       `json:"available"`
	ShelfCode     string    `json:"shelf_code"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
}

// NewBook contains information needed to create or replace a Book.
// Available defaults to Copies when omitted.
type NewBook struct {
	ISBN          string `json:"isbn" validate:"omitempty,isbn_"`
	Title         string `json:"title" validate:"required,max=255"`
	Authors       string `json:"authors" validate:"required,max=255"`
	Publisher     string `json:"publisher" validate:"max=255"`
	PublishedYear int    `json:"published_year" validate:"gte=0,lte=9999"`
	Category      string `json:"category" validate:"max=64"`
	Copies        int    `json:"copies" validate:"gte=0"`
	Available     *int   `json:"available" validate:"omitempty,gte=0,ltecopies"`
	ShelfCode     string `json:"shelf_code" validate:"max=32"`
	Description   string `json:"description"`
}

func (nb *NewBook) Validate(validate *validator.Validate) error {
	nb.ISBN = CleanISBN(nb.ISBN)
	nb.Title = core.CleanString(nb.Title)
	nb.Authors = core.CleanString(nb.Authors)
	nb.Publisher = core.CleanString(nb.Publisher)
	nb.Category = core.CleanString(nb.Category)
	nb.ShelfCode = core.CleanCode(nb.ShelfCode)
	nb.Description = core.CleanString(nb.Description)
	return validate.Struct(nb)
}

func (nb *NewBook) available() int {
	if nb.Available == nil {
		return nb.Copies
	}
	return *nb.Available
}

type QueryFilter struct {
	Search        string `query:"search"`
	Category      string `query:"category"`
	AvailableOnly bool   `query:"available_only"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Category = core.CleanString(qf.Category)
}

// CleanISBN removes hyphens and spaces from an ISBN and uppercases the check digit.
func CleanISBN(isbn string) string {
	isbn = strings.NewReplacer("-", "", " ", "").Replace(isbn)
	return strings.ToUpper(strings.TrimSpace(isbn))
}

// ValidISBN reports whether a cleaned ISBN-10 or ISBN-13 has a valid check digit.
func ValidISBN(isbn string) bool {
	switch len(isbn) {
	case 10:
		var sum int
		for i, c := range isbn {
			var d int
			switch {
			case c >= '0' && c <= '9':
				d = int(c - '0')
			case c == 'X' && i == 9:
				d = 10
			default:
				return false
			}
			sum += (10 - i) * d
		}
		return sum%11 == 0
	case 13:
		var sum int
		for i, c := range isbn {
			if c < '0' || c > '9' {
				return false
			}
			d := int(c - '0')
			if i%2 == 1 {
				d *= 3
			}
			sum += d
		}
		return sum%10 == 0
	}
	return false
}
