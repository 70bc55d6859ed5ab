package importer

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/chuo/core"
)

// Import kinds
const (
	KindCourses  = "courses"
	KindBooks    = "books"
	KindStudents = "students"
)

var Kinds = []string{KindCourses, KindBooks, KindStudents}

type field struct {
	Name     string
	Aliases  []string
	Required bool
}

var kindFields = map[string][]field{
	KindCourses: {
		{Name: "code", Aliases: []string{"course_code"}, Required: true},
		{Name: "title", Aliases: []string{"name", "course_title", "course_name"}, Required: true},
		{Name: "department_code", Aliases: []string{"department", "dept", "dept_code"}, Required: true},
		{Name: "level", Aliases: []string{"course_level"}, Required: true},
		{Name: "duration_years", Aliases: []string{"duration", "years"}},
		{Name: "credits", Aliases: []string{"credit_hours"}},
		{Name: "description", Aliases: []string{"summary"}},
		{Name: "is_published", Aliases: []string{"published"}},
	},
	KindBooks: {
		{Name: "isbn", Aliases: []string{"isbn13", "isbn10"}},
		{Name: "title", Aliases: []string{"book_title"}, Required: true},
		{Name: "authors", Aliases: []string{"author", "writer"}, Required: true},
		{Name: "publisher"},
		{Name: "published_year", Aliases: []string{"year", "publication_year"}},
		{Name: "category", Aliases: []string{"subject", "genre"}},
		{Name: "copies", Aliases: []string{"quantity", "qty"}},
		{Name: "available", Aliases: []string{"available_copies"}},
		{Name: "shelf_code", Aliases: []string{"shelf", "location"}},
		{Name: "description"},
	},
	KindStudents: {
		{Name: "name", Aliases: []string{"full_name", "student_name"}},
		{Name: "first_name", Aliases: []string{"firstname", "given_name"}},
		{Name: "last_name", Aliases: []string{"lastname", "surname", "family_name"}},
		{Name: "username", Aliases: []string{"student_id", "registration_number", "reg_no"}},
		{Name: "email", Aliases: []string{"email_address", "mail"}, Required: true},
	},
}

// Fields returns the field names of an import kind.
func Fields(kind string) []string {
	flds := kindFields[kind]
	names := make([]string, 0, len(flds))
	for _, f := range flds {
		names = append(names, f.Name)
	}
	return names
}

// Mapping maps file headers to field names. Headers mapped to "" are ignored.
type Mapping map[string]string

// normalizeHeader makes header matching insensitive to case, spaces, underscores, hyphens and dots.
func normalizeHeader(s string) string {
	return strings.NewReplacer(" ", "", "_", "", "-", "", ".", "").Replace(strings.ToLower(strings.TrimSpace(s)))
}

// DetectMapping matches headers against the field names and aliases of kind.
// Each field is mapped at most once, to its first matching header.
func DetectMapping(kind string, headers []string) Mapping {
	lookup := make(map[string]string)
	for _, f := range kindFields[kind] {
		lookup[normalizeHeader(f.Name)] = f.Name
		for _, alias := range f.Aliases {
			lookup[normalizeHeader(alias)] = f.Name
		}
	}

	mapping := make(Mapping, len(headers))
	used := make(map[string]bool)
	for _, h := range headers {
		name, ok := lookup[normalizeHeader(h)]
		if !ok || used[name] {
			continue
		}
		mapping[h] = name
		used[name] = true
	}
	return mapping
}

type Preview struct {
	Kind      string     `json:"kind"`
	Fields    []string   `json:"fields"`
	Headers   []string   `json:"headers"`
	Mapping   Mapping    `json:"mapping"`
	Rows      [][]string `json:"rows"`
	TotalRows int        `json:"total_rows"`
}

// RowError reports why a row was not imported. Rows are numbered as in the file, the header being row 1.
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type Report struct {
	Kind     string     `json:"kind"`
	Total    int        `json:"total"`
	Inserted int        `json:"inserted"`
	Skipped  int        `json:"skipped"`
	Failed   int        `json:"failed"`
	Errors   []RowError `json:"errors"`
}

// Request describes an uploaded import file.
type Request struct {
	Kind    string  `json:"kind" form:"kind" validate:"required,import_kind"`
	Mapping Mapping `json:"mapping"`
}

func (req *Request) Validate(validate *validator.Validate) error {
	req.Kind = core.CleanString(req.Kind, true /* lower */)
	if err := validate.Struct(req); err != nil {
		return err
	}

	fields := Fields(req.Kind)
	for header, name := range req.Mapping {
		if name != "" && !core.StringInSlice(name, fields) {
			return core.NewFieldError("mapping", "unknown field for header "+header+": "+name)
		}
	}
	return nil
}
