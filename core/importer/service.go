package importer

import (
	"io"
	"strconv"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/academics"
	"github.com/trezcool/chuo/core/library"
	"github.com/trezcool/chuo/core/user"
)

type (
	CourseTarget interface {
		GetDepartmentByCode(code string) (academics.Department, error)
		CreateCourses(ncs []academics.NewCourse) error
	}

	BookTarget interface {
		CreateMany(nbs []library.NewBook) error
	}

	ServiceInterface interface {
		Preview(kind, filename string, r io.Reader) (Preview, error)
		Import(req Request, filename string, r io.Reader) (Report, error)
	}

	Service struct {
		courses     CourseTarget
		books       BookTarget
		users       user.ServiceInterface
		validate    *validator.Validate
		translator  ut.Translator
		batchSize   int
		previewRows int
	}

	// record is a data row keyed by field name.
	record map[string]string

	// job parses rows of one kind and inserts them in batches.
	job struct {
		parse  func(rec record) (interface{}, error)
		insert func(items []interface{}) error
	}

	parsedRow struct {
		row  int
		item interface{}
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(
	courses CourseTarget,
	books BookTarget,
	users user.ServiceInterface,
	validate *validator.Validate,
	translator ut.Translator,
	conf *core.Config,
) *Service {
	svc := &Service{
		courses:     courses,
		books:       books,
		users:       users,
		validate:    validate,
		translator:  translator,
		batchSize:   conf.Importer.BatchSize,
		previewRows: conf.Importer.PreviewRows,
	}
	if svc.batchSize <= 0 {
		svc.batchSize = 100
	}
	if svc.previewRows <= 0 {
		svc.previewRows = 10
	}
	return svc
}

func (svc *Service) Preview(kind, filename string, r io.Reader) (Preview, error) {
	if _, ok := kindFields[kind]; !ok {
		return Preview{}, core.NewFieldError("kind", "invalid import kind")
	}
	table, err := ReadTable(filename, r)
	if err != nil {
		return Preview{}, err
	}

	rows := table.Rows
	if len(rows) > svc.previewRows {
		rows = rows[:svc.previewRows]
	}
	return Preview{
		Kind:      kind,
		Fields:    Fields(kind),
		Headers:   table.Headers,
		Mapping:   DetectMapping(kind, table.Headers),
		Rows:      rows,
		TotalRows: len(table.Rows),
	}, nil
}

// Import inserts the valid rows of the file in batches. A batch that fails to insert fails all its rows,
// and the import goes on with the next batch.
func (svc *Service) Import(req Request, filename string, r io.Reader) (Report, error) {
	table, err := ReadTable(filename, r)
	if err != nil {
		return Report{}, err
	}

	mapping := req.Mapping
	if len(mapping) == 0 {
		mapping = DetectMapping(req.Kind, table.Headers)
	}
	columns, err := resolveColumns(req.Kind, table.Headers, mapping)
	if err != nil {
		return Report{}, err
	}

	var jb job
	switch req.Kind {
	case KindCourses:
		jb = svc.coursesJob()
	case KindBooks:
		jb = svc.booksJob()
	case KindStudents:
		jb = svc.studentsJob()
	default:
		return Report{}, core.NewFieldError("kind", "invalid import kind")
	}

	report := Report{Kind: req.Kind, Total: len(table.Rows), Errors: []RowError{}}
	parsed := make([]parsedRow, 0, len(table.Rows))
	for i, row := range table.Rows {
		rowNum := i + 2
		rec, empty := toRecord(row, columns)
		if empty {
			report.Skipped++
			continue
		}
		item, err := jb.parse(rec)
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, RowError{Row: rowNum, Error: svc.message(err)})
			continue
		}
		parsed = append(parsed, parsedRow{row: rowNum, item: item})
	}

	for start := 0; start < len(parsed); start += svc.batchSize {
		end := start + svc.batchSize
		if end > len(parsed) {
			end = len(parsed)
		}
		batch := parsed[start:end]
		items := make([]interface{}, len(batch))
		for i, p := range batch {
			items[i] = p.item
		}

		if err := jb.insert(items); err != nil {
			msg := svc.message(err)
			for _, p := range batch {
				report.Errors = append(report.Errors, RowError{Row: p.row, Error: "batch failed: " + msg})
			}
			report.Failed += len(batch)
			continue
		}
		report.Inserted += len(batch)
	}
	return report, nil
}

// resolveColumns returns {field: column index}. Every required field must be mapped to an existing header.
func resolveColumns(kind string, headers []string, mapping Mapping) (map[string]int, error) {
	columns := make(map[string]int, len(mapping))
	for i, h := range headers {
		if name := mapping[h]; name != "" {
			if _, dup := columns[name]; !dup {
				columns[name] = i
			}
		}
	}

	var missing []string
	for _, f := range kindFields[kind] {
		if _, ok := columns[f.Name]; f.Required && !ok {
			missing = append(missing, f.Name)
		}
	}
	if kind == KindStudents {
		_, hasName := columns["name"]
		_, hasFirst := columns["first_name"]
		if !hasName && !hasFirst {
			missing = append(missing, "name")
		}
	}
	if len(missing) > 0 {
		return nil, core.NewFieldError("mapping", "no column mapped to: "+strings.Join(missing, ", "))
	}
	return columns, nil
}

func toRecord(row []string, columns map[string]int) (rec record, empty bool) {
	rec = make(record, len(columns))
	empty = true
	for name, idx := range columns {
		val := strings.TrimSpace(row[idx])
		rec[name] = val
		if val != "" {
			empty = false
		}
	}
	return rec, empty
}

// message flattens an error into a single line for the report.
func (svc *Service) message(err error) string {
	switch e := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		msgs := make([]string, 0, len(e))
		for _, fe := range e {
			msgs = append(msgs, fe.Field()+": "+fe.Translate(svc.translator))
		}
		return strings.Join(msgs, "; ")
	case *core.ValidationError:
		if len(e.Fields) == 0 {
			return e.Error()
		}
		msgs := make([]string, 0, len(e.Fields))
		for _, fe := range e.Fields {
			msgs = append(msgs, fe.Field+": "+fe.Error)
		}
		return strings.Join(msgs, "; ")
	}
	return err.Error()
}

func (svc *Service) coursesJob() job {
	departments := make(map[string]string) // code: id

	return job{
		parse: func(rec record) (interface{}, error) {
			duration, err := parseInt(rec, "duration_years")
			if err != nil {
				return nil, err
			}
			credits, err := parseInt(rec, "credits")
			if err != nil {
				return nil, err
			}
			published, err := parseBool(rec, "is_published")
			if err != nil {
				return nil, err
			}

			code := core.CleanCode(rec["department_code"])
			if code == "" {
				return nil, core.NewFieldError("department_code", "this field is required")
			}
			deptID, ok := departments[code]
			if !ok {
				dept, err := svc.courses.GetDepartmentByCode(code)
				if err != nil {
					if core.IsNotFound(err) {
						return nil, core.NewFieldError("department_code", "department not found: "+code)
					}
					return nil, errors.Wrap(err, "getting department")
				}
				deptID = dept.ID
				departments[code] = deptID
			}

			nc := academics.NewCourse{
				DepartmentID:  deptID,
				Code:          rec["code"],
				Title:         rec["title"],
				Description:   rec["description"],
				Level:         rec["level"],
				DurationYears: duration,
				Credits:       credits,
				IsPublished:   published,
			}
			if err := nc.Validate(svc.validate); err != nil {
				return nil, err
			}
			return nc, nil
		},
		insert: func(items []interface{}) error {
			ncs := make([]academics.NewCourse, len(items))
			for i, item := range items {
				ncs[i] = item.(academics.NewCourse)
			}
			return svc.courses.CreateCourses(ncs)
		},
	}
}

func (svc *Service) booksJob() job {
	return job{
		parse: func(rec record) (interface{}, error) {
			year, err := parseInt(rec, "published_year")
			if err != nil {
				return nil, err
			}
			copies, err := parseInt(rec, "copies")
			if err != nil {
				return nil, err
			}
			nb := library.NewBook{
				ISBN:          rec["isbn"],
				Title:         rec["title"],
				Authors:       rec["authors"],
				Publisher:     rec["publisher"],
				PublishedYear: year,
				Category:      rec["category"],
				Copies:        copies,
				ShelfCode:     rec["shelf_code"],
				Description:   rec["description"],
			}
			if rec["available"] != "" {
				available, err := parseInt(rec, "available")
				if err != nil {
					return nil, err
				}
				nb.Available = &available
			}
			if err := nb.Validate(svc.validate); err != nil {
				return nil, err
			}
			return nb, nil
		},
		insert: func(items []interface{}) error {
			nbs := make([]library.NewBook, len(items))
			for i, item := range items {
				nbs[i] = item.(library.NewBook)
			}
			return svc.books.CreateMany(nbs)
		},
	}
}

func (svc *Service) studentsJob() job {
	return job{
		parse: func(rec record) (interface{}, error) {
			name := rec["name"]
			if name == "" {
				name = strings.TrimSpace(rec["first_name"] + " " + rec["last_name"])
			}
			ns := user.NewStudent{
				Name:     name,
				Username: rec["username"],
				Email:    rec["email"],
			}
			if err := ns.Validate(svc.validate, svc.users); err != nil {
				return nil, err
			}
			return ns, nil
		},
		insert: func(items []interface{}) error {
			nss := make([]user.NewStudent, len(items))
			for i, item := range items {
				nss[i] = item.(user.NewStudent)
			}
			return svc.users.CreateStudents(nss)
		},
	}
}

func parseInt(rec record, name string) (int, error) {
	val := rec[name]
	if val == "" {
		return 0, nil
	}
	// spreadsheets often store whole numbers as floats
	if f, err := strconv.ParseFloat(val, 64); err == nil && f == float64(int(f)) {
		return int(f), nil
	}
	return 0, core.NewFieldError(name, "must be a whole number")
}

func parseBool(rec record, name string) (bool, error) {
	switch strings.ToLower(rec[name]) {
	case "", "0", "n", "no", "false", "f":
		return false, nil
	case "1", "y", "yes", "true", "t":
		return true, nil
	}
	return false, core.NewFieldError(name, "must be yes or no")
}
