package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/academics"
)

const (
	facultyColumns    = `id, name, code, description, created_at, updated_at`
	departmentColumns = `id, faculty_id, name, code, description, created_at, updated_at`
	courseColumns     = `id, department_id, code, title, description, level, duration_years, credits, is_published, created_at, updated_at`
)

var (
	facultyOrdering    = map[string]string{"name": "name", "code": "code", "created_at": "created_at"}
	departmentOrdering = map[string]string{"name": "name", "code": "code", "created_at": "created_at"}
	courseOrdering     = map[string]string{
		"code":           "code",
		"title":          "title",
		"level":          "level",
		"duration_years": "duration_years",
		"created_at":     "created_at",
	}
)

type facultyRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Code        string    `db:"code"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r facultyRow) faculty() academics.Faculty {
	return academics.Faculty{
		ID:          r.ID,
		Name:        r.Name,
		Code:        r.Code,
		Description: r.Description,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type departmentRow struct {
	ID          string    `db:"id"`
	FacultyID   string    `db:"faculty_id"`
	Name        string    `db:"name"`
	Code        string    `db:"code"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r departmentRow) department() academics.Department {
	return academics.Department{
		ID:          r.ID,
		FacultyID:   r.FacultyID,
		Name:        r.Name,
		Code:        r.Code,
		Description: r.Description,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type courseRow struct {
	ID            string    `db:"id"`
	DepartmentID  string    `db:"department_id"`
	Code          string    `db:"code"`
	Title         string    `db:"title"`
	Description   string    `db:"description"`
	Level         string    `db:"level"`
	DurationYears int       `db:"duration_years"`
	Credits       int       `db:"credits"`
	IsPublished   bool      `db:"is_published"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func toCourseRow(crs academics.Course) courseRow {
	return courseRow{
		ID:            crs.ID,
		DepartmentID:  crs.DepartmentID,
		Code:          crs.Code,
		Title:         crs.Title,
		Description:   crs.Description,
		Level:         crs.Level,
		DurationYears: crs.DurationYears,
		Credits:       crs.Credits,
		IsPublished:   crs.IsPublished,
		CreatedAt:     crs.CreatedAt.UTC(),
		UpdatedAt:     crs.UpdatedAt.UTC(),
	}
}

func (r courseRow) course() academics.Course {
	return academics.Course{
		ID:            r.ID,
		DepartmentID:  r.DepartmentID,
		Code:          r.Code,
		Title:         r.Title,
		Description:   r.Description,
		Level:         r.Level,
		DurationYears: r.DurationYears,
		Credits:       r.Credits,
		IsPublished:   r.IsPublished,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

type academicsRepository struct {
	db *sqlx.DB
}

var _ academics.Repository = (*academicsRepository)(nil)

func NewAcademicsRepository(db *sqlx.DB) *academicsRepository {
	return &academicsRepository{db: db}
}

func (repo academicsRepository) trapCodeErr(err error, constraint, msg string) error {
	if isUniqueViolation(err, constraint) {
		return academics.ErrCodeExists
	}
	return errors.Wrap(err, msg)
}

// Faculties

func (repo academicsRepository) CreateFaculty(ctx context.Context, fac academics.Faculty) (academics.Faculty, error) {
	fac.ID = uuid.New().String()
	q := `INSERT INTO faculty (` + facultyColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := repo.db.ExecContext(ctx, q, fac.ID, fac.Name, fac.Code, fac.Description, fac.CreatedAt.UTC(), fac.UpdatedAt.UTC()); err != nil {
		return academics.Faculty{}, repo.trapCodeErr(err, "faculty_code_key", "inserting faculty")
	}
	return fac, nil
}

func (repo academicsRepository) QueryFaculties(ctx context.Context, filter *academics.FacultyFilter, ordering []core.DBOrdering) ([]academics.Faculty, error) {
	var where whereClause
	if filter != nil && filter.Search != "" {
		val := contains(filter.Search)
		where.add("(name ILIKE ? OR code ILIKE ?)", val, val)
	}
	q := `SELECT ` + facultyColumns + ` FROM faculty` + where.String() +
		` ORDER BY ` + core.OrderBy(ordering, facultyOrdering, "name ASC")

	var rows []facultyRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying faculties")
	}
	faculties := make([]academics.Faculty, 0, len(rows))
	for _, r := range rows {
		faculties = append(faculties, r.faculty())
	}
	return faculties, nil
}

func (repo academicsRepository) GetFaculty(ctx context.Context, id string) (academics.Faculty, error) {
	if !validUUID(id) {
		return academics.Faculty{}, academics.ErrFacultyNotFound
	}
	var row facultyRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+facultyColumns+` FROM faculty WHERE id = $1`, id); err != nil {
		return academics.Faculty{}, trapNoRowsErr(err, academics.ErrFacultyNotFound, "finding faculty")
	}
	return row.faculty(), nil
}

func (repo academicsRepository) UpdateFaculty(ctx context.Context, fac academics.Faculty) (academics.Faculty, error) {
	q := `UPDATE faculty SET name = $2, code = $3, description = $4, updated_at = $5 WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, q, fac.ID, fac.Name, fac.Code, fac.Description, fac.UpdatedAt.UTC())
	if err != nil {
		return academics.Faculty{}, repo.trapCodeErr(err, "faculty_code_key", "updating faculty")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return academics.Faculty{}, academics.ErrFacultyNotFound
	}
	return fac, nil
}

func (repo academicsRepository) DeleteFaculty(ctx context.Context, id string) error {
	if !validUUID(id) {
		return nil
	}
	_, err := repo.db.ExecContext(ctx, `DELETE FROM faculty WHERE id = $1`, id)
	return errors.Wrap(err, "deleting faculty")
}

func (repo academicsRepository) CountDepartments(ctx context.Context, facultyID string) (int, error) {
	var n int
	err := repo.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM department WHERE faculty_id = $1`, facultyID)
	return n, errors.Wrap(err, "counting departments")
}

// Departments

func (repo academicsRepository) CreateDepartment(ctx context.Context, dept academics.Department) (academics.Department, error) {
	dept.ID = uuid.New().String()
	q := `INSERT INTO department (` + departmentColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := repo.db.ExecContext(ctx, q,
		dept.ID, dept.FacultyID, dept.Name, dept.Code, dept.Description, dept.CreatedAt.UTC(), dept.UpdatedAt.UTC())
	if err != nil {
		return academics.Department{}, repo.trapCodeErr(err, "department_code_key", "inserting department")
	}
	return dept, nil
}

func (repo academicsRepository) QueryDepartments(ctx context.Context, filter *academics.DepartmentFilter, ordering []core.DBOrdering) ([]academics.Department, error) {
	var where whereClause
	if filter != nil {
		if filter.Search != "" {
			val := contains(filter.Search)
			where.add("(name ILIKE ? OR code ILIKE ?)", val, val)
		}
		if filter.FacultyID != "" {
			if !validUUID(filter.FacultyID) {
				return []academics.Department{}, nil
			}
			where.add("faculty_id = ?", filter.FacultyID)
		}
	}
	q := `SELECT ` + departmentColumns + ` FROM department` + where.String() +
		` ORDER BY ` + core.OrderBy(ordering, departmentOrdering, "name ASC")

	var rows []departmentRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying departments")
	}
	departments := make([]academics.Department, 0, len(rows))
	for _, r := range rows {
		departments = append(departments, r.department())
	}
	return departments, nil
}

func (repo academicsRepository) GetDepartment(ctx context.Context, id string) (academics.Department, error) {
	if !validUUID(id) {
		return academics.Department{}, academics.ErrDepartmentNotFound
	}
	var row departmentRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+departmentColumns+` FROM department WHERE id = $1`, id); err != nil {
		return academics.Department{}, trapNoRowsErr(err, academics.ErrDepartmentNotFound, "finding department")
	}
	return row.department(), nil
}

func (repo academicsRepository) GetDepartmentByCode(ctx context.Context, code string) (academics.Department, error) {
	var row departmentRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+departmentColumns+` FROM department WHERE code = $1`, code); err != nil {
		return academics.Department{}, trapNoRowsErr(err, academics.ErrDepartmentNotFound, "finding department by code")
	}
	return row.department(), nil
}

func (repo academicsRepository) UpdateDepartment(ctx context.Context, dept academics.Department) (academics.Department, error) {
	q := `UPDATE department SET faculty_id = $2, name = $3, code = $4, description = $5, updated_at = $6 WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, q, dept.ID, dept.FacultyID, dept.Name, dept.Code, dept.Description, dept.UpdatedAt.UTC())
	if err != nil {
		return academics.Department{}, repo.trapCodeErr(err, "department_code_key", "updating department")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return academics.Department{}, academics.ErrDepartmentNotFound
	}
	return dept, nil
}

func (repo academicsRepository) DeleteDepartment(ctx context.Context, id string) error {
	if !validUUID(id) {
		return nil
	}
	_, err := repo.db.ExecContext(ctx, `DELETE FROM department WHERE id = $1`, id)
	return errors.Wrap(err, "deleting department")
}

func (repo academicsRepository) CountCourses(ctx context.Context, departmentID string) (int, error) {
	var n int
	err := repo.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM course WHERE department_id = $1`, departmentID)
	return n, errors.Wrap(err, "counting courses")
}

// Courses

func (repo academicsRepository) insertCourse(ctx context.Context, exec sqlx.ExtContext, crs academics.Course) (academics.Course, error) {
	crs.ID = uuid.New().String()
	q := `INSERT INTO course (` + courseColumns + `)
		VALUES (:id, :department_id, :code, :title, :description, :level, :duration_years, :credits, :is_published,
			:created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, q, toCourseRow(crs)); err != nil {
		return academics.Course{}, repo.trapCodeErr(err, "course_code_key", "inserting course")
	}
	return crs, nil
}

func (repo academicsRepository) CreateCourse(ctx context.Context, crs academics.Course) (academics.Course, error) {
	return repo.insertCourse(ctx, repo.db, crs)
}

func (repo academicsRepository) CreateCourses(ctx context.Context, courses []academics.Course) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		for _, crs := range courses {
			if _, err := repo.insertCourse(ctx, tx, crs); err != nil {
				return errors.Wrap(err, crs.Code)
			}
		}
		return nil
	})
}

func (repo academicsRepository) QueryCourses(ctx context.Context, filter *academics.CourseFilter, ordering []core.DBOrdering) ([]academics.Course, error) {
	var where whereClause
	if filter != nil {
		if filter.Search != "" {
			val := contains(filter.Search)
			where.add("(code ILIKE ? OR title ILIKE ?)", val, val)
		}
		if filter.DepartmentID != "" {
			if !validUUID(filter.DepartmentID) {
				return []academics.Course{}, nil
			}
			where.add("department_id = ?", filter.DepartmentID)
		}
		if filter.FacultyID != "" {
			if !validUUID(filter.FacultyID) {
				return []academics.Course{}, nil
			}
			where.add("department_id IN (SELECT id FROM department WHERE faculty_id = ?)", filter.FacultyID)
		}
		if filter.Level != "" {
			where.add("level = ?", filter.Level)
		}
		if filter.Published != nil {
			where.add("is_published = ?", *filter.Published)
		}
	}
	q := `SELECT ` + courseColumns + ` FROM course` + where.String() +
		` ORDER BY ` + core.OrderBy(ordering, courseOrdering, "title ASC")

	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]academics.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.course())
	}
	return courses, nil
}

func (repo academicsRepository) GetCourse(ctx context.Context, id string) (academics.Course, error) {
	if !validUUID(id) {
		return academics.Course{}, academics.ErrCourseNotFound
	}
	var row courseRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+courseColumns+` FROM course WHERE id = $1`, id); err != nil {
		return academics.Course{}, trapNoRowsErr(err, academics.ErrCourseNotFound, "finding course")
	}
	return row.course(), nil
}

func (repo academicsRepository) UpdateCourse(ctx context.Context, crs academics.Course) (academics.Course, error) {
	q := `UPDATE course SET department_id = :department_id, code = :code, title = :title, description = :description,
		level = :level, duration_years = :duration_years, credits = :credits, is_published = :is_published,
		updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toCourseRow(crs))
	if err != nil {
		return academics.Course{}, repo.trapCodeErr(err, "course_code_key", "updating course")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return academics.Course{}, academics.ErrCourseNotFound
	}
	return crs, nil
}

func (repo academicsRepository) SetCourseDescription(ctx context.Context, id, description string) error {
	if !validUUID(id) {
		return academics.ErrCourseNotFound
	}
	res, err := repo.db.ExecContext(ctx,
		`UPDATE course SET description = $2, updated_at = $3 WHERE id = $1`, id, description, core.Now())
	if err != nil {
		return errors.Wrap(err, "setting course description")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return academics.ErrCourseNotFound
	}
	return nil
}

func (repo academicsRepository) DeleteCourse(ctx context.Context, id string) error {
	if !validUUID(id) {
		return nil
	}
	_, err := repo.db.ExecContext(ctx, `DELETE FROM course WHERE id = $1`, id)
	return errors.Wrap(err, "deleting course")
}
