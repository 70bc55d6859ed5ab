package academics

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/chuo/core"
)

var (
	// errors
	ErrFacultyNotFound    = core.NewNotFoundError("faculty not found")
	ErrDepartmentNotFound = core.NewNotFoundError("department not found")
	ErrCourseNotFound     = core.NewNotFoundError("course not found")
	ErrCodeExists         = errors.New("this code is already in use")

	errFacultyHasDepartments = "this faculty still has departments"
	errDepartmentHasCourses  = "this department still has courses"
)

type (
	Repository interface {
		// CreateFaculty returns ErrCodeExists when the code is taken. Same goes for departments and courses.
		CreateFaculty(ctx context.Context, fac Faculty) (Faculty, error)
		QueryFaculties(ctx context.Context, filter *FacultyFilter, ordering []core.DBOrdering) ([]Faculty, error)
		GetFaculty(ctx context.Context, id string) (Faculty, error)
		UpdateFaculty(ctx context.Context, fac Faculty) (Faculty, error)
		DeleteFaculty(ctx context.Context, id string) error
		CountDepartments(ctx context.Context, facultyID string) (int, error)

		CreateDepartment(ctx context.Context, dept Department) (Department, error)
		QueryDepartments(ctx context.Context, filter *DepartmentFilter, ordering []core.DBOrdering) ([]Department, error)
		GetDepartment(ctx context.Context, id string) (Department, error)
		GetDepartmentByCode(ctx context.Context, code string) (Department, error)
		UpdateDepartment(ctx context.Context, dept Department) (Department, error)
		DeleteDepartment(ctx context.Context, id string) error
		CountCourses(ctx context.Context, departmentID string) (int, error)

		CreateCourse(ctx context.Context, crs Course) (Course, error)
		// CreateCourses inserts all courses or none.
		CreateCourses(ctx context.Context, courses []Course) error
		// QueryCourses applies AND operation on available CourseFilter fields.
		// CourseFilter.Search does a case-insensitive match on one of Course.Code or Course.Title.
		QueryCourses(ctx context.Context, filter *CourseFilter, ordering []core.DBOrdering) ([]Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		UpdateCourse(ctx context.Context, crs Course) (Course, error)
		SetCourseDescription(ctx context.Context, id, description string) error
		DeleteCourse(ctx context.Context, id string) error
	}

	ServiceInterface interface {
		CreateFaculty(nf NewFaculty) (Faculty, error)
		QueryFaculties(filter *FacultyFilter, ordering []core.DBOrdering) ([]Faculty, error)
		GetFaculty(id string) (Faculty, error)
		UpdateFaculty(id string, nf NewFaculty) (Faculty, error)
		DeleteFaculty(id string) error

		CreateDepartment(nd NewDepartment) (Department, error)
		QueryDepartments(filter *DepartmentFilter, ordering []core.DBOrdering) ([]Department, error)
		GetDepartment(id string) (Department, error)
		GetDepartmentByCode(code string) (Department, error)
		UpdateDepartment(id string, nd NewDepartment) (Department, error)
		DeleteDepartment(id string) error

		CreateCourse(nc NewCourse) (Course, error)
		CreateCourses(ncs []NewCourse) error
		QueryCourses(filter *CourseFilter, ordering []core.DBOrdering) ([]Course, error)
		GetCourse(id string) (Course, error)
		UpdateCourse(id string, nc NewCourse) (Course, error)
		SetCourseDescription(id, description string) error
		CoursesWithoutDescription() ([]Course, error)
		DeleteCourse(id string) error
	}

	Service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// codeError maps ErrCodeExists to a validation error on the "code" field.
func codeError(err error, msg string) error {
	if errors.Cause(err) == ErrCodeExists {
		return core.NewValidationError(err, core.FieldError{Field: "code", Error: ErrCodeExists.Error()})
	}
	return errors.Wrap(err, msg)
}

// Faculties

func (svc *Service) CreateFaculty(nf NewFaculty) (Faculty, error) {
	now := core.Now()
	fac, err := svc.repo.CreateFaculty(context.Background(), Faculty{
		Name:        nf.Name,
		Code:        nf.Code,
		Description: nf.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Faculty{}, codeError(err, "creating faculty")
	}
	return fac, nil
}

func (svc *Service) QueryFaculties(filter *FacultyFilter, ordering []core.DBOrdering) ([]Faculty, error) {
	return svc.repo.QueryFaculties(context.Background(), filter, ordering)
}

func (svc *Service) GetFaculty(id string) (Faculty, error) {
	return svc.repo.GetFaculty(context.Background(), id)
}

func (svc *Service) UpdateFaculty(id string, nf NewFaculty) (Faculty, error) {
	ctx := context.Background()
	fac, err := svc.repo.GetFaculty(ctx, id)
	if err != nil {
		return Faculty{}, err
	}
	fac.Name = nf.Name
	fac.Code = nf.Code
	fac.Description = nf.Description
	fac.UpdatedAt = core.Now()

	if fac, err = svc.repo.UpdateFaculty(ctx, fac); err != nil {
		return Faculty{}, codeError(err, "updating faculty")
	}
	return fac, nil
}

func (svc *Service) DeleteFaculty(id string) error {
	ctx := context.Background()
	if _, err := svc.repo.GetFaculty(ctx, id); err != nil {
		return err
	}
	cnt, err := svc.repo.CountDepartments(ctx, id)
	if err != nil {
		return errors.Wrap(err, "counting departments")
	}
	if cnt > 0 {
		return core.NewValidationError(errors.New(errFacultyHasDepartments))
	}
	return svc.repo.DeleteFaculty(ctx, id)
}

// Departments

func (svc *Service) CreateDepartment(nd NewDepartment) (Department, error) {
	ctx := context.Background()
	if err := svc.checkFaculty(ctx, nd.FacultyID); err != nil {
		return Department{}, err
	}

	now := core.Now()
	dept, err := svc.repo.CreateDepartment(ctx, Department{
		FacultyID:   nd.FacultyID,
		Name:        nd.Name,
		Code:        nd.Code,
		Description: nd.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Department{}, codeError(err, "creating department")
	}
	return dept, nil
}

func (svc *Service) QueryDepartments(filter *DepartmentFilter, ordering []core.DBOrdering) ([]Department, error) {
	return svc.repo.QueryDepartments(context.Background(), filter, ordering)
}

func (svc *Service) GetDepartment(id string) (Department, error) {
	return svc.repo.GetDepartment(context.Background(), id)
}

func (svc *Service) GetDepartmentByCode(code string) (Department, error) {
	return svc.repo.GetDepartmentByCode(context.Background(), core.CleanCode(code))
}

func (svc *Service) UpdateDepartment(id string, nd NewDepartment) (Department, error) {
	ctx := context.Background()
	dept, err := svc.repo.GetDepartment(ctx, id)
	if err != nil {
		return Department{}, err
	}
	if nd.FacultyID != dept.FacultyID {
		if err := svc.checkFaculty(ctx, nd.FacultyID); err != nil {
			return Department{}, err
		}
	}
	dept.FacultyID = nd.FacultyID
	dept.Name = nd.Name
	dept.Code = nd.Code
	dept.Description = nd.Description
	dept.UpdatedAt = core.Now()

	if dept, err = svc.repo.UpdateDepartment(ctx, dept); err != nil {
		return Department{}, codeError(err, "updating department")
	}
	return dept, nil
}

func (svc *Service) DeleteDepartment(id string) error {
	ctx := context.Background()
	if _, err := svc.repo.GetDepartment(ctx, id); err != nil {
		return err
	}
	cnt, err := svc.repo.CountCourses(ctx, id)
	if err != nil {
		return errors.Wrap(err, "counting courses")
	}
	if cnt > 0 {
		return core.NewValidationError(errors.New(errDepartmentHasCourses))
	}
	return svc.repo.DeleteDepartment(ctx, id)
}

func (svc *Service) checkFaculty(ctx context.Context, id string) error {
	if _, err := svc.repo.GetFaculty(ctx, id); err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(err, core.FieldError{Field: "faculty_id", Error: err.Error()})
		}
		return errors.Wrap(err, "finding faculty")
	}
	return nil
}

// Courses

func (svc *Service) newCourse(nc NewCourse, now time.Time) Course {
	return Course{
		DepartmentID:  nc.DepartmentID,
		Code:          nc.Code,
		Title:         nc.Title,
		Description:   nc.Description,
		Level:         nc.Level,
		DurationYears: nc.DurationYears,
		Credits:       nc.Credits,
		IsPublished:   nc.IsPublished,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (svc *Service) CreateCourse(nc NewCourse) (Course, error) {
	ctx := context.Background()
	if err := svc.checkDepartment(ctx, nc.DepartmentID); err != nil {
		return Course{}, err
	}

	crs, err := svc.repo.CreateCourse(ctx, svc.newCourse(nc, core.Now()))
	if err != nil {
		return Course{}, codeError(err, "creating course")
	}
	return crs, nil
}

// CreateCourses inserts already validated courses in a single transaction.
func (svc *Service) CreateCourses(ncs []NewCourse) error {
	now := core.Now()
	courses := make([]Course, 0, len(ncs))
	for _, nc := range ncs {
		courses = append(courses, svc.newCourse(nc, now))
	}
	if err := svc.repo.CreateCourses(context.Background(), courses); err != nil {
		return codeError(err, "creating courses")
	}
	return nil
}

func (svc *Service) QueryCourses(filter *CourseFilter, ordering []core.DBOrdering) ([]Course, error) {
	return svc.repo.QueryCourses(context.Background(), filter, ordering)
}

func (svc *Service) GetCourse(id string) (Course, error) {
	return svc.repo.GetCourse(context.Background(), id)
}

func (svc *Service) UpdateCourse(id string, nc NewCourse) (Course, error) {
	ctx := context.Background()
	crs, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if nc.DepartmentID != crs.DepartmentID {
		if err := svc.checkDepartment(ctx, nc.DepartmentID); err != nil {
			return Course{}, err
		}
	}
	crs.DepartmentID = nc.DepartmentID
	crs.Code = nc.Code
	crs.Title = nc.Title
	crs.Description = nc.Description
	crs.Level = nc.Level
	crs.DurationYears = nc.DurationYears
	crs.Credits = nc.Credits
	crs.IsPublished = nc.IsPublished
	crs.UpdatedAt = core.Now()

	if crs, err = svc.repo.UpdateCourse(ctx, crs); err != nil {
		return Course{}, codeError(err, "updating course")
	}
	return crs, nil
}

func (svc *Service) SetCourseDescription(id, description string) error {
	return svc.repo.SetCourseDescription(context.Background(), id, core.CleanString(description))
}

// CoursesWithoutDescription returns the courses whose description is still empty.
func (svc *Service) CoursesWithoutDescription() ([]Course, error) {
	courses, err := svc.repo.QueryCourses(context.Background(), nil, []core.DBOrdering{{Field: "created_at", Ascending: true}})
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	res := make([]Course, 0, len(courses))
	for _, crs := range courses {
		if crs.Description == "" {
			res = append(res, crs)
		}
	}
	return res, nil
}

func (svc *Service) DeleteCourse(id string) error {
	ctx := context.Background()
	if _, err := svc.repo.GetCourse(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteCourse(ctx, id)
}

func (svc *Service) checkDepartment(ctx context.Context, id string) error {
	if _, err := svc.repo.GetDepartment(ctx, id); err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(err, core.FieldError{Field: "department_id", Error: err.Error()})
		}
		return errors.Wrap(err, "finding department")
	}
	return nil
}
