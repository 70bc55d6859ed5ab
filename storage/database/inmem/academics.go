package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/academics"
)

var (
	facultyFields = map[string]field[academics.Faculty]{
		"name":       func(f academics.Faculty) interface{} { return f.Name },
		"code":       func(f academics.Faculty) interface{} { return f.Code },
		"created_at": func(f academics.Faculty) interface{} { return f.CreatedAt },
	}
	departmentFields = map[string]field[academics.Department]{
		"name":       func(d academics.Department) interface{} { return d.Name },
		"code":       func(d academics.Department) interface{} { return d.Code },
		"created_at": func(d academics.Department) interface{} { return d.CreatedAt },
	}
	courseFields = map[string]field[academics.Course]{
		"code":           func(c academics.Course) interface{} { return c.Code },
		"title":          func(c academics.Course) interface{} { return c.Title },
		"level":          func(c academics.Course) interface{} { return c.Level },
		"duration_years": func(c academics.Course) interface{} { return c.DurationYears },
		"created_at":     func(c academics.Course) interface{} { return c.CreatedAt },
	}
)

type academicsRepository struct {
	db *DB
}

var _ academics.Repository = (*academicsRepository)(nil)

func NewAcademicsRepository(db *DB) *academicsRepository {
	return &academicsRepository{db: db}
}

// Faculties

func (repo *academicsRepository) facultyCodeTaken(code, exceptID string) bool {
	for _, f := range repo.db.faculties {
		if f.Code == code && f.ID != exceptID {
			return true
		}
	}
	return false
}

func (repo *academicsRepository) CreateFaculty(_ context.Context, fac academics.Faculty) (academics.Faculty, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.facultyCodeTaken(fac.Code, "") {
		return academics.Faculty{}, academics.ErrCodeExists
	}
	fac.ID = uuid.New().String()
	repo.db.faculties[fac.ID] = fac
	return fac, nil
}

func (repo *academicsRepository) QueryFaculties(_ context.Context, filter *academics.FacultyFilter, ordering []core.DBOrdering) ([]academics.Faculty, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	faculties := make([]academics.Faculty, 0, len(repo.db.faculties))
	for _, f := range repo.db.faculties {
		if filter != nil && filter.Search != "" && !containsFold(filter.Search, f.Name, f.Code) {
			continue
		}
		faculties = append(faculties, f)
	}
	sortRows(faculties, ordering, facultyFields, core.DBOrdering{Field: "name", Ascending: true})
	return faculties, nil
}

func (repo *academicsRepository) GetFaculty(_ context.Context, id string) (academics.Faculty, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if fac, ok := repo.db.faculties[id]; ok {
		return fac, nil
	}
	return academics.Faculty{}, academics.ErrFacultyNotFound
}

func (repo *academicsRepository) UpdateFaculty(_ context.Context, fac academics.Faculty) (academics.Faculty, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.faculties[fac.ID]; !ok {
		return academics.Faculty{}, academics.ErrFacultyNotFound
	}
	if repo.facultyCodeTaken(fac.Code, fac.ID) {
		return academics.Faculty{}, academics.ErrCodeExists
	}
	repo.db.faculties[fac.ID] = fac
	return fac, nil
}

func (repo *academicsRepository) DeleteFaculty(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.faculties, id)
	return nil
}

func (repo *academicsRepository) CountDepartments(_ context.Context, facultyID string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var n int
	for _, d := range repo.db.departments {
		if d.FacultyID == facultyID {
			n++
		}
	}
	return n, nil
}

// Departments

func (repo *academicsRepository) departmentCodeTaken(code, exceptID string) bool {
	for _, d := range repo.db.departments {
		if d.Code == code && d.ID != exceptID {
			return true
		}
	}
	return false
}

func (repo *academicsRepository) CreateDepartment(_ context.Context, dept academics.Department) (academics.Department, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.departmentCodeTaken(dept.Code, "") {
		return academics.Department{}, academics.ErrCodeExists
	}
	dept.ID = uuid.New().String()
	repo.db.departments[dept.ID] = dept
	return dept, nil
}

func (repo *academicsRepository) QueryDepartments(_ context.Context, filter *academics.DepartmentFilter, ordering []core.DBOrdering) ([]academics.Department, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	departments := make([]academics.Department, 0, len(repo.db.departments))
	for _, d := range repo.db.departments {
		if filter != nil {
			if filter.Search != "" && !containsFold(filter.Search, d.Name, d.Code) {
				continue
			}
			if filter.FacultyID != "" && d.FacultyID != filter.FacultyID {
				continue
			}
		}
		departments = append(departments, d)
	}
	sortRows(departments, ordering, departmentFields, core.DBOrdering{Field: "name", Ascending: true})
	return departments, nil
}

func (repo *academicsRepository) GetDepartment(_ context.Context, id string) (academics.Department, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if dept, ok := repo.db.departments[id]; ok {
		return dept, nil
	}
	return academics.Department{}, academics.ErrDepartmentNotFound
}

func (repo *academicsRepository) GetDepartmentByCode(_ context.Context, code string) (academics.Department, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, d := range repo.db.departments {
		if d.Code == code {
			return d, nil
		}
	}
	return academics.Department{}, academics.ErrDepartmentNotFound
}

func (repo *academicsRepository) UpdateDepartment(_ context.Context, dept academics.Department) (academics.Department, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.departments[dept.ID]; !ok {
		return academics.Department{}, academics.ErrDepartmentNotFound
	}
	if repo.departmentCodeTaken(dept.Code, dept.ID) {
		return academics.Department{}, academics.ErrCodeExists
	}
	repo.db.departments[dept.ID] = dept
	return dept, nil
}

func (repo *academicsRepository) DeleteDepartment(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.departments, id)
	return nil
}

func (repo *academicsRepository) CountCourses(_ context.Context, departmentID string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var n int
	for _, c := range repo.db.courses {
		if c.DepartmentID == departmentID {
			n++
		}
	}
	return n, nil
}

// Courses

func (repo *academicsRepository) courseCodeTaken(code, exceptID string) bool {
	for _, c := range repo.db.courses {
		if c.Code == code && c.ID != exceptID {
			return true
		}
	}
	return false
}

func (repo *academicsRepository) insertCourse(crs academics.Course) (academics.Course, error) {
	if repo.courseCodeTaken(crs.Code, "") {
		return academics.Course{}, academics.ErrCodeExists
	}
	crs.ID = uuid.New().String()
	repo.db.courses[crs.ID] = crs
	return crs, nil
}

func (repo *academicsRepository) CreateCourse(_ context.Context, crs academics.Course) (academics.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	return repo.insertCourse(crs)
}

func (repo *academicsRepository) CreateCourses(_ context.Context, courses []academics.Course) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	var created []string
	for _, crs := range courses {
		crs, err := repo.insertCourse(crs)
		if err != nil {
			for _, id := range created {
				delete(repo.db.courses, id)
			}
			return err
		}
		created = append(created, crs.ID)
	}
	return nil
}

func (repo *academicsRepository) QueryCourses(_ context.Context, filter *academics.CourseFilter, ordering []core.DBOrdering) ([]academics.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	courses := make([]academics.Course, 0, len(repo.db.courses))
	for _, c := range repo.db.courses {
		if filter != nil {
			if filter.Search != "" && !containsFold(filter.Search, c.Code, c.Title) {
				continue
			}
			if filter.DepartmentID != "" && c.DepartmentID != filter.DepartmentID {
				continue
			}
			if filter.FacultyID != "" && repo.db.departments[c.DepartmentID].FacultyID != filter.FacultyID {
				continue
			}
			if filter.Level != "" && c.Level != filter.Level {
				continue
			}
			if filter.Published != nil && c.IsPublished != *filter.Published {
				continue
			}
		}
		courses = append(courses, c)
	}
	sortRows(courses, ordering, courseFields, core.DBOrdering{Field: "title", Ascending: true})
	return courses, nil
}

func (repo *academicsRepository) GetCourse(_ context.Context, id string) (academics.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return crs, nil
	}
	return academics.Course{}, academics.ErrCourseNotFound
}

func (repo *academicsRepository) UpdateCourse(_ context.Context, crs academics.Course) (academics.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.courses[crs.ID]; !ok {
		return academics.Course{}, academics.ErrCourseNotFound
	}
	if repo.courseCodeTaken(crs.Code, crs.ID) {
		return academics.Course{}, academics.ErrCodeExists
	}
	repo.db.courses[crs.ID] = crs
	return crs, nil
}

func (repo *academicsRepository) SetCourseDescription(_ context.Context, id, description string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	crs, ok := repo.db.courses[id]
	if !ok {
		return academics.ErrCourseNotFound
	}
	crs.Description = description
	crs.UpdatedAt = core.Now()
	repo.db.courses[id] = crs
	return nil
}

// DeleteCourse also deletes the course materials.
func (repo *academicsRepository) DeleteCourse(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.courses, id)
	for matID, mat := range repo.db.materials {
		if mat.CourseID == id {
			delete(repo.db.materials, matID)
		}
	}
	return nil
}
