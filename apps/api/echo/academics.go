package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/chuo/core/academics"
	"github.com/trezcool/chuo/core/user"
)

type academicsApi struct {
	svc      academics.ServiceInterface
	validate *validator.Validate
}

func registerAcademicsAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	optJWT echo.MiddlewareFunc,
	svc academics.ServiceInterface,
	validate *validator.Validate,
) {
	api := academicsApi{svc: svc, validate: validate}
	writer := adminMiddleware(user.RoleAdminAcademics)

	fg := g.Group("/faculties")
	fg.GET("", api.queryFaculties)
	fg.GET("/:id", api.retrieveFaculty)
	fg.POST("", api.createFaculty, jwt, writer)
	fg.PUT("/:id", api.updateFaculty, jwt, writer)
	fg.DELETE("/:id", api.destroyFaculty, jwt, writer)

	dg := g.Group("/departments")
	dg.GET("", api.queryDepartments)
	dg.GET("/:id", api.retrieveDepartment)
	dg.POST("", api.createDepartment, jwt, writer)
	dg.PUT("/:id", api.updateDepartment, jwt, writer)
	dg.DELETE("/:id", api.destroyDepartment, jwt, writer)

	// anonymous callers only see published courses
	cg := g.Group("/courses")
	cg.GET("", api.queryCourses, optJWT)
	cg.GET("/:id", api.retrieveCourse, optJWT)
	cg.POST("", api.createCourse, jwt, writer)
	cg.PUT("/:id", api.updateCourse, jwt, writer)
	cg.DELETE("/:id", api.destroyCourse, jwt, writer)
}

func canManageCourses(ctx echo.Context) bool {
	return contextHasAnyRole(ctx, []string{user.RoleAdminAcademics})
}

// Faculties

func (api *academicsApi) createFaculty(ctx echo.Context) error {
	var data academics.NewFaculty
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFaculty")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	fac, err := api.svc.CreateFaculty(data)
	if err != nil {
		return errors.Wrap(err, "creating faculty")
	}
	return ctx.JSON(http.StatusCreated, fac)
}

func (api *academicsApi) queryFaculties(ctx echo.Context) error {
	filter := new(academics.FacultyFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []academics.Faculty{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	faculties, err := api.svc.QueryFaculties(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying faculties")
	}
	return ctx.JSON(http.StatusOK, listOrEmpty(faculties))
}

func (api *academicsApi) retrieveFaculty(ctx echo.Context) error {
	fac, err := api.svc.GetFaculty(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting faculty")
	}
	return ctx.JSON(http.StatusOK, fac)
}

func (api *academicsApi) updateFaculty(ctx echo.Context) error {
	var data academics.NewFaculty
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFaculty")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	fac, err := api.svc.UpdateFaculty(ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating faculty")
	}
	return ctx.JSON(http.StatusOK, fac)
}

func (api *academicsApi) destroyFaculty(ctx echo.Context) error {
	if err := api.svc.DeleteFaculty(ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting faculty")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Departments

func (api *academicsApi) createDepartment(ctx echo.Context) error {
	var data academics.NewDepartment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDepartment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	dept, err := api.svc.CreateDepartment(data)
	if err != nil {
		return errors.Wrap(err, "creating department")
	}
	return ctx.JSON(http.StatusCreated, dept)
}

func (api *academicsApi) queryDepartments(ctx echo.Context) error {
	filter := new(academics.DepartmentFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []academics.Department{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	depts, err := api.svc.QueryDepartments(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying departments")
	}
	return ctx.JSON(http.StatusOK, listOrEmpty(depts))
}

func (api *academicsApi) retrieveDepartment(ctx echo.Context) error {
	dept, err := api.svc.GetDepartment(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting department")
	}
	return ctx.JSON(http.StatusOK, dept)
}

func (api *academicsApi) updateDepartment(ctx echo.Context) error {
	var data academics.NewDepartment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDepartment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	dept, err := api.svc.UpdateDepartment(ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating department")
	}
	return ctx.JSON(http.StatusOK, dept)
}

func (api *academicsApi) destroyDepartment(ctx echo.Context) error {
	if err := api.svc.DeleteDepartment(ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting department")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Courses

func (api *academicsApi) createCourse(ctx echo.Context) error {
	var data academics.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	course, err := api.svc.CreateCourse(data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, course)
}

func (api *academicsApi) queryCourses(ctx echo.Context) error {
	filter := new(academics.CourseFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []academics.Course{})
	}
	filter.Clean()
	if !canManageCourses(ctx) {
		published := true
		filter.Published = &published
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	courses, err := api.svc.QueryCourses(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, listOrEmpty(courses))
}

func (api *academicsApi) retrieveCourse(ctx echo.Context) error {
	course, err := api.svc.GetCourse(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	if !course.IsPublished && !canManageCourses(ctx) {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, course)
}

func (api *academicsApi) updateCourse(ctx echo.Context) error {
	var data academics.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	course, err := api.svc.UpdateCourse(ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, course)
}

func (api *academicsApi) destroyCourse(ctx echo.Context) error {
	if err := api.svc.DeleteCourse(ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}
