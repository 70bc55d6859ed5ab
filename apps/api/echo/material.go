package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/chuo/core/material"
	"github.com/trezcool/chuo/core/user"
)

type materialApi struct {
	svc      material.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerMaterialAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc material.ServiceInterface,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := materialApi{svc: svc, usrSvc: usrSvc, validate: validate}
	writer := roleMiddleware(user.RoleAdminAcademics, user.RoleLecturer)

	mg := g.Group("/materials", jwt)
	mg.GET("", api.query)
	mg.GET("/:id", api.retrieve)
	mg.GET("/:id/download", api.download)
	mg.POST("", api.upload, writer)
	mg.PUT("/:id", api.update, writer, api.ownerMiddleware)
	mg.DELETE("/:id", api.destroy, writer, api.ownerMiddleware)
}

// ownerMiddleware lets lecturers change their own uploads only.
func (api *materialApi) ownerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if contextHasAnyRole(ctx, []string{user.RoleAdminAcademics}) {
			return next(ctx)
		}
		ctxUsr, err := getContextUser(ctx, api.usrSvc)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		mat, err := api.svc.Get(ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "getting material")
		}
		if mat.UploadedBy != ctxUsr.ID {
			return errHttpForbidden
		}
		return next(ctx)
	}
}

func (api *materialApi) upload(ctx echo.Context) error {
	var data material.NewMaterial
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMaterial")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	upload, file, err := bindFile(ctx, "file")
	if err != nil {
		return err
	}
	defer file.Close()

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	mat, err := api.svc.Upload(data, upload, ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "uploading material")
	}
	return ctx.JSON(http.StatusCreated, mat)
}

func (api *materialApi) query(ctx echo.Context) error {
	filter := new(material.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []material.Material{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	materials, err := api.svc.Query(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying materials")
	}
	return ctx.JSON(http.StatusOK, listOrEmpty(materials))
}

func (api *materialApi) retrieve(ctx echo.Context) error {
	mat, err := api.svc.Get(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting material")
	}
	return ctx.JSON(http.StatusOK, mat)
}

func (api *materialApi) download(ctx echo.Context) error {
	mat, r, err := api.svc.Open(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "opening material")
	}
	return sendFile(ctx, mat.Filename, mat.ContentType, r)
}

func (api *materialApi) update(ctx echo.Context) error {
	var data material.NewMaterial
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMaterial")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	mat, err := api.svc.Update(ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating material")
	}
	return ctx.JSON(http.StatusOK, mat)
}

func (api *materialApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting material")
	}
	return ctx.NoContent(http.StatusNoContent)
}
