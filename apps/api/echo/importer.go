package echoapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/importer"
	"github.com/trezcool/chuo/core/user"
)

// importRoles lists the admin role allowed to import each kind of record.
var importRoles = map[string]string{
	importer.KindCourses:  user.RoleAdminAcademics,
	importer.KindBooks:    user.RoleAdminLibrary,
	importer.KindStudents: user.RoleAdminIT,
}

type importerApi struct {
	svc      importer.ServiceInterface
	validate *validator.Validate
}

func registerImporterAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc importer.ServiceInterface,
	validate *validator.Validate,
) {
	api := importerApi{svc: svc, validate: validate}

	ig := g.Group("/admin/imports", jwt, adminMiddleware(), importKindMiddleware)
	ig.POST("/preview", api.preview)
	ig.POST("", api.run)
}

// importKindMiddleware checks the context user may import the requested kind of records.
func importKindMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		kind := strings.ToLower(strings.TrimSpace(ctx.FormValue("kind")))
		role, ok := importRoles[kind]
		if !ok {
			return core.NewFieldError("kind", "invalid import kind")
		}
		if !contextHasAnyRole(ctx, []string{role}) {
			return errHttpForbidden
		}
		return next(ctx)
	}
}

func (api *importerApi) preview(ctx echo.Context) error {
	upload, file, err := bindFile(ctx, "file")
	if err != nil {
		return err
	}
	defer file.Close()

	kind := strings.ToLower(strings.TrimSpace(ctx.FormValue("kind")))
	preview, err := api.svc.Preview(kind, upload.Filename, upload.Content)
	if err != nil {
		return errors.Wrap(err, "previewing import")
	}
	return ctx.JSON(http.StatusOK, preview)
}

func (api *importerApi) run(ctx echo.Context) error {
	data := importer.Request{Kind: ctx.FormValue("kind")}
	if mapping := ctx.FormValue("mapping"); mapping != "" {
		if err := json.Unmarshal([]byte(mapping), &data.Mapping); err != nil {
			return core.NewFieldError("mapping", "must be a JSON object of header to field")
		}
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	upload, file, err := bindFile(ctx, "file")
	if err != nil {
		return err
	}
	defer file.Close()

	report, err := api.svc.Import(data, upload.Filename, upload.Content)
	if err != nil {
		return errors.Wrap(err, "importing records")
	}
	report.Errors = listOrEmpty(report.Errors)
	return ctx.JSON(http.StatusOK, report)
}
