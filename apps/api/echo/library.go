package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/chuo/core/library"
	"github.com/trezcool/chuo/core/user"
)

type libraryApi struct {
	svc      library.ServiceInterface
	validate *validator.Validate
}

func registerLibraryAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc library.ServiceInterface, validate *validator.Validate) {
	api := libraryApi{svc: svc, validate: validate}
	writer := adminMiddleware(user.RoleAdminLibrary)

	lg := g.Group("/library")
	lg.GET("/categories", api.categories)
	lg.GET("/books", api.query)
	lg.GET("/books/:id", api.retrieve)
	lg.POST("/books", api.create, jwt, writer)
	lg.PUT("/books/:id", api.update, jwt, writer)
	lg.DELETE("/books/:id", api.destroy, jwt, writer)
}

func (api *libraryApi) create(ctx echo.Context) error {
	var data library.NewBook
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBook")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	book, err := api.svc.Create(data)
	if err != nil {
		return errors.Wrap(err, "creating book")
	}
	return ctx.JSON(http.StatusCreated, book)
}

func (api *libraryApi) query(ctx echo.Context) error {
	filter := new(library.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []library.Book{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	books, err := api.svc.Query(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying books")
	}
	return ctx.JSON(http.StatusOK, listOrEmpty(books))
}

func (api *libraryApi) retrieve(ctx echo.Context) error {
	book, err := api.svc.Get(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting book")
	}
	return ctx.JSON(http.StatusOK, book)
}

func (api *libraryApi) update(ctx echo.Context) error {
	var data library.NewBook
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBook")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	book, err := api.svc.Update(ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating book")
	}
	return ctx.JSON(http.StatusOK, book)
}

func (api *libraryApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting book")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *libraryApi) categories(ctx echo.Context) error {
	categories, err := api.svc.Categories()
	if err != nil {
		return errors.Wrap(err, "listing categories")
	}
	return ctx.JSON(http.StatusOK, listOrEmpty(categories))
}
