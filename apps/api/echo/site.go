package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/chuo/core/site"
	"github.com/trezcool/chuo/core/user"
)

type siteApi struct {
	svc      site.ServiceInterface
	validate *validator.Validate
}

func registerSiteAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc site.ServiceInterface, validate *validator.Validate) {
	api := siteApi{svc: svc, validate: validate}
	writer := adminMiddleware(user.RoleAdminContent)

	g.GET("/pages", api.queryPages)
	g.GET("/pages/:slug", api.retrievePage)
	g.POST("/contact", api.contact)

	dg := g.Group("/documents")
	dg.GET("", api.queryDocuments)
	dg.GET("/:id", api.retrieveDocument)
	dg.GET("/:id/download", api.downloadDocument)
	dg.POST("", api.uploadDocument, jwt, writer)
	dg.DELETE("/:id", api.destroyDocument, jwt, writer)
}

func (api *siteApi) queryPages(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, listOrEmpty(api.svc.ListPages(ctx.QueryParam("section"))))
}

func (api *siteApi) retrievePage(ctx echo.Context) error {
	page, err := api.svc.GetPage(ctx.Param("slug"))
	if err != nil {
		return errors.Wrap(err, "getting page")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *siteApi) contact(ctx echo.Context) error {
	var data site.ContactMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ContactMessage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	api.svc.Contact(data)
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Thank you for your message. We will get back to you shortly."})
}

func (api *siteApi) uploadDocument(ctx echo.Context) error {
	var data site.NewDocument
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDocument")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	upload, file, err := bindFile(ctx, "file")
	if err != nil {
		return err
	}
	defer file.Close()

	doc, err := api.svc.UploadDocument(data, upload)
	if err != nil {
		return errors.Wrap(err, "uploading document")
	}
	return ctx.JSON(http.StatusCreated, doc)
}

func (api *siteApi) queryDocuments(ctx echo.Context) error {
	filter := new(site.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []site.Document{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	docs, err := api.svc.QueryDocuments(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying documents")
	}
	return ctx.JSON(http.StatusOK, listOrEmpty(docs))
}

func (api *siteApi) retrieveDocument(ctx echo.Context) error {
	doc, err := api.svc.GetDocument(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting document")
	}
	return ctx.JSON(http.StatusOK, doc)
}

func (api *siteApi) downloadDocument(ctx echo.Context) error {
	doc, r, err := api.svc.OpenDocument(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "opening document")
	}
	return sendFile(ctx, doc.Filename, doc.ContentType, r)
}

func (api *siteApi) destroyDocument(ctx echo.Context) error {
	if err := api.svc.DeleteDocument(ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting document")
	}
	return ctx.NoContent(http.StatusNoContent)
}
