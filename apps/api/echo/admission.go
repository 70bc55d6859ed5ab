package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/chuo/core/admission"
	"github.com/trezcool/chuo/core/user"
)

type admissionApi struct {
	svc      admission.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerAdmissionAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc admission.ServiceInterface,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := admissionApi{svc: svc, usrSvc: usrSvc, validate: validate}

	// applicants
	pg := g.Group("/applications")
	pg.POST("", api.submit)
	pg.GET("/track", api.track)
	pg.POST("/:ref/documents", api.attachDocument)

	// reviewers
	ag := g.Group("/admin/applications", jwt, adminMiddleware(user.RoleAdminAdmissions))
	ag.GET("", api.query)
	ag.GET("/stats", api.stats)
	ag.GET("/documents/:docId/download", api.downloadDocument)
	ag.GET("/:id", api.retrieve)
	ag.GET("/:id/documents", api.queryDocuments)
	ag.POST("/:id/review", api.review)
	ag.DELETE("/:id", api.destroy)
}

type ApplicationReceipt struct {
	Reference   string    `json:"reference"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
}

func (api *admissionApi) submit(ctx echo.Context) error {
	var data admission.NewApplication
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewApplication")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	app, err := api.svc.Submit(data)
	if err != nil {
		return errors.Wrap(err, "submitting application")
	}
	return ctx.JSON(http.StatusCreated, ApplicationReceipt{
		Reference:   app.Reference,
		Status:      app.Status,
		SubmittedAt: app.SubmittedAt,
	})
}

func (api *admissionApi) track(ctx echo.Context) error {
	var data admission.TrackRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TrackRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	tracked, err := api.svc.Track(data)
	if err != nil {
		return errors.Wrap(err, "tracking application")
	}
	tracked.Documents = listOrEmpty(tracked.Documents)
	return ctx.JSON(http.StatusOK, tracked)
}

func (api *admissionApi) attachDocument(ctx echo.Context) error {
	data := admission.TrackRequest{
		Reference: ctx.Param("ref"),
		Email:     ctx.FormValue("email"),
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	upload, file, err := bindFile(ctx, "file")
	if err != nil {
		return err
	}
	defer file.Close()

	doc, err := api.svc.AttachDocument(data, ctx.FormValue("kind"), upload)
	if err != nil {
		return errors.Wrap(err, "attaching document")
	}
	return ctx.JSON(http.StatusCreated, doc)
}

func (api *admissionApi) query(ctx echo.Context) error {
	filter := new(admission.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []admission.Application{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	apps, err := api.svc.Query(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying applications")
	}
	return ctx.JSON(http.StatusOK, listOrEmpty(apps))
}

func (api *admissionApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats()
	if err != nil {
		return errors.Wrap(err, "counting applications")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *admissionApi) retrieve(ctx echo.Context) error {
	app, err := api.svc.Get(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting application")
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *admissionApi) review(ctx echo.Context) error {
	var data admission.Review
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Review")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	reviewer, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	app, err := api.svc.Review(ctx.Param("id"), reviewer.ID, data)
	if err != nil {
		return errors.Wrap(err, "reviewing application")
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *admissionApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting application")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *admissionApi) queryDocuments(ctx echo.Context) error {
	docs, err := api.svc.ListDocuments(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing documents")
	}
	return ctx.JSON(http.StatusOK, listOrEmpty(docs))
}

func (api *admissionApi) downloadDocument(ctx echo.Context) error {
	doc, r, err := api.svc.OpenDocument(ctx.Param("docId"))
	if err != nil {
		return errors.Wrap(err, "opening document")
	}
	return sendFile(ctx, doc.Filename, doc.ContentType, r)
}
