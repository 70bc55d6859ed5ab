package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/chuo/core/content"
	"github.com/trezcool/chuo/core/user"
)

type contentApi struct {
	svc      content.ServiceInterface
	validate *validator.Validate
}

func registerContentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc content.ServiceInterface, validate *validator.Validate) {
	api := contentApi{svc: svc, validate: validate}

	jg := g.Group("/admin/content-jobs", jwt, adminMiddleware(user.RoleAdminContent))
	jg.GET("", api.query)
	jg.POST("", api.enqueue)
	jg.GET("/status", api.status)
	jg.POST("/start", api.start)
	jg.POST("/pause", api.pause)
	jg.POST("/retry-failed", api.retryFailed)
	jg.DELETE("/completed", api.clearCompleted)
	jg.GET("/:id", api.retrieve)
	jg.DELETE("/:id", api.destroy)
}

func jobID(ctx echo.Context) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		return 0, content.ErrNotFound
	}
	return id, nil
}

func (api *contentApi) enqueue(ctx echo.Context) error {
	var data content.EnqueueRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnqueueRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	jobs, err := api.svc.Enqueue(data)
	if err != nil {
		return errors.Wrap(err, "enqueuing jobs")
	}
	return ctx.JSON(http.StatusCreated, listOrEmpty(jobs))
}

func (api *contentApi) query(ctx echo.Context) error {
	filter := new(content.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []content.Job{})
	}
	filter.Clean()

	jobs, err := api.svc.Query(filter)
	if err != nil {
		return errors.Wrap(err, "querying jobs")
	}
	return ctx.JSON(http.StatusOK, listOrEmpty(jobs))
}

func (api *contentApi) retrieve(ctx echo.Context) error {
	id, err := jobID(ctx)
	if err != nil {
		return err
	}
	job, err := api.svc.Get(id)
	if err != nil {
		return errors.Wrap(err, "getting job")
	}
	return ctx.JSON(http.StatusOK, job)
}

func (api *contentApi) status(ctx echo.Context) error {
	status, err := api.svc.Status()
	if err != nil {
		return errors.Wrap(err, "getting queue status")
	}
	return ctx.JSON(http.StatusOK, status)
}

func (api *contentApi) start(ctx echo.Context) error {
	if err := api.svc.Start(); err != nil {
		return errors.Wrap(err, "starting queue")
	}
	return api.status(ctx)
}

func (api *contentApi) pause(ctx echo.Context) error {
	api.svc.Pause()
	return api.status(ctx)
}

func (api *contentApi) retryFailed(ctx echo.Context) error {
	n, err := api.svc.RetryFailed()
	if err != nil {
		return errors.Wrap(err, "retrying failed jobs")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

func (api *contentApi) clearCompleted(ctx echo.Context) error {
	n, err := api.svc.ClearCompleted()
	if err != nil {
		return errors.Wrap(err, "clearing completed jobs")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

func (api *contentApi) destroy(ctx echo.Context) error {
	id, err := jobID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(id); err != nil {
		return errors.Wrap(err, "deleting job")
	}
	return ctx.NoContent(http.StatusNoContent)
}
