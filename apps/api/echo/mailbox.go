package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/chuo/core/mailbox"
	"github.com/trezcool/chuo/core/user"
)

type mailboxApi struct {
	svc      mailbox.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerMailboxAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc mailbox.ServiceInterface,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := mailboxApi{svc: svc, usrSvc: usrSvc, validate: validate}

	mg := g.Group("/admin/email-accounts", jwt, adminMiddleware(user.RoleAdminIT))
	mg.POST("", api.provision)
	mg.GET("", api.query)
	mg.GET("/:id", api.retrieve)
	mg.POST("/:id/retry", api.retry)
	mg.POST("/:id/suspend", api.suspend)
	mg.POST("/:id/reactivate", api.reactivate)
	mg.POST("/:id/reset-password", api.resetPassword)
	mg.DELETE("/:id", api.destroy)
}

func (api *mailboxApi) provision(ctx echo.Context) error {
	var data mailbox.NewEmailAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEmailAccount")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	acct, err := api.svc.Provision(data, ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "provisioning email account")
	}
	return ctx.JSON(http.StatusCreated, acct)
}

func (api *mailboxApi) query(ctx echo.Context) error {
	filter := new(mailbox.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []mailbox.EmailAccount{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	accts, err := api.svc.Query(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying email accounts")
	}
	return ctx.JSON(http.StatusOK, listOrEmpty(accts))
}

func (api *mailboxApi) retrieve(ctx echo.Context) error {
	acct, err := api.svc.Get(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting email account")
	}
	return ctx.JSON(http.StatusOK, acct)
}

// act runs one of the account state changes and answers with the updated account.
func (api *mailboxApi) act(ctx echo.Context, action func(id string) (mailbox.EmailAccount, error), what string) error {
	acct, err := action(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, what)
	}
	return ctx.JSON(http.StatusOK, acct)
}

func (api *mailboxApi) retry(ctx echo.Context) error {
	return api.act(ctx, api.svc.RetryFailed, "retrying email account")
}

func (api *mailboxApi) suspend(ctx echo.Context) error {
	return api.act(ctx, api.svc.Suspend, "suspending email account")
}

func (api *mailboxApi) reactivate(ctx echo.Context) error {
	return api.act(ctx, api.svc.Reactivate, "reactivating email account")
}

func (api *mailboxApi) resetPassword(ctx echo.Context) error {
	return api.act(ctx, api.svc.ResetPassword, "resetting email account password")
}

func (api *mailboxApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting email account")
	}
	return ctx.NoContent(http.StatusNoContent)
}
