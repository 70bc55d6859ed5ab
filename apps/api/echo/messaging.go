package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/messaging"
	"github.com/trezcool/chuo/core/user"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

type messagingApi struct {
	svc      messaging.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
	logger   core.Logger
	upgrader websocket.Upgrader
}

func registerMessagingAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	queryJWT echo.MiddlewareFunc,
	svc messaging.ServiceInterface,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
	logger core.Logger,
) {
	api := messagingApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// browsers cannot set headers on websockets: the token comes in the query
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	// the stream is registered apart since it authenticates with `?token=`
	g.GET("/channels/:id/stream", api.stream, queryJWT)

	cg := g.Group("/channels", jwt)
	cg.GET("", api.queryChannels)
	cg.POST("", api.createChannel, adminMiddleware())
	cg.GET("/:id", api.retrieveChannel)
	cg.DELETE("/:id", api.destroyChannel, adminMiddleware())
	cg.GET("/:id/messages", api.queryMessages)
	cg.POST("/:id/messages", api.postMessage)
}

func (api *messagingApi) createChannel(ctx echo.Context) error {
	var data messaging.NewChannel
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewChannel")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	ch, err := api.svc.CreateChannel(data, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "creating channel")
	}
	return ctx.JSON(http.StatusCreated, ch)
}

func (api *messagingApi) queryChannels(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	channels, err := api.svc.ListChannels(ctxUsr)
	if err != nil {
		return errors.Wrap(err, "listing channels")
	}
	return ctx.JSON(http.StatusOK, listOrEmpty(channels))
}

func (api *messagingApi) retrieveChannel(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	ch, err := api.svc.GetChannel(ctx.Param("id"), ctxUsr)
	if err != nil {
		return errors.Wrap(err, "getting channel")
	}
	return ctx.JSON(http.StatusOK, ch)
}

func (api *messagingApi) destroyChannel(ctx echo.Context) error {
	if err := api.svc.DeleteChannel(ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting channel")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *messagingApi) queryMessages(ctx echo.Context) error {
	var page messaging.Page
	if err := ctx.Bind(&page); err != nil {
		return core.NewValidationError(errors.New("after and limit must be integers"))
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	messages, err := api.svc.ListMessages(ctx.Param("id"), ctxUsr, page)
	if err != nil {
		return errors.Wrap(err, "listing messages")
	}
	return ctx.JSON(http.StatusOK, listOrEmpty(messages))
}

func (api *messagingApi) postMessage(ctx echo.Context) error {
	var data messaging.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	msg, err := api.svc.PostMessage(ctx.Param("id"), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "posting message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

// stream pushes the new messages of a channel over a websocket until either side goes away.
// A subscriber that cannot keep up is dropped; it reconnects and pages with `after`.
func (api *messagingApi) stream(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	sub, err := api.svc.Subscribe(ctx.Param("id"), ctxUsr)
	if err != nil {
		return errors.Wrap(err, "subscribing to channel")
	}
	defer sub.Close()

	ws, err := api.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		// the upgrader already replied
		api.logger.Debug("websocket upgrade failed", err)
		return nil
	}
	defer ws.Close()

	// clients do not send anything: reading only detects when they leave
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-sub.C:
			if !ok {
				closeMsg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscription dropped")
				_ = ws.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(wsWriteWait))
				return nil
			}
			_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteJSON(msg); err != nil {
				api.logger.Debug("websocket write failed", err)
				return nil
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return nil
			}
		case <-gone:
			return nil
		}
	}
}
