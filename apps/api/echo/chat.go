package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/attendr/core/advisory"
)

type chatApi struct {
	svc      *advisory.Service
	validate *validator.Validate
}

func registerChatAPI(g *echo.Group, svc *advisory.Service, validate *validator.Validate) {
	api := chatApi{svc: svc, validate: validate}
	g.POST("/chat", api.chat)
}

func (api *chatApi) chat(ctx echo.Context) error {
	var data advisory.ChatRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChatRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	setClientID(ctx, data.ClientID)

	reply, err := api.svc.Chat(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "chatting")
	}
	return ctx.JSON(http.StatusOK, reply)
}
