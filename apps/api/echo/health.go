package echoapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/metalearn/core"
	"github.com/trezcool/metalearn/storage/database"
)

type healthApi struct {
	db     database.Pinger
	logger core.Logger
}

func registerHealthAPI(g *echo.Group, db database.Pinger, logger core.Logger) {
	api := healthApi{db: db, logger: logger}
	g.GET("/health", api.health)
}

func (api *healthApi) health(ctx echo.Context) error {
	status, code := "ok", http.StatusOK
	if api.db != nil {
		pctx, cancel := context.WithTimeout(ctx.Request().Context(), time.Second)
		defer cancel()
		if err := database.StatusCheck(pctx, api.db); err != nil {
			api.logger.Warn("health check: database unreachable", err)
			status, code = "db not ready", http.StatusServiceUnavailable
		}
	}
	return ctx.JSON(code, echo.Map{"status": status})
}
