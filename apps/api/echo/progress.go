package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/metalearn/core"
	"github.com/trezcool/metalearn/core/progress"
	"github.com/trezcool/metalearn/core/user"
)

type progressApi struct {
	svc      progress.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerProgressAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc progress.Service,
	usrSvc user.Service,
	validate *validator.Validate,
) {
	api := progressApi{svc: svc, usrSvc: usrSvc, validate: validate}

	pg := g.Group("/progress", jwt)
	pg.GET("", api.list, activeUserMiddleware(usrSvc))
	pg.PUT("", api.set, rolesMiddleware(usrSvc, user.RoleTeacher, user.RoleAdmin))
}

func (api *progressApi) list(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	recs, err := api.svc.ListForUser(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing progress")
	}
	return ctx.JSON(http.StatusOK, recs)
}

// set creates or updates the progress of a student on a module.
func (api *progressApi) set(ctx echo.Context) error {
	var data progress.SetRecord
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetRecord")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if _, err := api.usrSvc.GetByID(ctx.Request().Context(), data.UserID); err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return core.NewFieldValidationError("user_id", user.ErrNotFound)
		}
		return errors.Wrap(err, "finding user by ID")
	}

	rec, err := api.svc.Set(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "setting progress")
	}
	return ctx.JSON(http.StatusOK, rec)
}
