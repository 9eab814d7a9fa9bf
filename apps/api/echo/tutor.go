package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/metalearn/core"
	"github.com/trezcool/metalearn/core/progress"
	"github.com/trezcool/metalearn/core/user"
)

type tutorApi struct {
	svc    progress.Service
	usrSvc user.Service
}

func registerTutorAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc progress.Service, usrSvc user.Service) {
	api := tutorApi{svc: svc, usrSvc: usrSvc}

	tg := g.Group("/tutor", jwt, activeUserMiddleware(usrSvc))
	tg.GET("/recommendations", api.recommendations)
}

// recommendations lists the remediation recommendations of the authenticated user.
// An optional `threshold` query param overrides the default threshold.
func (api *tutorApi) recommendations(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	threshold, err := parseThreshold(ctx.QueryParam("threshold"))
	if err != nil {
		return err
	}

	recs, err := api.svc.RecommendRemediation(ctx.Request().Context(), usr.ID, threshold)
	if err != nil {
		return errors.Wrap(err, "recommending remediation")
	}
	return ctx.JSON(http.StatusOK, recs)
}

func parseThreshold(raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	thr, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, core.NewFieldValidationError("threshold", errors.New("threshold must be a number"))
	}
	if err = progress.CheckThreshold(thr); err != nil {
		return nil, err
	}
	return &thr, nil
}
