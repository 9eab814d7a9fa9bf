package echoapi

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/metalearn/core"
	"github.com/trezcool/metalearn/core/file"
	"github.com/trezcool/metalearn/core/user"
)

const uploadFormField = "file"

type fileApi struct {
	svc    file.Service
	usrSvc user.Service
	logger core.Logger
}

func registerFileAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc file.Service, usrSvc user.Service, logger core.Logger) {
	api := fileApi{svc: svc, usrSvc: usrSvc, logger: logger}

	fg := g.Group("/files", jwt, activeUserMiddleware(usrSvc))
	fg.POST("/upload", api.upload)
	fg.GET("", api.list)
	fg.GET("/:id", api.download)
	fg.DELETE("/:id", api.destroy)
}

func (api *fileApi) upload(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	fh, err := ctx.FormFile(uploadFormField)
	if err != nil {
		return core.NewFieldValidationError(uploadFormField, errors.New("a file is required"))
	}
	src, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer func() { _ = src.Close() }()

	f, err := api.svc.Upload(ctx.Request().Context(), usr.ID, fh.Filename, src)
	if err != nil {
		return errors.Wrap(err, "uploading file")
	}
	return ctx.JSON(http.StatusCreated, f)
}

func (api *fileApi) list(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	files, err := api.svc.List(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing files")
	}
	return ctx.JSON(http.StatusOK, files)
}

func (api *fileApi) download(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	f, content, err := api.svc.Open(ctx.Request().Context(), usr.ID, ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == file.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "opening file")
	}
	defer func() {
		if cErr := content.Close(); cErr != nil {
			api.logger.Warn("closing file content", cErr)
		}
	}()

	ctx.Response().Header().Set(echo.HeaderContentDisposition,
		mime.FormatMediaType("attachment", map[string]string{"filename": f.OriginalFilename}))
	ctx.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(f.Size, 10))
	return ctx.Stream(http.StatusOK, f.ContentType, content)
}

func (api *fileApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.Delete(ctx.Request().Context(), usr.ID, ctx.Param("id")); err != nil {
		if errors.Cause(err) == file.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrapf(err, "deleting file %s", ctx.Param("id"))
	}
	return ctx.NoContent(http.StatusNoContent)
}
