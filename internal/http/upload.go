package http

import (
	"errors"
	"net/http"

	"github.com/jmehdipour/clipgate/internal/model"
	echo "github.com/labstack/echo/v4"
)

const uploadField = "video"

// uploadPageHandler tells the customer behind code whether this month is
// still open.
func uploadPageHandler(registry Registry, gate Gate) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		cu, err := registry.Resolve(ctx, c.Param("code"))
		if err != nil {
			return serviceError(c, err)
		}

		period := gate.CurrentPeriod()
		done, err := gate.HasSubmission(ctx, cu.ID, period)
		if err != nil {
			return serviceError(c, err)
		}

		return c.JSON(http.StatusOK, map[string]any{
			"customer":          map[string]any{"name": cu.Name, "code": cu.AccessCode},
			"period":            period,
			"already_submitted": done,
		})
	}
}

func uploadHandler(registry Registry, gate Gate, maxBytes int64) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		cu, err := registry.Resolve(ctx, c.Param("code"))
		if err != nil {
			return serviceError(c, err)
		}

		req := c.Request()
		if maxBytes > 0 {
			if req.ContentLength > maxBytes {
				return errorJSON(c, http.StatusRequestEntityTooLarge, codeTooLarge)
			}
			req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBytes)
		}
		fh, err := c.FormFile(uploadField)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return errorJSON(c, http.StatusRequestEntityTooLarge, codeTooLarge)
			}
			return c.JSON(http.StatusBadRequest, map[string]string{"error": codeValidation, "message": "missing file field " + uploadField})
		}
		if fh.Size == 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": codeValidation, "message": "empty file"})
		}

		f, err := fh.Open()
		if err != nil {
			return serviceError(c, err)
		}
		defer f.Close()

		sub, err := gate.AttemptSubmit(ctx, cu.ID, model.Payload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(echo.HeaderContentType),
			Size:        fh.Size,
			Body:        f,
		})
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(http.StatusCreated, sub)
	}
}
