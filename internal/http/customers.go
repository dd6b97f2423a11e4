package http

import (
	"net/http"
	"strconv"

	"github.com/jmehdipour/clipgate/internal/model"
	echo "github.com/labstack/echo/v4"
)

type customerView struct {
	model.Customer
	UploadURL string `json:"upload_url"`
}

func viewOf(links Links, cu model.Customer) customerView {
	v := customerView{Customer: cu}
	if links != nil {
		v.UploadURL = links.UploadURL(cu.AccessCode)
	}
	return v
}

func listCustomersHandler(registry Registry, links Links) echo.HandlerFunc {
	return func(c echo.Context) error {
		list, err := registry.List(c.Request().Context())
		if err != nil {
			return serviceError(c, err)
		}
		out := make([]customerView, 0, len(list))
		for _, cu := range list {
			out = append(out, viewOf(links, cu))
		}
		return c.JSON(http.StatusOK, map[string]any{
			"count":   len(out),
			"results": out,
		})
	}
}

type createCustomerReq struct {
	Name string `json:"name" form:"name" validate:"notblank,max=200"`
}

func createCustomerHandler(registry Registry, links Links) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createCustomerReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid body"})
		}
		if err := c.Validate(&req); err != nil {
			return validationError(c, err)
		}

		cu, err := registry.Register(c.Request().Context(), req.Name)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(http.StatusCreated, viewOf(links, cu))
	}
}

func validationError(c echo.Context, err error) error {
	body := map[string]any{"error": codeValidation}
	if rv, ok := c.Echo().Validator.(*requestValidator); ok {
		if fields := rv.fieldErrors(err); fields != nil {
			body["fields"] = fields
		}
	}
	return c.JSON(http.StatusBadRequest, body)
}

func pathID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

func deleteCustomerHandler(registry Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := pathID(c)
		if !ok {
			return errorJSON(c, http.StatusNotFound, codeNotFound)
		}
		if err := registry.Remove(c.Request().Context(), id); err != nil {
			return serviceError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// qrHandler serves the access code as a downloadable PNG.
func qrHandler(registry Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		code := c.Param("code")
		png, err := registry.AccessArtifact(c.Request().Context(), code)
		if err != nil {
			return serviceError(c, err)
		}
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+code+`.png"`)
		return c.Blob(http.StatusOK, "image/png", png)
	}
}

// customerHistoryHandler lists accepted submissions from the ClickHouse projection.
func customerHistoryHandler(registry Registry, history History) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := pathID(c)
		if !ok {
			return errorJSON(c, http.StatusNotFound, codeNotFound)
		}
		if _, err := registry.Get(c.Request().Context(), id); err != nil {
			return serviceError(c, err)
		}

		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		events, err := history.ListByCustomer(c.Request().Context(), id, limit, offset)
		if err != nil {
			c.Logger().Errorf("clickhouse list failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(events),
			"results": events,
		})
	}
}
