package http

import (
	"net/http"

	"github.com/jmehdipour/clipgate/internal/service/report"
	echo "github.com/labstack/echo/v4"
)

// reportHandler: GET /admin/reports?year=2024&month=7&name=acme
// A missing or malformed year/month reports the current month.
func reportHandler(reports Reports) echo.HandlerFunc {
	return func(c echo.Context) error {
		res, err := reports.Report(c.Request().Context(), report.Query{
			Year:  c.QueryParam("year"),
			Month: c.QueryParam("month"),
			Name:  c.QueryParam("name"),
		})
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(http.StatusOK, res)
	}
}
