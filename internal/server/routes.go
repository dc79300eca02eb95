package server

import (
	"net/http"

	"github.com/OFFIS-RIT/relgraph/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "Service Running!"})
	})
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	e.POST("/extract", routes.ExtractHandler)
	e.POST("/extract/async", routes.ExtractAsyncHandler)
}
