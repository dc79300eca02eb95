package middleware

import (
	"github.com/OFFIS-RIT/relgraph/internal/queue"

	"github.com/labstack/echo/v4"
)

// App carries the dependencies shared by all handlers.
//
// Queue may be nil when the service runs without RabbitMQ; async
// extraction is unavailable then.
type App struct {
	Pipeline queue.Runner
	Queue    queue.Publisher
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app}
			return next(cc)
		}
	}
}
