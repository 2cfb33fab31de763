package http

import "github.com/labstack/echo/v4"

// Handler defines HTTP route registration. The server accepts any handler
// implementing it; the jobs API handler is the primary implementation.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}
