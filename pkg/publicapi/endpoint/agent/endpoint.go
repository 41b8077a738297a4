package agent

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/qubi-project/qubi/pkg/publicapi/apimodels"
	"github.com/qubi-project/qubi/pkg/publicapi/middleware"
	"github.com/qubi-project/qubi/pkg/version"
)

type EndpointParams struct {
	Router *echo.Echo
}

type Endpoint struct {
	router *echo.Echo
}

func NewEndpoint(params EndpointParams) *Endpoint {
	e := &Endpoint{
		router: params.Router,
	}

	// JSON group
	g := e.router.Group("/api/v1/agent")
	g.Use(middleware.SetContentType(echo.MIMEApplicationJSON))
	g.GET("/alive", e.alive)
	g.GET("/version", e.version)

	return e
}

func (e *Endpoint) alive(c echo.Context) error {
	return c.JSON(http.StatusOK, &apimodels.IsAliveResponse{
		Status: "OK",
	})
}

// version returns the build version running on the server.
func (e *Endpoint) version(c echo.Context) error {
	return c.JSON(http.StatusOK, apimodels.GetVersionResponse{
		BuildVersionInfo: version.Get(),
	})
}
