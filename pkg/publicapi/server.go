package publicapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddelware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/qubi-project/qubi/pkg/publicapi/middleware"
)

const TimeoutMessage = "Server Timeout!"

type Config struct {
	// These are TCP connection deadlines and not HTTP timeouts. They don't
	// control the time it takes for our handlers to complete.
	ReadHeaderTimeout time.Duration // the amount of time allowed to read request headers
	ReadTimeout       time.Duration // the maximum duration for reading the entire request, including the body
	WriteTimeout      time.Duration // the maximum duration before timing out writes of the response

	// This represents maximum duration for handlers to complete, or else fail
	// the request with 503 error code.
	RequestHandlerTimeout time.Duration

	// MaxBytesToReadInBody is the max size of a request body
	MaxBytesToReadInBody string
}

var DefaultConfig = Config{
	ReadHeaderTimeout:     10 * time.Second,
	ReadTimeout:           20 * time.Second,
	WriteTimeout:          45 * time.Second,
	RequestHandlerTimeout: 30 * time.Second,
	MaxBytesToReadInBody:  "1MB",
}

type ServerParams struct {
	Router  *echo.Echo
	Address string
	Port    uint16
	Config  Config
}

// Server configures a node's public REST API.
type Server struct {
	Router  *echo.Echo
	Address string
	Port    uint16

	httpServer http.Server
	config     Config
}

func NewAPIServer(params ServerParams) (*Server, error) {
	server := &Server{
		Router:  params.Router,
		Address: params.Address,
		Port:    params.Port,
		config:  params.Config,
	}

	server.Router.Validator = NewCustomValidator()
	server.Router.HTTPErrorHandler = middleware.CustomHTTPErrorHandler

	// base middleware before routing
	server.Router.Pre(
		echomiddelware.Recover(),
		echomiddelware.RequestID(),
		echomiddelware.BodyLimit(server.config.MaxBytesToReadInBody),
		echomiddelware.TimeoutWithConfig(echomiddelware.TimeoutConfig{
			Timeout:      server.config.RequestHandlerTimeout,
			ErrorMessage: TimeoutMessage,
		}),
		middleware.RequestLogger(),
	)

	server.httpServer = http.Server{
		Handler:           server.Router,
		ReadHeaderTimeout: server.config.ReadHeaderTimeout,
		ReadTimeout:       server.config.ReadTimeout,
		WriteTimeout:      server.config.WriteTimeout,
		Addr:              fmt.Sprintf("%s:%d", server.Address, server.Port),
	}

	return server, nil
}

// GetURI returns the HTTP URI that the server is listening on.
func (apiServer *Server) GetURI() string {
	return fmt.Sprintf("http://%s:%d", apiServer.Address, apiServer.Port)
}

// ListenAndServe starts the server and blocks until the server is shutdown.
func (apiServer *Server) ListenAndServe(ctx context.Context) error {
	log.Ctx(ctx).Info().Msgf("API server listening for host %s on %s...", apiServer.Address, apiServer.httpServer.Addr)
	err := apiServer.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server without interrupting any active
// connections.
func (apiServer *Server) Shutdown(ctx context.Context) error {
	return apiServer.httpServer.Shutdown(ctx)
}
