package runs

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/qubi-project/qubi/pkg/models"
	"github.com/qubi-project/qubi/pkg/orchestrator"
	"github.com/qubi-project/qubi/pkg/publicapi/apimodels"
	"github.com/qubi-project/qubi/pkg/publicapi/middleware"
	"github.com/qubi-project/qubi/pkg/runstore"
)

// DefaultHistoryLimit caps history responses when the caller does not ask
// for a specific limit.
const DefaultHistoryLimit = 20

const waitingStatus = "waiting for quantum computer"

type EndpointParams struct {
	Router     *echo.Echo
	Submission *orchestrator.Submission
	Store      runstore.Store
}

type Endpoint struct {
	router     *echo.Echo
	submission *orchestrator.Submission
	store      runstore.Store
}

func NewEndpoint(params EndpointParams) *Endpoint {
	e := &Endpoint{
		router:     params.Router,
		submission: params.Submission,
		store:      params.Store,
	}

	// JSON group
	g := e.router.Group("/api/v1/runs")
	g.Use(middleware.SetContentType(echo.MIMEApplicationJSON))
	g.POST("", e.putRun)
	g.GET("", e.listHistory)
	g.GET("/:id", e.getRun)

	return e
}

// putRun accepts a run for asynchronous execution. The 202 tells the caller
// the run was recorded, not that it ran; progress is observed by polling.
func (e *Endpoint) putRun(c echo.Context) error {
	ctx := c.Request().Context()
	var args apimodels.PutRunRequest
	if err := c.Bind(&args); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&args); err != nil {
		return err
	}

	resp, err := e.submission.SubmitRun(ctx, orchestrator.SubmitRunRequest{
		UserID:    args.UserID,
		Circuit:   *args.Circuit,
		BackendID: args.QuantumComputer,
		Shots:     args.Shots,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusAccepted, apimodels.PutRunResponse{
		RunRequestID: resp.RunID,
	})
}

// getRun implements the polling contract: 200 with the result when the run
// is terminal, 202 while it is still in flight, 404 when the id is unknown.
func (e *Endpoint) getRun(c echo.Context) error {
	ctx := c.Request().Context()
	runID := c.Param("id")

	result, err := e.store.GetRunResult(ctx, runID)
	if err == nil {
		return c.JSON(http.StatusOK, apimodels.GetRunResponse{
			Status:    "completed",
			RunResult: &result,
		})
	}
	var notFound runstore.ErrResultNotFound
	if !errors.As(err, &notFound) {
		return err
	}

	request, err := e.store.GetRunRequest(ctx, runID)
	if err == nil {
		return c.JSON(http.StatusAccepted, apimodels.GetRunResponse{
			Status:          waitingStatus,
			QuantumComputer: request.BackendID,
			Shots:           request.Shots,
		})
	}
	var runNotFound runstore.ErrRunNotFound
	if !errors.As(err, &runNotFound) {
		return err
	}

	return c.JSON(http.StatusNotFound, apimodels.GetRunResponse{
		Status: fmt.Sprintf("request with id %s does not exist", runID),
	})
}

// listHistory returns a user's terminal results, newest first.
func (e *Endpoint) listHistory(c echo.Context) error {
	ctx := c.Request().Context()
	var args apimodels.ListRunHistoryRequest
	if err := c.Bind(&args); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&args); err != nil {
		return err
	}
	if args.Limit == 0 {
		args.Limit = DefaultHistoryLimit
	}

	history, err := e.store.GetRunHistory(ctx, runstore.RunHistoryQuery{
		UserID: args.UserID,
		Limit:  args.Limit,
	})
	if err != nil {
		return err
	}
	if history == nil {
		history = []models.RunResult{}
	}

	return c.JSON(http.StatusOK, apimodels.ListRunHistoryResponse{
		History: history,
	})
}
