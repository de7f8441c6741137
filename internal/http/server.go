package http

import (
	"context"
	"net/http"
	"time"

	"github.com/avivheldman/WorkFlow/pkg/models"
	"github.com/avivheldman/WorkFlow/pkg/service"
	"github.com/avivheldman/WorkFlow/pkg/storage"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Logger defines the logging interface for the HTTP adapter
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type handler struct {
	svc    *service.WorkflowService
	store  storage.Store
	logger Logger
}

// CreateWorkflowResponse is returned by POST /api/workflow.
type CreateWorkflowResponse struct {
	WorkflowID string        `json:"workflow_id"`
	Status     models.Status `json:"status"`
	Message    string        `json:"message"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer wires the workflow routes onto a new echo instance. Deletion goes
// straight to store; the engine itself never deletes. gatherer may be nil, in
// which case /metrics is not mounted.
func NewServer(svc *service.WorkflowService, store storage.Store, gatherer prometheus.Gatherer, logger Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	h := &handler{svc: svc, store: store, logger: logger}
	e.GET("/health", h.health)
	api := e.Group("/api")
	api.POST("/workflow", h.createWorkflow)
	api.GET("/workflow/:id", h.getWorkflow)
	api.DELETE("/workflow/:id", h.deleteWorkflow)
	api.GET("/workflows", h.listWorkflows)

	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return e
}

// StartServer serves e on addr until ctx is done, then shuts down and waits
// for background workflow executions to finish.
func StartServer(ctx context.Context, e *echo.Echo, addr string, svc *service.WorkflowService, logger Logger) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Infof("Starting workflow server on %s", addr)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server error")
		}
		return nil
	case <-ctx.Done():
		logger.Infof("Shutting down workflow server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Server shutdown error: %v", err)
			_ = server.Close()
		}
		svc.Wait()
		logger.Infof("Server stopped gracefully")
		return nil
	}
}

func (h *handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *handler) createWorkflow(c echo.Context) error {
	var spec models.WorkflowSpec
	if err := c.Bind(&spec); err != nil {
		h.logger.Warnf("Invalid workflow request body: %v", err)
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	wf, err := h.svc.SubmitWorkflow(c.Request().Context(), spec)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusAccepted, CreateWorkflowResponse{
		WorkflowID: wf.ID,
		Status:     wf.Status,
		Message:    "Workflow created and execution started",
	})
}

func (h *handler) getWorkflow(c echo.Context) error {
	wf, err := h.svc.GetWorkflow(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, wf)
}

func (h *handler) listWorkflows(c echo.Context) error {
	workflows, err := h.svc.ListWorkflows(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, workflows)
}

func (h *handler) deleteWorkflow(c echo.Context) error {
	id := c.Param("id")
	if err := h.store.DeleteWorkflow(c.Request().Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = errors.Wrapf(service.ErrWorkflowNotFound, "workflow %s", id)
		}
		return h.fail(c, err)
	}
	h.logger.Infof("Deleted workflow %s", id)
	return c.NoContent(http.StatusNoContent)
}

// fail maps engine errors onto status codes.
func (h *handler) fail(c echo.Context, err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidSpec), errors.Is(err, service.ErrUnknownTask):
		code = http.StatusBadRequest
	case errors.Is(err, service.ErrWorkflowNotFound):
		code = http.StatusNotFound
	case errors.Is(err, service.ErrCapacityExceeded):
		code = http.StatusServiceUnavailable
	default:
		h.logger.Errorf("Request %s %s failed: %v", c.Request().Method, c.Path(), err)
	}
	return c.JSON(code, ErrorResponse{Error: err.Error()})
}
