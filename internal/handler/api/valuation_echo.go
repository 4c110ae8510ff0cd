package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"FinValue/internal/domain/models"
	dservice "FinValue/internal/domain/service"
	"FinValue/internal/usecase"
	xhttp "FinValue/pkg/http"
	xlogger "FinValue/pkg/logger"
)

const mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// ValuationEchoHandler serves comps and DCF valuations over HTTP.
type ValuationEchoHandler struct {
	logger   *xlogger.Logger
	comps    *usecase.CompsAnalysis
	dcf      *usecase.DCFAnalysis
	history  *usecase.History
	jobs     *usecase.JobSubmitter
	tracker  *usecase.JobTracker
	renderer dservice.ReportRenderer
	exporter dservice.ReportExporter
	checks   map[string]HealthCheck
}

type ValuationHandlerOption func(*ValuationEchoHandler)

func WithHistory(h *usecase.History) ValuationHandlerOption {
	return func(v *ValuationEchoHandler) { v.history = h }
}

func WithJobs(s *usecase.JobSubmitter, t *usecase.JobTracker) ValuationHandlerOption {
	return func(v *ValuationEchoHandler) { v.jobs, v.tracker = s, t }
}

func WithHealthCheck(name string, check HealthCheck) ValuationHandlerOption {
	return func(v *ValuationEchoHandler) {
		if check != nil {
			v.checks[name] = check
		}
	}
}

func NewValuationEchoHandler(
	logger *xlogger.Logger,
	comps *usecase.CompsAnalysis,
	dcf *usecase.DCFAnalysis,
	renderer dservice.ReportRenderer,
	exporter dservice.ReportExporter,
	opts ...ValuationHandlerOption,
) *ValuationEchoHandler {
	h := &ValuationEchoHandler{
		logger:   logger,
		comps:    comps,
		dcf:      dcf,
		renderer: renderer,
		exporter: exporter,
		checks:   make(map[string]HealthCheck),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *ValuationEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.GET("/comps", h.Comps)
	g.GET("/comps/report", h.CompsReport)
	g.GET("/comps/export", h.CompsExport)
	g.GET("/dcf", h.DCF)
	g.GET("/dcf/report", h.DCFReport)
	g.GET("/dcf/export", h.DCFExport)
	g.GET("/dcf/history", h.DCFHistory)
	g.POST("/jobs", h.SubmitJob)
	g.GET("/jobs/:id", h.JobStatus)
}

func (h *ValuationEchoHandler) runComps(c echo.Context) (*models.CompsReport, error) {
	req := &models.CompsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return nil, validationError(verr)
	}
	rep, err := h.comps.Run(c.Request().Context(), *req)
	if err != nil {
		h.logger.Error("comps usecase error", xlogger.String("ticker", req.Ticker), xlogger.Error(err))
		return nil, toAppError(err)
	}
	return rep, nil
}

func (h *ValuationEchoHandler) runDCF(c echo.Context) (*models.DCFReport, error) {
	req := &models.DCFRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return nil, validationError(verr)
	}
	rep, err := h.dcf.Run(c.Request().Context(), *req)
	if err != nil {
		h.logger.Error("dcf usecase error", xlogger.String("ticker", req.Ticker), xlogger.Error(err))
		return nil, toAppError(err)
	}
	return rep, nil
}

func (h *ValuationEchoHandler) Comps(c echo.Context) error {
	rep, err := h.runComps(c)
	if err != nil {
		return respondError(c, err)
	}
	return xhttp.SuccessResponse(c, rep)
}

func (h *ValuationEchoHandler) CompsReport(c echo.Context) error {
	rep, err := h.runComps(c)
	if err != nil {
		return respondError(c, err)
	}
	return xhttp.TextResponse(c, func(w io.Writer) error { return h.renderer.RenderComps(w, rep) })
}

func (h *ValuationEchoHandler) CompsExport(c echo.Context) error {
	rep, err := h.runComps(c)
	if err != nil {
		return respondError(c, err)
	}
	name := exportName("comps", rep.Target.Ticker, rep.GeneratedAt)
	return xhttp.AttachmentResponse(c, mimeXLSX, name, func(w io.Writer) error { return h.exporter.ExportComps(w, rep) })
}

func (h *ValuationEchoHandler) DCF(c echo.Context) error {
	rep, err := h.runDCF(c)
	if err != nil {
		return respondError(c, err)
	}
	return xhttp.SuccessResponse(c, rep)
}

func (h *ValuationEchoHandler) DCFReport(c echo.Context) error {
	rep, err := h.runDCF(c)
	if err != nil {
		return respondError(c, err)
	}
	return xhttp.TextResponse(c, func(w io.Writer) error { return h.renderer.RenderDCF(w, rep) })
}

func (h *ValuationEchoHandler) DCFExport(c echo.Context) error {
	rep, err := h.runDCF(c)
	if err != nil {
		return respondError(c, err)
	}
	name := exportName("dcf", rep.Ticker, rep.GeneratedAt)
	return xhttp.AttachmentResponse(c, mimeXLSX, name, func(w io.Writer) error { return h.exporter.ExportDCF(w, rep) })
}

func (h *ValuationEchoHandler) DCFHistory(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.history.ListDCF(c.Request().Context(), *req)
	if err != nil {
		h.logger.Error("dcf history error", xlogger.Error(err))
		return respondError(c, toAppError(err))
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *ValuationEchoHandler) SubmitJob(c echo.Context) error {
	job := models.ValuationJob{}
	if err := c.Bind(&job); err != nil {
		return xhttp.BadRequestResponse(c, xhttp.BadRequestError("malformed job body"))
	}
	if verr := h.validateJob(c, &job); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	st, err := h.jobs.Submit(c.Request().Context(), job)
	if err != nil {
		h.logger.Error("submit job error", xlogger.Error(err))
		return respondError(c, toAppError(err))
	}
	return xhttp.DataResponse(c, http.StatusAccepted, st)
}

func (h *ValuationEchoHandler) validateJob(c echo.Context, job *models.ValuationJob) interface{} {
	ctx := c.Request().Context()
	switch {
	case job.Comp != nil:
		return xhttp.ValidateStruct(ctx, job.Comp)
	case job.DCF != nil:
		return xhttp.ValidateStruct(ctx, job.DCF)
	}
	return nil
}

func (h *ValuationEchoHandler) JobStatus(c echo.Context) error {
	if h.tracker == nil {
		return respondError(c, toAppError(usecase.ErrJobsDisabled))
	}
	st, err := h.tracker.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, st)
}

// Health reports every registered dependency check; any failure turns the response into a 503.
func (h *ValuationEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	out := map[string]string{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			out[name] = err.Error()
			continue
		}
		out[name] = "ok"
	}
	return xhttp.DataResponse(c, status, out)
}

func exportName(kind, ticker string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s.xlsx", kind, strings.ToLower(ticker), at.Format("20060102"))
}

// validationFailure carries binder and validator output to a 400 body.
type validationFailure struct{ details interface{} }

func (v *validationFailure) Error() string { return "invalid request" }

func validationError(details interface{}) error { return &validationFailure{details: details} }

func respondError(c echo.Context, err error) error {
	var vf *validationFailure
	if errors.As(err, &vf) {
		return xhttp.BadRequestResponse(c, vf.details)
	}
	return xhttp.AppErrorResponse(c, err)
}

// toAppError maps use case failures onto HTTP statuses.
func toAppError(err error) error {
	var (
		de      *models.DomainError
		missing *models.MissingDataError
	)
	switch {
	case errors.As(err, &de):
		return xhttp.UnprocessableError(de.Error()).WithError(err)
	case errors.As(err, &missing):
		return xhttp.NotFoundError(missing.Error()).WithError(err)
	case errors.Is(err, usecase.ErrJobNotFound):
		return xhttp.NotFoundError("job not found").WithError(err)
	case errors.Is(err, models.ErrProviderUnavailable):
		return xhttp.BadGatewayError("market data provider unavailable").WithError(err)
	case errors.Is(err, usecase.ErrHistoryDisabled), errors.Is(err, usecase.ErrJobsDisabled):
		return xhttp.ServiceUnavailableError(err.Error()).WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.NewAppError("ERR_TIMEOUT", "", "valuation timed out", http.StatusGatewayTimeout).WithError(err)
	}
	return xhttp.InternalError("valuation failed").WithError(err)
}
