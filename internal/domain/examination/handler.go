package examination

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/eyecare/eyecare/internal/domain/exam"
	"github.com/eyecare/eyecare/internal/platform/auth"
	"github.com/eyecare/eyecare/internal/platform/fhir"
	"github.com/eyecare/eyecare/internal/platform/table"
	"github.com/eyecare/eyecare/pkg/pagination"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger.With().Str("component", "examination_http").Logger()}
}

func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	api.GET("/examinations", h.ListExaminations)
	api.GET("/examinations/:id", h.GetExamination)
	api.GET("/examinations/:kind/table", h.GetTable)
	api.POST("/examinations/:kind/$preview", h.PreviewExamination)

	write := api.Group("", auth.RequireRole(auth.RoleClinician))
	write.POST("/examinations/:kind", h.SubmitExamination)
	write.DELETE("/examinations/:id", h.DeleteExamination)

	fhirGroup.GET("/metadata", h.CapabilityStatement)
	fhirGroup.POST("/$convert/:kind", h.ConvertFHIR)
	fhirGroup.GET("/Bundle/:id", h.GetBundleFHIR)
}

// Result is the REST representation of a converted examination. Table is
// the rendered view of its resources when the kind has one.
type Result struct {
	*Examination
	Table *table.Table `json:"table,omitempty"`
}

// issuesResponse is the body of a 422 answer.
type issuesResponse struct {
	Message string      `json:"message"`
	Issues  interface{} `json:"issues"`
}

// -- Examination REST --

func (h *Handler) SubmitExamination(c echo.Context) error {
	kind, body, err := readForm(c)
	if err != nil {
		return err
	}
	author, _ := c.Get(auth.SubjectKey).(string)
	e, err := h.svc.Submit(c.Request().Context(), kind, body, author)
	if err != nil {
		return restError(err)
	}
	return c.JSON(http.StatusCreated, h.result(c, e))
}

func (h *Handler) PreviewExamination(c echo.Context) error {
	kind, body, err := readForm(c)
	if err != nil {
		return err
	}
	e, err := h.svc.Preview(c.Request().Context(), kind, body)
	if err != nil {
		return restError(err)
	}
	return c.JSON(http.StatusOK, h.result(c, e))
}

func (h *Handler) result(c echo.Context, e *Examination) Result {
	t, err := h.svc.RenderTable(c.Request().Context(), e)
	if err != nil {
		h.logger.Warn().Err(err).
			Str("kind", string(e.Kind)).
			Str("examination_id", e.ID.String()).
			Msg("render table")
	}
	return Result{Examination: e, Table: t}
}

func (h *Handler) GetExamination(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	e, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return restError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) ListExaminations(c echo.Context) error {
	pg := pagination.FromContext(c)
	var kind exam.Kind
	if k := c.QueryParam("kind"); k != "" {
		parsed, err := exam.ParseKind(k)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		kind = parsed
	}
	items, total, err := h.svc.List(c.Request().Context(), kind, pg)
	if err != nil {
		return restError(err)
	}
	summaries := make([]Summary, 0, len(items))
	for _, e := range items {
		summaries = append(summaries, e.Summary())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(summaries, total, pg))
}

func (h *Handler) DeleteExamination(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return restError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetTable(c echo.Context) error {
	kind, err := exam.ParseKind(c.Param("kind"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	pg := pagination.FromContext(c)
	t, total, err := h.svc.Table(c.Request().Context(), kind, pg)
	if err != nil {
		return restError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(t, total, pg))
}

func readForm(c echo.Context) (exam.Kind, []byte, error) {
	kind, err := exam.ParseKind(c.Param("kind"))
	if err != nil {
		return "", nil, echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return "", nil, echo.NewHTTPError(http.StatusBadRequest, "failed to read body").SetInternal(err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", nil, echo.NewHTTPError(http.StatusBadRequest, "form body is required")
	}
	return kind, body, nil
}

func restError(err error) error {
	var verr *exam.ValidationError
	var cerr *ConformanceError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, issuesResponse{Message: "invalid examination", Issues: verr.Issues})
	case errors.As(err, &cerr):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, issuesResponse{Message: "generated resources are not conformant", Issues: cerr.Issues})
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "examination not found")
	case errors.Is(err, exam.ErrUnknownKind), errors.Is(err, table.ErrNoView):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
}

// -- FHIR endpoints --

// ConvertFHIR handles POST /fhir/$convert/:kind. The response is a
// collection Bundle holding one Bundle per documented eye, followed by an
// OperationOutcome when the form raised warnings.
func (h *Handler) ConvertFHIR(c echo.Context) error {
	kind, err := exam.ParseKind(c.Param("kind"))
	if err != nil {
		return c.JSON(http.StatusNotFound, fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeNotSupported, err.Error()))
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read body").SetInternal(err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return c.JSON(http.StatusBadRequest, fhir.RequiredFieldOutcome("body"))
	}
	e, err := h.svc.Preview(c.Request().Context(), kind, body)
	if err != nil {
		return fhirError(c, err)
	}
	env, err := e.Envelope()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, fhir.InternalErrorOutcome(err.Error()))
	}
	if len(e.Warnings) > 0 {
		raw, err := json.Marshal(fhir.MultiValidationOutcome(e.Warnings.ValidationIssues()))
		if err != nil {
			return c.JSON(http.StatusInternalServerError, fhir.InternalErrorOutcome(err.Error()))
		}
		env.Entry = append(env.Entry, fhir.BundleEntry{Resource: raw})
	}
	return c.JSON(http.StatusOK, env)
}

// GetBundleFHIR returns the envelope Bundle of a stored examination.
func (h *Handler) GetBundleFHIR(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("Bundle", c.Param("id")))
	}
	e, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("Bundle", c.Param("id")))
		}
		return fhirError(c, err)
	}
	env, err := e.Envelope()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, fhir.InternalErrorOutcome(err.Error()))
	}
	return c.JSON(http.StatusOK, env)
}

// CapabilityStatement handles GET /fhir/metadata.
func (h *Handler) CapabilityStatement(c echo.Context) error {
	base := c.Scheme() + "://" + c.Request().Host + "/fhir"
	resources := []fhir.CSResource{
		fhir.ResourceCapability("Bundle", "read"),
		fhir.ResourceCapability("CodeSystem", "read", "search-type"),
	}
	resources[1].Operation = []fhir.CSOperation{{
		Name:       "validate-code",
		Definition: "http://hl7.org/fhir/OperationDefinition/CodeSystem-validate-code",
	}}
	ops := make([]fhir.CSOperation, 0, len(h.svc.Kinds()))
	for _, k := range h.svc.Kinds() {
		ops = append(ops, fhir.CSOperation{
			Name:       "convert/" + string(k),
			Definition: base + "/OperationDefinition/convert-" + string(k),
		})
	}
	return c.JSON(http.StatusOK, fhir.NewCapabilityStatement(base, resources, ops))
}

func fhirError(c echo.Context, err error) error {
	var verr *exam.ValidationError
	var cerr *ConformanceError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusUnprocessableEntity, fhir.MultiValidationOutcome(verr.Issues.ValidationIssues()))
	case errors.As(err, &cerr):
		return c.JSON(http.StatusUnprocessableEntity, fhir.MultiValidationOutcome(cerr.Issues))
	case errors.Is(err, ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeInvalid, err.Error()))
	case errors.Is(err, exam.ErrUnknownKind):
		return c.JSON(http.StatusNotFound, fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeNotSupported, err.Error()))
	case errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return c.JSON(http.StatusInternalServerError, fhir.InternalErrorOutcome(err.Error()))
}
