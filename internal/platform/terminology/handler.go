package terminology

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eyecare/eyecare/internal/platform/fhir"
)

// Handler serves the CodeSystem endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes adds the CodeSystem routes to the FHIR group.
func (h *Handler) RegisterRoutes(fhirGroup *echo.Group) {
	fhirGroup.GET("/CodeSystem", h.Search)
	fhirGroup.GET("/CodeSystem/$validate-code", h.ValidateCode)
	fhirGroup.GET("/CodeSystem/:id", h.Read)
}

// Search handles GET /fhir/CodeSystem, optionally filtered by url.
func (h *Handler) Search(c echo.Context) error {
	url := c.QueryParam("url")
	var resources []interface{}
	for _, cs := range h.svc.CodeSystems() {
		if url != "" && cs.URL != url {
			continue
		}
		resources = append(resources, cs.ToFHIR())
	}
	bundle := fhir.NewSearchBundleWithLinks(resources, fhir.SearchBundleParams{
		BaseURL:  "/fhir/CodeSystem",
		QueryStr: c.QueryString(),
		Count:    len(resources),
		Total:    len(resources),
	})
	return c.JSON(http.StatusOK, bundle)
}

// Read handles GET /fhir/CodeSystem/:id.
func (h *Handler) Read(c echo.Context) error {
	cs, ok := h.svc.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("CodeSystem", c.Param("id")))
	}
	return c.JSON(http.StatusOK, cs.ToFHIR())
}

// ValidateCode handles GET /fhir/CodeSystem/$validate-code?system=&code=.
func (h *Handler) ValidateCode(c echo.Context) error {
	system := c.QueryParam("system")
	if system == "" {
		system = c.QueryParam("url")
	}
	code := c.QueryParam("code")
	if system == "" {
		return c.JSON(http.StatusBadRequest, fhir.NewOperationOutcome("error", "required", "Parameter 'system' is required"))
	}
	if code == "" {
		return c.JSON(http.StatusBadRequest, fhir.NewOperationOutcome("error", "required", "Parameter 'code' is required"))
	}

	res, err := h.svc.Check(c.Request().Context(), system, code)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, fhir.ErrorOutcome(err.Error()))
	}
	return c.JSON(http.StatusOK, parameters(res))
}

func parameters(r *Result) map[string]interface{} {
	params := []interface{}{
		map[string]interface{}{
			"name":         "result",
			"valueBoolean": r.Valid,
		},
	}
	if r.Display != "" {
		params = append(params, map[string]interface{}{
			"name":        "display",
			"valueString": r.Display,
		})
	}
	if r.Message != "" {
		params = append(params, map[string]interface{}{
			"name":        "message",
			"valueString": r.Message,
		})
	}
	return map[string]interface{}{
		"resourceType": "Parameters",
		"parameter":    params,
	}
}
