// Package web serves the examination forms: one tab per examination kind,
// the form itself and the table of stored results.
package web

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/eyecare/eyecare/internal/domain/exam"
	"github.com/eyecare/eyecare/internal/domain/examination"
	"github.com/eyecare/eyecare/internal/domain/ivi"
	"github.com/eyecare/eyecare/internal/platform/table"
	"github.com/eyecare/eyecare/pkg/pagination"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// BulmaURL is the stylesheet the pages load.
const BulmaURL = "https://cdn.jsdelivr.net/npm/bulma@1.0.2/css/bulma.min.css"

// Eye is the data passed to the per-eye form templates.
type Eye struct {
	Side    exam.Side
	Field   string
	Label   string
	Options Options
}

// Page is the data of the examination page.
type Page struct {
	Kinds     []exam.Kind
	Kind      exam.Kind
	Options   Options
	Eyes      []Eye
	Table     *table.Table
	Total     int
	Page      int
	PageCount int
	Error     string
	Bulma     string
	UploadURL string
}

// Handler renders the examination pages.
type Handler struct {
	svc       *examination.Service
	tmpl      *template.Template
	options   Options
	uploadURL string
	logger    zerolog.Logger
}

// NewHandler parses the embedded templates. uploadURL is the endpoint the
// OCT form posts DICOM files to.
func NewHandler(svc *examination.Service, catalog *ivi.Catalog, uploadURL string, logger zerolog.Logger) (*Handler, error) {
	tmpl, err := template.New("layout").Funcs(template.FuncMap{
		"title": func(k exam.Kind) string { return k.Title() },
		"seq":   seq,
		"add":   func(a, b int) int { return a + b },
		"sel":   func(name string, opts []Option) selectBox { return selectBox{Name: name, Options: opts} },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Handler{
		svc:       svc,
		tmpl:      tmpl,
		options:   newOptions(catalog),
		uploadURL: uploadURL,
		logger:    logger.With().Str("component", "web").Logger(),
	}, nil
}

// Render implements echo.Renderer.
func (h *Handler) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return h.tmpl.ExecuteTemplate(w, name, data)
}

// RegisterRoutes installs the handler as the renderer of e and mounts the
// pages and static assets. mw applies to the pages only.
func (h *Handler) RegisterRoutes(e *echo.Echo, mw ...echo.MiddlewareFunc) error {
	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return err
	}
	e.Renderer = h
	e.GET("/", h.Index, mw...)
	e.GET("/exams/:kind", h.ExamPage, mw...)
	e.StaticFS("/static", static)
	return nil
}

// Index redirects to the first examination tab.
func (h *Handler) Index(c echo.Context) error {
	kinds := h.svc.Kinds()
	if len(kinds) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "no examination forms configured")
	}
	return c.Redirect(http.StatusFound, "/exams/"+string(kinds[0]))
}

// ExamPage renders the form and the stored results of one kind.
func (h *Handler) ExamPage(c echo.Context) error {
	kind, err := exam.ParseKind(c.Param("kind"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if string(kind) != c.Param("kind") {
		return c.Redirect(http.StatusMovedPermanently, "/exams/"+string(kind))
	}

	pg := pagination.FromContext(c)

	p := Page{
		Kinds:     h.svc.Kinds(),
		Kind:      kind,
		Options:   h.options,
		Page:      pg.Page(),
		PageCount: 1,
		Bulma:     BulmaURL,
		UploadURL: h.uploadURL,
	}
	for _, s := range exam.Sides {
		p.Eyes = append(p.Eyes, Eye{Side: s, Field: s.Field(""), Label: s.Label() + " eye", Options: h.options})
	}
	t, total, err := h.svc.Table(c.Request().Context(), kind, pg)
	switch {
	case err == nil:
		p.Table, p.Total, p.PageCount = t, total, pg.PageCount(total)
	case errors.Is(err, table.ErrNoView):
		h.logger.Debug().Str("kind", string(kind)).Msg("no table view")
	default:
		h.logger.Error().Err(err).Str("kind", string(kind)).Msg("render results table")
		p.Error = "stored results could not be loaded"
	}
	return c.Render(http.StatusOK, "layout", p)
}

type selectBox struct {
	Name    string
	Options []Option
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
