// Package ui serves the server-rendered dashboard: filter sidebar, query
// picker, result table, and bar charts, all over plain form submits.
package ui

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	gomponents "maragu.dev/gomponents"
	html "maragu.dev/gomponents/html"

	"cube-demo/internal/cube"
)

// CubeProvider hands out the current engine, mirroring the API surface so
// both frontends can share one host.
type CubeProvider interface {
	Cube() *cube.Hypercube
}

// Handler renders the dashboard pages.
type Handler struct {
	provider CubeProvider
	logger   *slog.Logger
}

func NewHandler(provider CubeProvider, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{provider: provider, logger: logger}
}

// Router returns the UI routes, suitable for mounting at the host root.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.getDashboard)
	r.Post("/filters", h.postFilters)
	r.Post("/filters/reset", h.postFiltersReset)
	r.Get("/static/app.css", h.getStylesheet)
	return r
}

func (h *Handler) renderHTML(w http.ResponseWriter, status int, page gomponents.Node) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := page.Render(w); err != nil {
		h.logger.Error("render failed", "error", err)
	}
}

func (h *Handler) renderError(w http.ResponseWriter, status int, err error) {
	h.renderHTML(w, status, errorPage("Something went wrong", err.Error()))
}

func (h *Handler) getDashboard(w http.ResponseWriter, r *http.Request) {
	c := h.provider.Cube()

	queries := c.Queries()
	queryName := r.URL.Query().Get("query")
	if queryName == "" && len(queries) > 0 {
		queryName = queries[0].Name
	}

	dims := c.Dimensions()
	options, err := c.DimensionValues(dims, cube.StateUnfiltered)
	if err != nil {
		h.renderError(w, http.StatusInternalServerError, err)
		return
	}

	body := []gomponents.Node{
		queryPicker(queries, queryName),
		html.Div(
			html.Class("grid"),
			filterSidebar(dims, options, c.Filters(cube.StateCurrent), queryName),
			html.Div(
				html.Class("content"),
				gomponents.Group(h.queryPanels(c, queryName)),
				definitionsCard(c.Metrics(), c.ComputedMetrics()),
			),
		),
	}
	h.renderHTML(w, http.StatusOK, appPage("Dashboard", body...))
}

// queryPanels renders the result table and one bar chart per metric column of
// the selected query, or an inline error when execution fails.
func (h *Handler) queryPanels(c *cube.Hypercube, queryName string) []gomponents.Node {
	if queryName == "" {
		return []gomponents.Node{html.P(gomponents.Text("No queries defined."))}
	}

	def, err := c.GetQuery(queryName)
	if err != nil {
		return []gomponents.Node{html.P(html.Class("error"), gomponents.Text(err.Error()))}
	}
	res, err := c.QueryState(queryName, cube.StateCurrent)
	if err != nil {
		return []gomponents.Node{html.P(html.Class("error"), gomponents.Text(err.Error()))}
	}

	panels := []gomponents.Node{resultTable(res)}
	if len(def.Dimensions) > 0 {
		for col := len(def.Dimensions); col < len(res.Columns); col++ {
			if chart := barChart(res, 0, col); chart != nil {
				panels = append(panels, chart)
			}
		}
	}
	return panels
}

func (h *Handler) postFilters(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderError(w, http.StatusBadRequest, err)
		return
	}

	criteria := cube.Criteria{}
	for key, vals := range r.PostForm {
		dim, ok := strings.CutPrefix(key, "dim:")
		if !ok {
			continue
		}
		picked := make([]string, 0, len(vals))
		for _, v := range vals {
			if v != "" {
				picked = append(picked, v)
			}
		}
		if len(picked) > 0 {
			criteria[dim] = picked
		}
	}

	// The form posts the complete selection, and browsers omit multi-selects
	// with nothing picked. Reset first so a fully deselected dimension does
	// not keep its previous restriction.
	c := h.provider.Cube()
	if err := c.ResetFilters(cube.StateCurrent); err != nil {
		h.renderError(w, http.StatusBadRequest, err)
		return
	}
	if len(criteria) > 0 {
		if err := c.FilterState(cube.StateCurrent, criteria); err != nil {
			h.renderError(w, http.StatusBadRequest, err)
			return
		}
	}
	h.redirectToDashboard(w, r)
}

func (h *Handler) postFiltersReset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.provider.Cube().ResetFilters(cube.StateCurrent); err != nil {
		h.renderError(w, http.StatusBadRequest, err)
		return
	}
	h.redirectToDashboard(w, r)
}

func (h *Handler) redirectToDashboard(w http.ResponseWriter, r *http.Request) {
	target := "/"
	if q := r.PostForm.Get("query"); q != "" {
		target = "/?query=" + url.QueryEscape(q)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) getStylesheet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write([]byte(appCSS))
}

const appCSS = `
:root { --ink: #1f2933; --muted: #6b7280; --accent: #2563eb; --bg: #f3f4f6; }
* { box-sizing: border-box; }
body { margin: 0; font-family: system-ui, sans-serif; color: var(--ink); background: var(--bg); }
.layout { max-width: 1100px; margin: 0 auto; padding: 1.5rem; }
.page-title { margin: 0 0 1rem; font-size: 1.4rem; }
.nav { display: flex; gap: 0.75rem; margin-bottom: 1rem; flex-wrap: wrap; }
.nav a { color: var(--muted); text-decoration: none; padding: 0.25rem 0.5rem; border-radius: 4px; }
.nav a.active { color: var(--accent); background: #dbeafe; }
.grid { display: grid; grid-template-columns: 260px 1fr; gap: 1rem; align-items: start; }
.card { background: #fff; border-radius: 8px; padding: 1rem; margin-bottom: 1rem; box-shadow: 0 1px 2px rgba(0,0,0,0.08); }
.card h2 { margin: 0 0 0.75rem; font-size: 1rem; }
.sidebar label { display: block; margin: 0.5rem 0 0.25rem; font-size: 0.85rem; color: var(--muted); }
.sidebar select { width: 100%; min-height: 5rem; }
.sidebar button { margin-top: 0.75rem; padding: 0.4rem 0.9rem; border: none; border-radius: 4px; background: var(--accent); color: #fff; cursor: pointer; }
.sidebar button.secondary { background: var(--muted); }
table { border-collapse: collapse; width: 100%; }
th, td { text-align: left; padding: 0.4rem 0.6rem; border-bottom: 1px solid #e5e7eb; font-size: 0.9rem; }
th { color: var(--muted); font-weight: 600; }
.bar-row { display: grid; grid-template-columns: 10rem 1fr 5rem; gap: 0.5rem; align-items: center; margin: 0.3rem 0; }
.bar-label { font-size: 0.85rem; overflow: hidden; text-overflow: ellipsis; white-space: nowrap; }
.bar { height: 0.9rem; border-radius: 3px; background: var(--accent); min-width: 2px; }
.bar-value { font-size: 0.85rem; text-align: right; color: var(--muted); }
.error { color: #b91c1c; }
`
