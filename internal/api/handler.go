// Package api exposes the cube engine over HTTP: definition listings, query
// execution, and filter state management.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cube-demo/internal/cube"
	"cube-demo/internal/domain"
	"cube-demo/internal/middleware"
)

// CubeProvider hands out the current engine. Hosts that reload datasets swap
// the engine behind this interface without restarting the server.
type CubeProvider interface {
	Cube() *cube.Hypercube
}

// Handler serves the JSON API.
type Handler struct {
	provider CubeProvider
	logger   *slog.Logger
}

// NewHandler builds a Handler around a cube provider.
func NewHandler(provider CubeProvider, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{provider: provider, logger: logger}
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type metricResponse struct {
	Name        string `json:"name"`
	Expression  string `json:"expression"`
	Aggregation string `json:"aggregation"`
}

type computedMetricResponse struct {
	Name       string       `json:"name"`
	Expression string       `json:"expression"`
	Fillna     domain.Value `json:"fillna"` // null when no fill policy is set
}

type sortKeyResponse struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc,omitempty"`
}

type queryResponse struct {
	Name               string            `json:"name"`
	Dimensions         []string          `json:"dimensions,omitempty"`
	Metrics            []string          `json:"metrics,omitempty"`
	ComputedMetrics    []string          `json:"computed_metrics,omitempty"`
	Having             string            `json:"having,omitempty"`
	DropNullDimensions bool              `json:"drop_null_dimensions,omitempty"`
	Sort               []sortKeyResponse `json:"sort,omitempty"`
}

type resultResponse struct {
	Columns []string         `json:"columns"`
	Rows    [][]domain.Value `json:"rows"`
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatusFromDomainError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			"path", r.URL.Path,
			"request_id", middleware.RequestIDFromContext(r.Context()),
			"error", err)
	}
	h.respondJSON(w, status, errorResponse{Code: status, Message: err.Error()})
}

// filterStateParam reads the filter state from the query string, defaulting
// to the current state.
func filterStateParam(r *http.Request) string {
	if s := r.URL.Query().Get("state"); s != "" {
		return s
	}
	return cube.StateCurrent
}

func (h *Handler) getHealthz(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) getDimensions(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string][]string{
		"dimensions": h.provider.Cube().Dimensions(),
	})
}

func (h *Handler) getDimensionValues(w http.ResponseWriter, r *http.Request) {
	names := r.URL.Query()["name"]
	if len(names) == 0 {
		names = h.provider.Cube().Dimensions()
	}
	values, err := h.provider.Cube().DimensionValues(names, filterStateParam(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, values)
}

func (h *Handler) getMetrics(w http.ResponseWriter, r *http.Request) {
	defs := h.provider.Cube().Metrics()
	out := make([]metricResponse, len(defs))
	for i, def := range defs {
		out[i] = metricResponse{
			Name:        def.Name,
			Expression:  def.Expression,
			Aggregation: def.Aggregation.Name(),
		}
	}
	h.respondJSON(w, http.StatusOK, out)
}

func (h *Handler) getComputedMetrics(w http.ResponseWriter, r *http.Request) {
	defs := h.provider.Cube().ComputedMetrics()
	out := make([]computedMetricResponse, len(defs))
	for i, def := range defs {
		out[i] = computedMetricResponse{Name: def.Name, Expression: def.Expression}
		if def.HasFill {
			out[i].Fillna = def.FillValue
		}
	}
	h.respondJSON(w, http.StatusOK, out)
}

func queryToResponse(def cube.QueryDef) queryResponse {
	sortKeys := make([]sortKeyResponse, len(def.Sort))
	for i, sk := range def.Sort {
		sortKeys[i] = sortKeyResponse{Column: sk.Column, Desc: sk.Descending}
	}
	return queryResponse{
		Name:               def.Name,
		Dimensions:         def.Dimensions,
		Metrics:            def.Metrics,
		ComputedMetrics:    def.ComputedMetrics,
		Having:             def.Having,
		DropNullDimensions: def.DropNullDimensions,
		Sort:               sortKeys,
	}
}

func (h *Handler) getQueries(w http.ResponseWriter, r *http.Request) {
	defs := h.provider.Cube().Queries()
	out := make([]queryResponse, len(defs))
	for i, def := range defs {
		out[i] = queryToResponse(def)
	}
	h.respondJSON(w, http.StatusOK, out)
}

func (h *Handler) getQuery(w http.ResponseWriter, r *http.Request) {
	def, err := h.provider.Cube().GetQuery(chi.URLParam(r, "name"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, queryToResponse(def))
}

func (h *Handler) runQuery(w http.ResponseWriter, r *http.Request) {
	res, err := h.provider.Cube().QueryState(chi.URLParam(r, "name"), filterStateParam(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, resultResponse{Columns: res.Columns, Rows: res.Rows})
}

func (h *Handler) getFilters(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.provider.Cube().Filters(chi.URLParam(r, "state")))
}

func (h *Handler) putFilters(w http.ResponseWriter, r *http.Request) {
	var criteria cube.Criteria
	if err := json.NewDecoder(r.Body).Decode(&criteria); err != nil {
		h.respondJSON(w, http.StatusBadRequest, errorResponse{
			Code:    http.StatusBadRequest,
			Message: "invalid criteria body: " + err.Error(),
		})
		return
	}
	state := chi.URLParam(r, "state")
	if err := h.provider.Cube().FilterState(state, criteria); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, h.provider.Cube().Filters(state))
}

func (h *Handler) deleteFilters(w http.ResponseWriter, r *http.Request) {
	if err := h.provider.Cube().ResetFilters(chi.URLParam(r, "state")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
