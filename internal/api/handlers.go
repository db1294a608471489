package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tribuna/internal/caseservice"
	"github.com/starford/tribuna/internal/cnj"
)

const maxPayloadBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *caseservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *caseservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListTribunals handles GET /api/tribunals.
//
//	@Summary		List the CNJ tribunal table
//	@Tags			tribunals
//	@Produce		json
//	@Success		200	{object}	TribunalListResponse
//	@Security		BearerAuth
//	@Router			/tribunals [get]
func (h *Handler) ListTribunals(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, TribunalListResponse{Tribunals: cnj.Tribunals()})
}

// ResolveTribunal handles GET /api/tribunals/resolve.
//
//	@Summary		Resolve the tribunal of a CNJ number
//	@Tags			tribunals
//	@Produce		json
//	@Param			numero	query		string	true	"CNJ number, masked or not"
//	@Success		200		{object}	ResolveResponse
//	@Security		BearerAuth
//	@Router			/tribunals/resolve [get]
func (h *Handler) ResolveTribunal(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("numero")
	writeJSON(w, http.StatusOK, ResolveResponse{
		Numero:    cnj.Normalize(raw),
		Formatted: cnj.Format(raw),
		Valid:     cnj.Valid(raw),
		Tribunal:  cnj.ResolveTribunal(raw),
	})
}

// ListCases handles GET /api/cases.
//
//	@Summary		List registered cases
//	@Tags			cases
//	@Produce		json
//	@Param			limit	query		int	false	"Page size"
//	@Param			offset	query		int	false	"Page offset"
//	@Success		200		{object}	CaseListResponse
//	@Security		BearerAuth
//	@Router			/cases [get]
func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListCases(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, "list cases", err)
		return
	}
	writeJSON(w, http.StatusOK, CaseListResponse{Cases: nonNil(items), Total: total})
}

// CreateCase handles POST /api/cases.
//
//	@Summary		Register a case
//	@Tags			cases
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateCaseRequest	true	"Case to register"
//	@Success		201		{object}	CaseDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cases [post]
func (h *Handler) CreateCase(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CreateCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	c, err := h.svc.CreateCase(r.Context(), caseservice.CreateCaseInput{
		Number:     req.Numero,
		Title:      req.Title,
		Monitoring: req.Monitoring,
		Frequency:  req.Frequency,
	})
	if err != nil {
		writeServiceError(w, "create case", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// GetCase handles GET /api/cases/{id}.
//
//	@Summary		Get a case with its tribunal and unread count
//	@Tags			cases
//	@Produce		json
//	@Param			id	path		string	true	"Case ID"
//	@Success		200	{object}	CaseDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cases/{id} [get]
func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetCase(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "get case", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// UpdateMonitoring handles PUT /api/cases/{id}/monitoring.
//
//	@Summary		Enable or disable Datajud polling for a case
//	@Tags			cases
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Case ID"
//	@Param			body	body		MonitoringRequest	true	"Polling settings"
//	@Success		200		{object}	CaseDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cases/{id}/monitoring [put]
func (h *Handler) UpdateMonitoring(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req MonitoringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	c, err := h.svc.SetMonitoring(r.Context(), chi.URLParam(r, "id"), req.Enabled, req.Frequency)
	if err != nil {
		writeServiceError(w, "update monitoring", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ListMovements handles GET /api/cases/{id}/movements.
//
//	@Summary		List a case's movements, newest first
//	@Tags			movements
//	@Produce		json
//	@Param			id	path		string	true	"Case ID"
//	@Success		200	{object}	MovementsResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cases/{id}/movements [get]
func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	feed, err := h.svc.Feed(r.Context(), id)
	if err != nil {
		writeServiceError(w, "list movements", err)
		return
	}
	writeJSON(w, http.StatusOK, MovementsResponse{CaseID: id, Movements: nonNil(feed.Movements), Unread: feed.Unread})
}

// MarkRead handles POST /api/cases/{id}/movements/read.
//
//	@Summary		Mark every movement of a case as read
//	@Tags			movements
//	@Produce		json
//	@Param			id	path		string	true	"Case ID"
//	@Success		200	{object}	MarkReadResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cases/{id}/movements/read [post]
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.MarkRead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "mark read", err)
		return
	}
	writeJSON(w, http.StatusOK, MarkReadResponse{Marked: n})
}

// RefreshCase handles POST /api/cases/{id}/refresh.
//
//	@Summary		Fetch a case from Datajud and merge new movements
//	@Tags			movements
//	@Produce		json
//	@Param			id	path		string	true	"Case ID"
//	@Success		200	{object}	RefreshResult
//	@Failure		404	{object}	errResponse
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cases/{id}/refresh [post]
func (h *Handler) RefreshCase(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Refresh(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "refresh case", err)
		return
	}
	res.Movements = nonNil(res.Movements)
	writeJSON(w, http.StatusOK, res)
}

// ImportPayload handles POST /api/cases/{id}/import.
//
//	@Summary		Merge a Datajud search response obtained out of band
//	@Tags			movements
//	@Accept			json
//	@Produce		json
//	@Param			id	path		string	true	"Case ID"
//	@Success		200	{object}	RefreshResult
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cases/{id}/import [post]
func (h *Handler) ImportPayload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPayloadBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	res, err := h.svc.ImportForCase(r.Context(), chi.URLParam(r, "id"), payload)
	if err != nil {
		writeServiceError(w, "import payload", err)
		return
	}
	slog.Debug("payload imported", slog.String("case_id", res.CaseID), slog.Int("added", res.Added))
	res.Movements = nonNil(res.Movements)
	writeJSON(w, http.StatusOK, res)
}

// SearchMovements handles GET /api/movements/search.
//
//	@Summary		Search movement names and supplements
//	@Tags			movements
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/movements/search [get]
func (h *Handler) SearchMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.SearchMovements(r.Context(), q, limit)
	if err != nil {
		writeServiceError(w, "search movements", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: nonNil(results)})
}
