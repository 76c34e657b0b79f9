package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starford/netmount/internal/journal"
	"github.com/starford/netmount/internal/storageservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *storageservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *storageservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListStorages handles GET /api/storages.
//
//	@Summary		List configured storages
//	@Tags			storages
//	@Produce		json
//	@Success		200	{object}	StorageListResponse
//	@Security		BearerAuth
//	@Router			/storages [get]
func (h *Handler) ListStorages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StorageListResponse{Storages: h.svc.Storages()})
}

// RefreshStorages handles POST /api/storages/refresh.
//
//	@Summary		Reload the storage list from the backend
//	@Tags			storages
//	@Produce		json
//	@Success		200	{object}	StorageListResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/storages/refresh [post]
func (h *Handler) RefreshStorages(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Refresh(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StorageListResponse{Storages: h.svc.Storages()})
}

// CreateStorage handles POST /api/storages.
//
//	@Summary		Register a new storage
//	@Tags			storages
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateStorageRequest	true	"Storage definition"
//	@Success		201		{object}	StorageListResponse
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/storages [post]
func (h *Handler) CreateStorage(w http.ResponseWriter, r *http.Request) {
	var req CreateStorageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.CreateStorage(r.Context(), req.Name, req.Kind, req.Parameters); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, StorageListResponse{Storages: h.svc.Storages()})
}

// UpdateStorage handles PUT /api/storages/{name}.
//
//	@Summary		Replace the parameters of a storage
//	@Tags			storages
//	@Accept			json
//	@Produce		json
//	@Param			name	path		string					true	"Storage name"
//	@Param			body	body		UpdateStorageRequest	true	"New parameters"
//	@Success		200		{object}	StorageListResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/storages/{name} [put]
func (h *Handler) UpdateStorage(w http.ResponseWriter, r *http.Request) {
	var req UpdateStorageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.UpdateStorage(r.Context(), chi.URLParam(r, "name"), req.Parameters); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StorageListResponse{Storages: h.svc.Storages()})
}

// DeleteStorage handles DELETE /api/storages/{name}.
//
//	@Summary		Remove a storage definition
//	@Tags			storages
//	@Param			name	path	string	true	"Storage name"
//	@Success		204		"Storage removed"
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/storages/{name} [delete]
func (h *Handler) DeleteStorage(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteStorage(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StorageParameters handles GET /api/storages/{name}/parameters.
//
//	@Summary		Get the stored configuration of a storage
//	@Tags			storages
//	@Produce		json
//	@Param			name	path		string	true	"Storage name"
//	@Success		200		{object}	map[string]any
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/storages/{name}/parameters [get]
func (h *Handler) StorageParameters(w http.ResponseWriter, r *http.Request) {
	params, err := h.svc.Parameters(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, params)
}

// EditForm handles GET /api/storages/{name}/form.
//
//	@Summary		Get the kind schema pre-filled with a storage's values
//	@Tags			storages
//	@Produce		json
//	@Param			name	path		string	true	"Storage name"
//	@Success		200		{object}	storageservice.Form
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/storages/{name}/form [get]
func (h *Handler) EditForm(w http.ResponseWriter, r *http.Request) {
	form, err := h.svc.EditForm(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// ListKinds handles GET /api/kinds.
//
//	@Summary		List configurable storage kinds
//	@Tags			kinds
//	@Produce		json
//	@Success		200	{object}	map[string]any
//	@Security		BearerAuth
//	@Router			/kinds [get]
func (h *Handler) ListKinds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"kinds": h.svc.Kinds()})
}

// GetKind handles GET /api/kinds/{kind}.
func (h *Handler) GetKind(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Kind(chi.URLParam(r, "kind"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("unknown kind"))
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// ListOperations handles GET /api/operations.
//
//	@Summary		List recent storage operations
//	@Tags			operations
//	@Produce		json
//	@Param			storage	query		string	false	"Filter by storage"
//	@Param			limit	query		int		false	"Max records"
//	@Success		200		{object}	OperationListResponse
//	@Security		BearerAuth
//	@Router			/operations [get]
func (h *Handler) ListOperations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	recs, err := h.svc.History(r.Context(), journal.Filter{Storage: q.Get("storage"), Limit: limit})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OperationListResponse{Operations: recs})
}
