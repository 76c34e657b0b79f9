package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starford/netmount/internal/remotepath"
)

// filePath extracts the remote path from the URL (everything after
// /files/ or /dirs/). Encoded slashes from generated clients are accepted.
func filePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListFiles handles GET /api/storages/{name}/files/*.
//
//	@Summary		List a directory
//	@Tags			files
//	@Produce		json
//	@Param			name	path		string	true	"Storage name"
//	@Param			path	path		string	false	"Directory path"
//	@Success		200		{object}	FileListResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/storages/{name}/files/{path} [get]
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	storage := chi.URLParam(r, "name")
	path := filePath(r)
	entries, err := h.svc.List(r.Context(), storage, path)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FileListResponse{
		Storage: storage,
		Path:    remotepath.Normalize(path, true),
		Entries: entries,
	})
}

// DeleteFile handles DELETE /api/storages/{name}/files/*. With
// ?recursive=true the path is purged as a directory tree.
//
//	@Summary		Delete a file or a directory tree
//	@Tags			files
//	@Param			name		path	string	true	"Storage name"
//	@Param			path		path	string	true	"File or directory path"
//	@Param			recursive	query	bool	false	"Delete a directory and its contents"
//	@Success		204			"Deleted"
//	@Failure		400			{object}	errResponse
//	@Failure		502			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/storages/{name}/files/{path} [delete]
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	storage := chi.URLParam(r, "name")
	path := filePath(r)
	recursive, _ := strconv.ParseBool(r.URL.Query().Get("recursive"))

	var err error
	if recursive {
		err = h.svc.DeleteTree(r.Context(), storage, path)
	} else {
		err = h.svc.DeleteFile(r.Context(), storage, path)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateDirectory handles POST /api/storages/{name}/dirs/*.
//
//	@Summary		Create a directory
//	@Tags			files
//	@Param			name	path	string	true	"Storage name"
//	@Param			path	path	string	true	"Directory path"
//	@Success		201		"Created"
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/storages/{name}/dirs/{path} [post]
func (h *Handler) CreateDirectory(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CreateDirectory(r.Context(), chi.URLParam(r, "name"), filePath(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// Transfer handles POST /api/transfers.
//
//	@Summary		Copy or move a file or a directory tree
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Param			body	body		TransferRequest	true	"Transfer"
//	@Success		200		{object}	OperationResponse
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/transfers [post]
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	issued, err := h.svc.Transfer(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OperationResponse{Request: issued})
}

// Mount handles POST /api/storages/{name}/mount.
//
//	@Summary		Mount a storage locally
//	@Tags			mounts
//	@Accept			json
//	@Produce		json
//	@Param			name	path		string			true	"Storage name"
//	@Param			body	body		MountRequest	false	"Mount point"
//	@Success		200		{object}	MountResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/storages/{name}/mount [post]
func (h *Handler) Mount(w http.ResponseWriter, r *http.Request) {
	var req MountRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	mp, err := h.svc.Mount(r.Context(), chi.URLParam(r, "name"), req.MountPoint)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MountResponse{MountPoint: mp})
}

// Unmount handles POST /api/mounts/unmount.
//
//	@Summary		Remove a mount
//	@Tags			mounts
//	@Accept			json
//	@Param			body	body	UnmountRequest	true	"Mount point"
//	@Success		204		"Unmounted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/mounts/unmount [post]
func (h *Handler) Unmount(w http.ResponseWriter, r *http.Request) {
	var req UnmountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.Unmount(r.Context(), req.MountPoint); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMounts handles GET /api/mounts.
func (h *Handler) ListMounts(w http.ResponseWriter, r *http.Request) {
	mounts, err := h.svc.Mounts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mounts": mounts})
}
