package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/netmount/internal/storageservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *storageservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Storage definitions.
	r.Get("/storages", h.ListStorages)
	r.Post("/storages", h.CreateStorage)
	r.Post("/storages/refresh", h.RefreshStorages)
	r.Put("/storages/{name}", h.UpdateStorage)
	r.Delete("/storages/{name}", h.DeleteStorage)
	r.Get("/storages/{name}/parameters", h.StorageParameters)
	r.Get("/storages/{name}/form", h.EditForm)

	// Files and directories.
	r.Get("/storages/{name}/files", h.ListFiles)
	r.Get("/storages/{name}/files/*", h.ListFiles)
	r.Delete("/storages/{name}/files/*", h.DeleteFile)
	r.Post("/storages/{name}/dirs/*", h.CreateDirectory)
	r.Post("/transfers", h.Transfer)

	// Mounts.
	r.Post("/storages/{name}/mount", h.Mount)
	r.Post("/mounts/unmount", h.Unmount)
	r.Get("/mounts", h.ListMounts)

	// Kind catalog.
	r.Get("/kinds", h.ListKinds)
	r.Get("/kinds/{kind}", h.GetKind)

	// Operation journal.
	r.Get("/operations", h.ListOperations)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
