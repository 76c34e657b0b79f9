// Package storageservice coordinates the storage layer for the outer
// surfaces (HTTP API, MCP): it runs executor operations, journals their
// outcome and announces completed file operations to subscribers.
package storageservice

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/starford/netmount/internal/apperr"
	"github.com/starford/netmount/internal/journal"
	"github.com/starford/netmount/internal/models"
	"github.com/starford/netmount/internal/registry"
	"github.com/starford/netmount/internal/schema"
	"github.com/starford/netmount/internal/storageops"
)

// Journal persists operation outcomes.
type Journal interface {
	Record(ctx context.Context, rec models.OperationRecord) (int64, error)
	List(ctx context.Context, f journal.Filter) ([]models.OperationRecord, error)
}

// Events receives completed file and tree operations.
type Events interface {
	OperationCompleted(rec models.OperationRecord)
}

// Form is a storage kind schema pre-filled for editing one storage.
type Form struct {
	Name   string        `json:"name"`
	Kind   string        `json:"kind"`
	Schema schema.Schema `json:"schema"`
}

// TransferMode selects copy or move.
type TransferMode string

const (
	TransferCopy TransferMode = "copy"
	TransferMove TransferMode = "move"
)

// Transfer describes a copy or move between two locations.
type Transfer struct {
	Mode    TransferMode   `json:"mode"`
	Tree    bool           `json:"tree"`
	Src     models.PathRef `json:"src"`
	Dst     models.PathRef `json:"dst"`
	NewName string         `json:"new_name,omitempty"`
}

// Service is the entry point used by the HTTP and MCP layers.
type Service struct {
	exec     *storageops.Executor
	registry *registry.Registry
	catalog  *schema.Catalog
	journal  Journal
	events   Events
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Service. journal and events may be nil.
func New(exec *storageops.Executor, reg *registry.Registry, catalog *schema.Catalog, j Journal, events Events, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		exec:     exec,
		registry: reg,
		catalog:  catalog,
		journal:  j,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// Storages returns the current registry snapshot.
func (s *Service) Storages() []models.StorageDescriptor {
	return s.registry.List()
}

// Refresh reloads the registry from the backend.
func (s *Service) Refresh(ctx context.Context) error {
	return s.registry.Refresh(ctx)
}

// Kinds lists the configurable storage kinds.
func (s *Service) Kinds() []schema.Schema {
	return s.catalog.Kinds()
}

// Kind returns the schema of one kind.
func (s *Service) Kind(kind string) (schema.Schema, error) {
	return s.catalog.SchemaFor(kind)
}

// Parameters returns the stored configuration of a storage.
func (s *Service) Parameters(ctx context.Context, name string) (schema.Parameters, error) {
	return s.registry.FetchParameters(ctx, name)
}

// EditForm returns the schema of name's kind with defaults replaced by the
// storage's current configuration.
func (s *Service) EditForm(ctx context.Context, name string) (*Form, error) {
	current, err := s.registry.FetchParameters(ctx, name)
	if err != nil {
		return nil, err
	}
	kind, _ := current["type"].(string)
	sch, err := s.catalog.SchemaFor(kind)
	if err != nil {
		return nil, err
	}
	return &Form{Name: name, Kind: kind, Schema: schema.MergeSchema(sch, current)}, nil
}

// CreateStorage registers a new storage.
func (s *Service) CreateStorage(ctx context.Context, name, kind string, values schema.Parameters) error {
	return s.run(ctx, func() (storageops.Result, error) {
		return s.exec.CreateStorage(ctx, name, kind, values)
	})
}

// UpdateStorage replaces a storage's parameters.
func (s *Service) UpdateStorage(ctx context.Context, name string, values schema.Parameters) error {
	return s.run(ctx, func() (storageops.Result, error) {
		return s.exec.UpdateStorage(ctx, name, values)
	})
}

// DeleteStorage removes a storage definition.
func (s *Service) DeleteStorage(ctx context.Context, name string) error {
	return s.run(ctx, func() (storageops.Result, error) {
		return s.exec.DeleteStorage(ctx, name)
	})
}

// List returns the entries of a directory.
func (s *Service) List(ctx context.Context, storage, path string) ([]models.FileEntry, error) {
	return s.exec.ListChildren(ctx, storage, path)
}

// DeleteFile removes one file.
func (s *Service) DeleteFile(ctx context.Context, storage, path string) error {
	return s.run(ctx, func() (storageops.Result, error) {
		return s.exec.DeleteFile(ctx, storage, path)
	})
}

// DeleteTree purges a directory recursively.
func (s *Service) DeleteTree(ctx context.Context, storage, path string) error {
	return s.run(ctx, func() (storageops.Result, error) {
		return s.exec.DeleteTree(ctx, storage, path)
	})
}

// CreateDirectory makes a directory.
func (s *Service) CreateDirectory(ctx context.Context, storage, path string) error {
	return s.run(ctx, func() (storageops.Result, error) {
		return s.exec.CreateDirectory(ctx, storage, path)
	})
}

// Transfer copies or moves a file or a tree. It returns the request sent to
// the backend so callers can show where the data ended up.
func (s *Service) Transfer(ctx context.Context, t Transfer) (models.OperationRequest, error) {
	var op func(context.Context, models.PathRef, models.PathRef, string) (storageops.Result, error)
	switch {
	case t.Mode == TransferCopy && !t.Tree:
		op = s.exec.CopyFile
	case t.Mode == TransferMove && !t.Tree:
		op = s.exec.MoveFile
	case t.Mode == TransferCopy && t.Tree:
		op = s.exec.CopyTree
	case t.Mode == TransferMove && t.Tree:
		op = s.exec.MoveTree
	default:
		return models.OperationRequest{}, &apperr.ValidationError{Key: schema.MsgParameterOption, Field: "mode"}
	}

	var req models.OperationRequest
	err := s.run(ctx, func() (storageops.Result, error) {
		res, err := op(ctx, t.Src, t.Dst, t.NewName)
		req = res.Request
		return res, err
	})
	return req, err
}

// Mount exposes a storage as a local mount point.
func (s *Service) Mount(ctx context.Context, storage, mountPoint string) (string, error) {
	var mp string
	err := s.run(ctx, func() (storageops.Result, error) {
		res, err := s.exec.MountStorage(ctx, storage, mountPoint)
		mp = res.Request.Dst.Path
		return res, err
	})
	return mp, err
}

// Unmount removes a mount.
func (s *Service) Unmount(ctx context.Context, mountPoint string) error {
	return s.run(ctx, func() (storageops.Result, error) {
		return s.exec.UnmountStorage(ctx, mountPoint)
	})
}

// Mounts lists active mounts.
func (s *Service) Mounts(ctx context.Context) ([]models.Mount, error) {
	return s.exec.ListMounts(ctx)
}

// History returns journaled operations, newest first.
func (s *Service) History(ctx context.Context, f journal.Filter) ([]models.OperationRecord, error) {
	if s.journal == nil {
		return []models.OperationRecord{}, nil
	}
	return s.journal.List(ctx, f)
}

// run executes op, journals the outcome and, for successful file and tree
// mutations, emits a completion event. Requests rejected before reaching the
// backend are not journaled.
func (s *Service) run(ctx context.Context, op func() (storageops.Result, error)) error {
	started := s.now()
	res, err := op()
	if err != nil && isLocalFailure(err) {
		return err
	}

	rec := models.OperationRecord{
		Kind:       res.Request.Kind,
		Src:        res.Request.Src,
		Dst:        res.Request.Dst,
		OK:         err == nil,
		StartedAt:  started,
		FinishedAt: s.now(),
	}
	if err != nil {
		rec.Error = err.Error()
		s.logger.Warn("operation failed",
			slog.String("kind", string(rec.Kind)),
			slog.String("storage", rec.Src.Storage),
			slog.String("error", err.Error()))
	}

	if s.journal != nil {
		id, jErr := s.journal.Record(context.WithoutCancel(ctx), rec)
		if jErr != nil {
			s.logger.Warn("journal record failed", slog.String("error", jErr.Error()))
		}
		rec.ID = id
	}
	if err == nil && rec.Kind.Mutating() && s.events != nil {
		s.events.OperationCompleted(rec)
	}
	return err
}

func isLocalFailure(err error) bool {
	return errors.Is(err, apperr.ErrValidation) || errors.Is(err, apperr.ErrUnknownKind)
}
