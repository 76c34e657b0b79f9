// Package storageops translates storage operations into execution-backend
// requests. It is a thin synchronous bridge: one backend call per operation,
// no retries, no callbacks. Callers get the issued request back and decide
// how to refresh their own views.
package storageops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/starford/netmount/internal/apperr"
	"github.com/starford/netmount/internal/models"
	"github.com/starford/netmount/internal/rc"
	"github.com/starford/netmount/internal/registry"
	"github.com/starford/netmount/internal/remotepath"
	"github.com/starford/netmount/internal/schema"
)

// Message keys for path level validation failures.
const (
	MsgPathRequired       = "path_required"
	MsgFileNameInvalid    = "file_name_invalid"
	MsgMountPointRequired = "mount_point_required"
)

// Result describes what was sent to the backend.
type Result struct {
	Request models.OperationRequest `json:"request"`
}

// Executor issues storage operations against the backend.
type Executor struct {
	caller   rc.Caller
	catalog  *schema.Catalog
	registry *registry.Registry
	mountDir string
	logger   *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithMountDir sets the directory under which storages are mounted when no
// explicit mount point is given.
func WithMountDir(dir string) Option {
	return func(e *Executor) {
		e.mountDir = dir
	}
}

// WithLogger sets the executor's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// New creates an Executor. reg is refreshed after every call that changes
// the set of storages.
func New(caller rc.Caller, catalog *schema.Catalog, reg *registry.Registry, opts ...Option) *Executor {
	e := &Executor{
		caller:   caller,
		catalog:  catalog,
		registry: reg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateStorage validates values against the schema of kind, registers the
// storage with the backend and refreshes the registry. The refresh runs
// whether or not the backend accepted the definition.
func (e *Executor) CreateStorage(ctx context.Context, name, kind string, values schema.Parameters) (Result, error) {
	req := models.OperationRequest{
		Kind:   models.OpCreateStorage,
		Method: rc.MethodConfigCreate,
		Src:    models.PathRef{Storage: name},
	}
	s, err := e.catalog.SchemaFor(kind)
	if err != nil {
		return Result{Request: req}, err
	}
	if r := schema.Validate(name, values, s); !r.OK {
		return Result{Request: req}, &apperr.ValidationError{Key: r.Message, Field: r.Field}
	}

	params := rc.Params{
		"name":       name,
		"type":       kind,
		"parameters": schema.Encode(schema.BuildEffectiveParameters(values, s), s),
		"opt": map[string]any{
			"nonInteractive": true,
			"obscure":        true,
		},
	}
	callErr := e.caller.Call(ctx, req.Method, params, nil)
	if callErr != nil {
		callErr = fmt.Errorf("storageops: create %s: %w", name, rc.Classify(callErr))
	}
	return Result{Request: req}, errors.Join(callErr, e.registry.Refresh(ctx))
}

// UpdateStorage replaces the parameters of an existing storage. The kind is
// read back from the backend so the right schema validates the input.
func (e *Executor) UpdateStorage(ctx context.Context, name string, values schema.Parameters) (Result, error) {
	req := models.OperationRequest{
		Kind:   models.OpUpdateStorage,
		Method: rc.MethodConfigUpdate,
		Src:    models.PathRef{Storage: name},
	}
	current, err := e.registry.FetchParameters(ctx, name)
	if err != nil {
		return Result{Request: req}, err
	}
	kind, _ := current["type"].(string)
	s, err := e.catalog.SchemaFor(kind)
	if err != nil {
		return Result{Request: req}, err
	}
	if r := schema.Validate(name, values, s); !r.OK {
		return Result{Request: req}, &apperr.ValidationError{Key: r.Message, Field: r.Field}
	}

	params := rc.Params{
		"name":       name,
		"parameters": schema.Encode(schema.BuildEffectiveParameters(values, s), s),
		"opt": map[string]any{
			"nonInteractive": true,
			"obscure":        true,
		},
	}
	callErr := e.caller.Call(ctx, req.Method, params, nil)
	if callErr != nil {
		callErr = fmt.Errorf("storageops: update %s: %w", name, rc.Classify(callErr))
	}
	return Result{Request: req}, errors.Join(callErr, e.registry.Refresh(ctx))
}

// DeleteStorage removes a storage definition; see registry.Registry.Remove.
func (e *Executor) DeleteStorage(ctx context.Context, name string) (Result, error) {
	req := models.OperationRequest{
		Kind:   models.OpDeleteStorage,
		Method: rc.MethodConfigDelete,
		Src:    models.PathRef{Storage: name},
	}
	return Result{Request: req}, e.registry.Remove(ctx, name)
}

// ListChildren returns the entries of the directory at path. An empty
// directory yields an empty, non-nil slice.
func (e *Executor) ListChildren(ctx context.Context, storage, path string) ([]models.FileEntry, error) {
	var out struct {
		List []models.FileEntry `json:"list"`
	}
	params := rc.Params{
		"fs":     rc.Fs(storage),
		"remote": remotepath.Normalize(path, false),
	}
	if err := e.caller.Call(ctx, rc.MethodList, params, &out); err != nil {
		return nil, fmt.Errorf("storageops: list %s:%s: %w", storage, path, rc.Classify(err))
	}
	if out.List == nil {
		out.List = []models.FileEntry{}
	}
	return out.List, nil
}

// DeleteFile removes exactly one file.
func (e *Executor) DeleteFile(ctx context.Context, storage, path string) (Result, error) {
	remote := remotepath.Normalize(path, false)
	req := models.OperationRequest{
		Kind:   models.OpDeleteFile,
		Method: rc.MethodDeleteFile,
		Src:    models.PathRef{Storage: storage, Path: remote},
	}
	if remote == "" {
		return Result{Request: req}, &apperr.ValidationError{Key: MsgPathRequired, Field: "path"}
	}
	return e.single(ctx, req)
}

// DeleteTree purges a directory and everything below it. It cannot be
// undone; confirmation is the caller's job.
func (e *Executor) DeleteTree(ctx context.Context, storage, path string) (Result, error) {
	return e.single(ctx, models.OperationRequest{
		Kind:   models.OpDeleteTree,
		Method: rc.MethodPurge,
		Src:    models.PathRef{Storage: storage, Path: remotepath.Normalize(path, true)},
	})
}

// CreateDirectory makes the directory at path. Existing directories are not
// an error.
func (e *Executor) CreateDirectory(ctx context.Context, storage, path string) (Result, error) {
	return e.single(ctx, models.OperationRequest{
		Kind:   models.OpCreateDirectory,
		Method: rc.MethodMkdir,
		Src:    models.PathRef{Storage: storage, Path: remotepath.Normalize(path, true)},
	})
}

func (e *Executor) single(ctx context.Context, req models.OperationRequest) (Result, error) {
	params := rc.Params{
		"fs":     rc.Fs(req.Src.Storage),
		"remote": req.Src.Path,
	}
	if err := e.caller.Call(ctx, req.Method, params, nil); err != nil {
		return Result{Request: req}, fmt.Errorf("storageops: %s %s:%s: %w",
			req.Kind, req.Src.Storage, req.Src.Path, rc.Classify(err))
	}
	return Result{Request: req}, nil
}

// CopyFile copies one file into the directory dst. The copy is named
// newName, or after the source file when newName is empty. src and dst may
// be on different storages.
func (e *Executor) CopyFile(ctx context.Context, src, dst models.PathRef, newName string) (Result, error) {
	return e.transferFile(ctx, models.OpCopyFile, rc.MethodCopyFile, src, dst, newName)
}

// MoveFile moves one file into the directory dst; naming as for CopyFile.
func (e *Executor) MoveFile(ctx context.Context, src, dst models.PathRef, newName string) (Result, error) {
	return e.transferFile(ctx, models.OpMoveFile, rc.MethodMoveFile, src, dst, newName)
}

func (e *Executor) transferFile(ctx context.Context, kind models.OperationKind, method string, src, dst models.PathRef, newName string) (Result, error) {
	srcRemote := remotepath.Normalize(src.Path, false)
	req := models.OperationRequest{
		Kind:   kind,
		Method: method,
		Src:    models.PathRef{Storage: src.Storage, Path: srcRemote},
	}
	name, err := targetName(srcRemote, newName)
	if err != nil {
		return Result{Request: req}, err
	}
	req.Dst = models.PathRef{Storage: dst.Storage, Path: remotepath.Join(dst.Path, name)}

	params := rc.Params{
		"srcFs":     rc.Fs(req.Src.Storage),
		"srcRemote": req.Src.Path,
		"dstFs":     rc.Fs(req.Dst.Storage),
		"dstRemote": req.Dst.Path,
	}
	if err := e.caller.Call(ctx, method, params, nil); err != nil {
		return Result{Request: req}, fmt.Errorf("storageops: %s %s:%s -> %s:%s: %w",
			kind, req.Src.Storage, req.Src.Path, req.Dst.Storage, req.Dst.Path, rc.Classify(err))
	}
	return Result{Request: req}, nil
}

// CopyTree copies the directory src, with its contents, into dst. The new
// directory is named newName, or after the source directory.
func (e *Executor) CopyTree(ctx context.Context, src, dst models.PathRef, newName string) (Result, error) {
	return e.transferTree(ctx, models.OpCopyTree, rc.MethodSyncCopy, src, dst, newName)
}

// MoveTree moves the directory src into dst; naming as for CopyTree. Source
// directories left empty by the move are removed.
func (e *Executor) MoveTree(ctx context.Context, src, dst models.PathRef, newName string) (Result, error) {
	return e.transferTree(ctx, models.OpMoveTree, rc.MethodSyncMove, src, dst, newName)
}

func (e *Executor) transferTree(ctx context.Context, kind models.OperationKind, method string, src, dst models.PathRef, newName string) (Result, error) {
	srcRemote := remotepath.Normalize(src.Path, true)
	req := models.OperationRequest{
		Kind:   kind,
		Method: method,
		Src:    models.PathRef{Storage: src.Storage, Path: srcRemote},
	}
	name, err := targetName(srcRemote, newName)
	if err != nil {
		return Result{Request: req}, err
	}
	req.Dst = models.PathRef{Storage: dst.Storage, Path: remotepath.Join(dst.Path, name)}

	params := rc.Params{
		"srcFs":              rc.FsPath(req.Src.Storage, req.Src.Path),
		"dstFs":              rc.FsPath(req.Dst.Storage, req.Dst.Path),
		"createEmptySrcDirs": true,
	}
	if kind == models.OpMoveTree {
		params["deleteEmptySrcDirs"] = true
	}
	if err := e.caller.Call(ctx, method, params, nil); err != nil {
		return Result{Request: req}, fmt.Errorf("storageops: %s %s:%s -> %s:%s: %w",
			kind, req.Src.Storage, req.Src.Path, req.Dst.Storage, req.Dst.Path, rc.Classify(err))
	}
	return Result{Request: req}, nil
}

// targetName resolves the destination name: newName when given, otherwise
// the last segment of the source.
func targetName(srcRemote, newName string) (string, error) {
	if newName != "" {
		if strings.Contains(newName, remotepath.Separator) || newName == "." || newName == ".." {
			return "", &apperr.ValidationError{Key: MsgFileNameInvalid, Field: "new_name"}
		}
		return newName, nil
	}
	name := remotepath.Base(srcRemote)
	if name == "" {
		return "", &apperr.ValidationError{Key: MsgPathRequired, Field: "src"}
	}
	return name, nil
}

// MountStorage asks the backend to expose storage at mountPoint, or at
// <mount dir>/<storage> when mountPoint is empty.
func (e *Executor) MountStorage(ctx context.Context, storage, mountPoint string) (Result, error) {
	if mountPoint == "" && e.mountDir != "" {
		mountPoint = filepath.Join(e.mountDir, storage)
	}
	req := models.OperationRequest{
		Kind:   models.OpMount,
		Method: rc.MethodMount,
		Src:    models.PathRef{Storage: storage},
		Dst:    models.PathRef{Path: mountPoint},
	}
	if mountPoint == "" {
		return Result{Request: req}, &apperr.ValidationError{Key: MsgMountPointRequired, Field: "mount_point"}
	}
	params := rc.Params{
		"fs":         rc.Fs(storage),
		"mountPoint": mountPoint,
	}
	if err := e.caller.Call(ctx, req.Method, params, nil); err != nil {
		return Result{Request: req}, fmt.Errorf("storageops: mount %s: %w", storage, rc.Classify(err))
	}
	e.logger.Info("storage mounted", slog.String("storage", storage), slog.String("mount_point", mountPoint))
	return Result{Request: req}, nil
}

// UnmountStorage removes the mount at mountPoint.
func (e *Executor) UnmountStorage(ctx context.Context, mountPoint string) (Result, error) {
	req := models.OperationRequest{
		Kind:   models.OpUnmount,
		Method: rc.MethodUnmount,
		Dst:    models.PathRef{Path: mountPoint},
	}
	if mountPoint == "" {
		return Result{Request: req}, &apperr.ValidationError{Key: MsgMountPointRequired, Field: "mount_point"}
	}
	if err := e.caller.Call(ctx, req.Method, rc.Params{"mountPoint": mountPoint}, nil); err != nil {
		if rc.IsNotFound(err) {
			return Result{Request: req}, fmt.Errorf("storageops: unmount %s: %w", mountPoint, apperr.ErrNotFound)
		}
		return Result{Request: req}, fmt.Errorf("storageops: unmount %s: %w", mountPoint, rc.Classify(err))
	}
	return Result{Request: req}, nil
}

// ListMounts returns the mounts currently served by the backend.
func (e *Executor) ListMounts(ctx context.Context) ([]models.Mount, error) {
	var out struct {
		MountPoints []models.Mount `json:"mountPoints"`
	}
	if err := e.caller.Call(ctx, rc.MethodListMounts, nil, &out); err != nil {
		return nil, fmt.Errorf("storageops: list mounts: %w", rc.Classify(err))
	}
	if out.MountPoints == nil {
		out.MountPoints = []models.Mount{}
	}
	return out.MountPoints, nil
}
