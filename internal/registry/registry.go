// Package registry keeps the in-memory list of configured storages.
//
// The list is a cache of the backend's configuration store and is never
// patched in place: every change goes through the backend and is followed by
// a Refresh that replaces the list wholesale. Between a mutating call and its
// refresh, readers may observe a stale list.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/starford/netmount/internal/apperr"
	"github.com/starford/netmount/internal/models"
	"github.com/starford/netmount/internal/rc"
	"github.com/starford/netmount/internal/schema"
)

// Notifier receives a signal whenever the list has been replaced.
type Notifier interface {
	StorageChanged()
}

// Registry is the owned, read-mostly list of configured storages.
type Registry struct {
	caller   rc.Caller
	notifier Notifier
	logger   *slog.Logger

	mu       sync.RWMutex
	storages []models.StorageDescriptor
}

// New creates an empty Registry. notifier may be nil.
func New(caller rc.Caller, notifier Notifier, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{caller: caller, notifier: notifier, logger: logger}
}

// List returns a snapshot of the registered storages ordered by name.
func (r *Registry) List() []models.StorageDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.storages)
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (models.StorageDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.storages {
		if s.Name == name {
			return s, true
		}
	}
	return models.StorageDescriptor{}, false
}

// Refresh reloads the full configuration dump from the backend and replaces
// the list with it. An empty dump yields an empty list.
func (r *Registry) Refresh(ctx context.Context) error {
	var dump map[string]map[string]any
	if err := r.caller.Call(ctx, rc.MethodConfigDump, nil, &dump); err != nil {
		return fmt.Errorf("registry: refresh: %w", rc.Classify(err))
	}

	list := make([]models.StorageDescriptor, 0, len(dump))
	for name, props := range dump {
		kind, _ := props["type"].(string)
		list = append(list, models.StorageDescriptor{Name: name, Kind: kind})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

	r.mu.Lock()
	r.storages = list
	r.mu.Unlock()

	r.logger.Debug("registry: refreshed", slog.Int("storages", len(list)))
	if r.notifier != nil {
		r.notifier.StorageChanged()
	}
	return nil
}

// Remove deletes the named storage from the backend, then refreshes. The
// refresh happens whatever the delete returned. A backend answer saying the
// storage does not exist counts as success.
func (r *Registry) Remove(ctx context.Context, name string) error {
	delErr := r.caller.Call(ctx, rc.MethodConfigDelete, rc.Params{"name": name}, nil)
	if delErr != nil {
		if rc.IsNotFound(delErr) {
			r.logger.Debug("registry: remove of unknown storage", slog.String("name", name))
			delErr = nil
		} else {
			r.logger.Warn("registry: remove failed",
				slog.String("name", name),
				slog.String("error", delErr.Error()))
			delErr = fmt.Errorf("registry: remove %s: %w", name, rc.Classify(delErr))
		}
	}
	return errors.Join(delErr, r.Refresh(ctx))
}

// FetchParameters returns the stored configuration of one storage.
func (r *Registry) FetchParameters(ctx context.Context, name string) (schema.Parameters, error) {
	var params schema.Parameters
	if err := r.caller.Call(ctx, rc.MethodConfigGet, rc.Params{"name": name}, &params); err != nil {
		if rc.IsNotFound(err) {
			return nil, fmt.Errorf("registry: %s: %w", name, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("registry: get %s: %w", name, rc.Classify(err))
	}
	// The backend answers an unknown name with an empty section.
	if len(params) == 0 {
		return nil, fmt.Errorf("registry: %s: %w", name, apperr.ErrNotFound)
	}
	return params, nil
}
