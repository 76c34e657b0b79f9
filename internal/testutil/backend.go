// Package testutil provides an in-memory execution backend for tests.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/starford/netmount/internal/models"
	"github.com/starford/netmount/internal/rc"
)

// Call is one recorded request.
type Call struct {
	Method string
	Params rc.Params
}

// Backend is a stateful fake of the execution backend. It keeps storage
// configurations and mounts, serves canned directory listings and records
// every call. Methods listed in Fail return that error instead.
type Backend struct {
	mu       sync.Mutex
	configs  map[string]map[string]string
	listings map[string][]models.FileEntry
	mounts   []models.Mount
	calls    []Call
	fail     map[string]error
}

var _ rc.Caller = (*Backend)(nil)

// NewBackend returns an empty fake backend.
func NewBackend() *Backend {
	return &Backend{
		configs:  map[string]map[string]string{},
		listings: map[string][]models.FileEntry{},
		fail:     map[string]error{},
	}
}

// AddStorage seeds a storage configuration.
func (b *Backend) AddStorage(name, kind string, params map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	section := map[string]string{"type": kind}
	maps.Copy(section, params)
	b.configs[name] = section
}

// SetListing seeds the entries returned for fs and remote.
func (b *Backend) SetListing(fs, remote string, entries []models.FileEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listings[fs+remote] = entries
}

// FailWith makes method return err until cleared with a nil err.
func (b *Backend) FailWith(method string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.fail, method)
		return
	}
	b.fail[method] = err
}

// Calls returns every recorded call in order.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.calls)
}

// CallsTo returns the recorded calls to method.
func (b *Backend) CallsTo(method string) []Call {
	var out []Call
	for _, c := range b.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// LastCall returns the most recent call to method.
func (b *Backend) LastCall(method string) (Call, bool) {
	calls := b.CallsTo(method)
	if len(calls) == 0 {
		return Call{}, false
	}
	return calls[len(calls)-1], true
}

// Reset forgets recorded calls.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}

// Call implements rc.Caller.
func (b *Backend) Call(_ context.Context, method string, in rc.Params, out any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls = append(b.calls, Call{Method: method, Params: maps.Clone(in)})
	if err := b.fail[method]; err != nil {
		return err
	}

	resp, err := b.handle(method, in)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (b *Backend) handle(method string, in rc.Params) (any, error) {
	str := func(key string) string {
		s, _ := in[key].(string)
		return s
	}

	switch method {
	case rc.MethodConfigDump:
		return b.configs, nil

	case rc.MethodConfigGet:
		section, ok := b.configs[str("name")]
		if !ok {
			return map[string]string{}, nil
		}
		return section, nil

	case rc.MethodConfigCreate:
		name := str("name")
		section := map[string]string{"type": str("type")}
		maps.Copy(section, stringMap(in["parameters"]))
		b.configs[name] = section
		return section, nil

	case rc.MethodConfigUpdate:
		section, ok := b.configs[str("name")]
		if !ok {
			return nil, notFound(method, "didn't find section in config file")
		}
		maps.Copy(section, stringMap(in["parameters"]))
		return section, nil

	case rc.MethodConfigDelete:
		name := str("name")
		if _, ok := b.configs[name]; !ok {
			return nil, notFound(method, "didn't find section in config file")
		}
		delete(b.configs, name)
		return map[string]any{}, nil

	case rc.MethodList:
		list := b.listings[str("fs")+str("remote")]
		if list == nil {
			list = []models.FileEntry{}
		}
		return map[string]any{"list": list}, nil

	case rc.MethodMount:
		b.mounts = append(b.mounts, models.Mount{
			Fs:         str("fs"),
			MountPoint: str("mountPoint"),
			MountedOn:  time.Now().UTC(),
		})
		return map[string]any{}, nil

	case rc.MethodUnmount:
		mp := str("mountPoint")
		i := slices.IndexFunc(b.mounts, func(m models.Mount) bool { return m.MountPoint == mp })
		if i < 0 {
			return nil, notFound(method, "mount not found")
		}
		b.mounts = slices.Delete(b.mounts, i, i+1)
		return map[string]any{}, nil

	case rc.MethodListMounts:
		return map[string]any{"mountPoints": b.mounts}, nil
	}
	return map[string]any{}, nil
}

func stringMap(v any) map[string]string {
	out := map[string]string{}
	switch m := v.(type) {
	case map[string]string:
		maps.Copy(out, m)
	case map[string]any:
		for k, val := range m {
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

func notFound(method, msg string) *rc.Error {
	return &rc.Error{Status: http.StatusNotFound, Path: method, Message: msg}
}
