package registry

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/starford/netmount/internal/apperr"
	"github.com/starford/netmount/internal/models"
	"github.com/starford/netmount/internal/rc"
	"github.com/starford/netmount/internal/testutil"
)

type countingNotifier struct {
	n atomic.Int32
}

func (c *countingNotifier) StorageChanged() { c.n.Add(1) }

func testRegistry(t *testing.T) (*Registry, *testutil.Backend, *countingNotifier) {
	t.Helper()
	backend := testutil.NewBackend()
	notifier := &countingNotifier{}
	return New(backend, notifier, nil), backend, notifier
}

func TestRefreshReplacesList(t *testing.T) {
	reg, backend, notifier := testRegistry(t)
	ctx := context.Background()

	backend.AddStorage("b", "webdav", nil)
	backend.AddStorage("a", "s3", map[string]string{"provider": "AWS"})
	if err := reg.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	want := []models.StorageDescriptor{{Name: "a", Kind: "s3"}, {Name: "b", Kind: "webdav"}}
	if got := reg.List(); !reflect.DeepEqual(got, want) {
		t.Errorf("List = %v, want %v", got, want)
	}

	// Removal behind the registry's back only shows up after a refresh.
	_ = backend.Call(ctx, rc.MethodConfigDelete, rc.Params{"name": "a"}, nil)
	if len(reg.List()) != 2 {
		t.Error("registry changed without refresh")
	}
	if err := reg.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	want = []models.StorageDescriptor{{Name: "b", Kind: "webdav"}}
	if got := reg.List(); !reflect.DeepEqual(got, want) {
		t.Errorf("List = %v, want %v", got, want)
	}
	if notifier.n.Load() != 2 {
		t.Errorf("notifications = %d, want 2", notifier.n.Load())
	}
}

func TestRefreshEmptyDump(t *testing.T) {
	reg, _, notifier := testRegistry(t)
	if err := reg.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := reg.List(); len(got) != 0 {
		t.Errorf("List = %v, want empty", got)
	}
	if notifier.n.Load() != 1 {
		t.Errorf("notifications = %d, want 1", notifier.n.Load())
	}
}

func TestRefreshFailureKeepsList(t *testing.T) {
	reg, backend, notifier := testRegistry(t)
	ctx := context.Background()
	backend.AddStorage("a", "s3", nil)
	_ = reg.Refresh(ctx)

	backend.FailWith(rc.MethodConfigDump, errors.New("connection refused"))
	err := reg.Refresh(ctx)
	if !errors.Is(err, apperr.ErrBackendCall) {
		t.Fatalf("err = %v, want ErrBackendCall", err)
	}
	if len(reg.List()) != 1 {
		t.Error("failed refresh must not clear the list")
	}
	if notifier.n.Load() != 1 {
		t.Errorf("notifications = %d, want 1", notifier.n.Load())
	}
}

func TestListReturnsCopy(t *testing.T) {
	reg, backend, _ := testRegistry(t)
	backend.AddStorage("a", "s3", nil)
	_ = reg.Refresh(context.Background())

	list := reg.List()
	list[0].Name = "mutated"
	if s, ok := reg.Lookup("a"); !ok || s.Kind != "s3" {
		t.Errorf("Lookup(a) = %v, %v", s, ok)
	}
}

func TestRemove(t *testing.T) {
	reg, backend, _ := testRegistry(t)
	ctx := context.Background()
	backend.AddStorage("a", "s3", nil)
	backend.AddStorage("b", "ftp", nil)
	_ = reg.Refresh(ctx)
	backend.Reset()

	if err := reg.Remove(ctx, "a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := reg.Lookup("a"); ok {
		t.Error("a still registered")
	}
	calls := backend.Calls()
	if len(calls) != 2 || calls[0].Method != rc.MethodConfigDelete || calls[1].Method != rc.MethodConfigDump {
		t.Errorf("calls = %+v, want delete then dump", calls)
	}
}

func TestRemoveNonexistentIsNoop(t *testing.T) {
	reg, backend, _ := testRegistry(t)
	ctx := context.Background()
	backend.AddStorage("a", "s3", nil)
	_ = reg.Refresh(ctx)
	before := reg.List()

	if err := reg.Remove(ctx, "nonexistent"); err != nil {
		t.Fatalf("Remove(nonexistent): %v", err)
	}
	if got := reg.List(); !reflect.DeepEqual(got, before) {
		t.Errorf("List = %v, want %v", got, before)
	}
}

func TestRemoveRefreshesEvenWhenRejected(t *testing.T) {
	reg, backend, notifier := testRegistry(t)
	ctx := context.Background()
	backend.AddStorage("a", "s3", nil)
	backend.FailWith(rc.MethodConfigDelete, &rc.Error{Status: 500, Path: rc.MethodConfigDelete, Message: "storage is in use"})

	err := reg.Remove(ctx, "a")
	if !errors.Is(err, apperr.ErrBackendRejected) {
		t.Fatalf("err = %v, want ErrBackendRejected", err)
	}
	if len(backend.CallsTo(rc.MethodConfigDump)) != 1 {
		t.Error("refresh did not run after rejected delete")
	}
	if notifier.n.Load() != 1 {
		t.Errorf("notifications = %d, want 1", notifier.n.Load())
	}
	if _, ok := reg.Lookup("a"); !ok {
		t.Error("registry should reflect backend truth (a still exists)")
	}
}

func TestRemoveTransportFailure(t *testing.T) {
	reg, backend, _ := testRegistry(t)
	backend.FailWith(rc.MethodConfigDelete, errors.New("broken pipe"))

	err := reg.Remove(context.Background(), "a")
	if !errors.Is(err, apperr.ErrBackendCall) {
		t.Fatalf("err = %v, want ErrBackendCall", err)
	}
	if errors.Is(err, apperr.ErrBackendRejected) {
		t.Error("transport failure reported as rejection")
	}
}

func TestFetchParameters(t *testing.T) {
	reg, backend, _ := testRegistry(t)
	ctx := context.Background()
	backend.AddStorage("a", "ftp", map[string]string{"host": "h", "port": "21"})

	params, err := reg.FetchParameters(ctx, "a")
	if err != nil {
		t.Fatalf("FetchParameters: %v", err)
	}
	if params["host"] != "h" || params["port"] != "21" || params["type"] != "ftp" {
		t.Errorf("params = %v", params)
	}

	if _, err := reg.FetchParameters(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
