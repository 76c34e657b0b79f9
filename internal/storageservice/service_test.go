package storageservice

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/starford/netmount/internal/apperr"
	"github.com/starford/netmount/internal/journal"
	"github.com/starford/netmount/internal/models"
	"github.com/starford/netmount/internal/rc"
	"github.com/starford/netmount/internal/registry"
	"github.com/starford/netmount/internal/schema"
	"github.com/starford/netmount/internal/storageops"
	"github.com/starford/netmount/internal/testutil"
)

type memJournal struct {
	mu   sync.Mutex
	recs []models.OperationRecord
}

func (j *memJournal) Record(_ context.Context, rec models.OperationRecord) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	rec.ID = int64(len(j.recs) + 1)
	j.recs = append(j.recs, rec)
	return rec.ID, nil
}

func (j *memJournal) List(_ context.Context, _ journal.Filter) ([]models.OperationRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]models.OperationRecord, len(j.recs))
	for i, r := range j.recs {
		out[len(j.recs)-1-i] = r
	}
	return out, nil
}

type recEvents struct {
	recs []models.OperationRecord
}

func (e *recEvents) OperationCompleted(rec models.OperationRecord) {
	e.recs = append(e.recs, rec)
}

type fixture struct {
	svc     *Service
	backend *testutil.Backend
	journal *memJournal
	events  *recEvents
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	catalog, err := schema.DefaultCatalog()
	if err != nil {
		t.Fatal(err)
	}
	backend := testutil.NewBackend()
	reg := registry.New(backend, nil, nil)
	exec := storageops.New(backend, catalog, reg, storageops.WithMountDir("/mnt"))
	j := &memJournal{}
	ev := &recEvents{}
	return fixture{
		svc:     New(exec, reg, catalog, j, ev, nil),
		backend: backend,
		journal: j,
		events:  ev,
	}
}

func TestMutationIsJournaledAndAnnounced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.CreateDirectory(ctx, "s1", "/a/b"); err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}

	hist, err := f.svc.History(ctx, journal.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 {
		t.Fatalf("history = %d records, want 1", len(hist))
	}
	rec := hist[0]
	if rec.Kind != models.OpCreateDirectory || !rec.OK || rec.Src.Path != "a/b/" {
		t.Errorf("record = %+v", rec)
	}
	if len(f.events.recs) != 1 || f.events.recs[0].ID != rec.ID {
		t.Errorf("events = %+v", f.events.recs)
	}
}

func TestFailedOperationIsJournaledNotAnnounced(t *testing.T) {
	f := newFixture(t)
	f.backend.FailWith(rc.MethodPurge, &rc.Error{Status: 500, Message: "permission denied"})

	err := f.svc.DeleteTree(context.Background(), "s1", "dir")
	if !errors.Is(err, apperr.ErrBackendRejected) {
		t.Fatalf("err = %v, want ErrBackendRejected", err)
	}
	if len(f.journal.recs) != 1 || f.journal.recs[0].OK || f.journal.recs[0].Error == "" {
		t.Errorf("journal = %+v", f.journal.recs)
	}
	if len(f.events.recs) != 0 {
		t.Errorf("events = %+v, want none", f.events.recs)
	}
}

func TestValidationFailureSkipsJournal(t *testing.T) {
	f := newFixture(t)

	err := f.svc.DeleteFile(context.Background(), "s1", "/")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if len(f.journal.recs) != 0 || len(f.backend.Calls()) != 0 {
		t.Errorf("journal = %+v, calls = %+v", f.journal.recs, f.backend.Calls())
	}
}

func TestStorageLifecycleNotAnnounced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.CreateStorage(ctx, "box", "local", schema.Parameters{}); err != nil {
		t.Fatalf("CreateStorage: %v", err)
	}
	if got := f.svc.Storages(); len(got) != 1 || got[0].Name != "box" {
		t.Fatalf("storages = %+v", got)
	}
	if err := f.svc.DeleteStorage(ctx, "box"); err != nil {
		t.Fatalf("DeleteStorage: %v", err)
	}
	if got := f.svc.Storages(); len(got) != 0 {
		t.Fatalf("storages after delete = %+v", got)
	}
	if len(f.journal.recs) != 2 {
		t.Errorf("journal = %d records, want 2", len(f.journal.recs))
	}
	if len(f.events.recs) != 0 {
		t.Errorf("events = %+v, want none", f.events.recs)
	}
}

func TestTransfer(t *testing.T) {
	f := newFixture(t)

	req, err := f.svc.Transfer(context.Background(), Transfer{
		Mode:    TransferMove,
		Tree:    true,
		Src:     models.PathRef{Storage: "a", Path: "d1"},
		Dst:     models.PathRef{Storage: "b", Path: "d2"},
		NewName: "renamed",
	})
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if req.Kind != models.OpMoveTree || req.Dst.Path != "d2/renamed" {
		t.Errorf("request = %+v", req)
	}
	if _, ok := f.backend.LastCall(rc.MethodSyncMove); !ok {
		t.Error("sync/move not called")
	}
}

func TestTransferUnknownMode(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Transfer(context.Background(), Transfer{Mode: "link"})
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || ve.Field != "mode" {
		t.Fatalf("err = %v, want validation error on mode", err)
	}
}

func TestEditForm(t *testing.T) {
	f := newFixture(t)
	f.backend.AddStorage("files", "sftp", map[string]string{"host": "example.org", "user": "bob"})

	form, err := f.svc.EditForm(context.Background(), "files")
	if err != nil {
		t.Fatalf("EditForm: %v", err)
	}
	if form.Kind != "sftp" {
		t.Errorf("kind = %q", form.Kind)
	}
	host, ok := form.Schema.Lookup("host")
	if !ok || host.Default != "example.org" {
		t.Errorf("host = %+v", host)
	}
}

func TestEditFormMissing(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.EditForm(context.Background(), "nope")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMountDefaultsToMountDir(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mp, err := f.svc.Mount(ctx, "s1", "")
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if mp != "/mnt/s1" {
		t.Errorf("mount point = %q", mp)
	}
	mounts, err := f.svc.Mounts(ctx)
	if err != nil || len(mounts) != 1 {
		t.Fatalf("mounts = %+v, err = %v", mounts, err)
	}
	if err := f.svc.Unmount(ctx, mp); err != nil {
		t.Fatalf("Unmount: %v", err)
	}
}
