package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/netmount/internal/journal"
	"github.com/starford/netmount/internal/models"
	"github.com/starford/netmount/internal/rc"
	"github.com/starford/netmount/internal/registry"
	"github.com/starford/netmount/internal/schema"
	"github.com/starford/netmount/internal/storageops"
	"github.com/starford/netmount/internal/storageservice"
	"github.com/starford/netmount/internal/testutil"
)

// testEnv wires a fake backend, a temp journal and the router.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*testutil.Backend, http.Handler) {
	t.Helper()
	return testEnvFull(t, authToken != "", authToken, nil)
}

func testEnvFull(t *testing.T, authEnabled bool, authToken string, sseHandler http.Handler) (*testutil.Backend, http.Handler) {
	t.Helper()

	catalog, err := schema.DefaultCatalog()
	if err != nil {
		t.Fatal(err)
	}
	db, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	backend := testutil.NewBackend()
	reg := registry.New(backend, nil, nil)
	exec := storageops.New(backend, catalog, reg, storageops.WithMountDir("/mnt"))
	svc := storageservice.New(exec, reg, catalog, db, nil, nil)
	return backend, NewRouter(svc, authEnabled, authToken, sseHandler)
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestCreateAndListStorages(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/storages", CreateStorageRequest{
		Name:       "files",
		Kind:       "sftp",
		Parameters: schema.Parameters{"host": "example.org"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/storages", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	resp := decode[StorageListResponse](t, w)
	if len(resp.Storages) != 1 || resp.Storages[0] != (models.StorageDescriptor{Name: "files", Kind: "sftp"}) {
		t.Errorf("storages = %+v", resp.Storages)
	}
}

func TestCreateStorage_ValidationLocalized(t *testing.T) {
	_, router := testEnv(t, "")

	body, _ := json.Marshal(CreateStorageRequest{Name: "files", Kind: "sftp"})
	req := httptest.NewRequest(http.MethodPost, "/storages", bytes.NewReader(body))
	req.Header.Set("Accept-Language", "zh-CN")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	e := decode[errResponse](t, w)
	if e.Code != schema.MsgParameterRequired || e.Field != "host" {
		t.Errorf("error = %+v", e)
	}
	if e.Error != "参数 host 为必填项" {
		t.Errorf("message = %q", e.Error)
	}
}

func TestCreateStorage_UnknownKind(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/storages", CreateStorageRequest{Name: "x", Kind: "floppy"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if e := decode[errResponse](t, w); e.Code != "unknown_kind" {
		t.Errorf("code = %q", e.Code)
	}
}

func TestCreateStorage_InvalidJSON(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/storages", bytes.NewReader([]byte("{")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUpdateAndEditForm(t *testing.T) {
	backend, router := testEnv(t, "")
	backend.AddStorage("files", "sftp", map[string]string{"host": "old.example.org"})

	w := do(t, router, http.MethodPut, "/storages/files", UpdateStorageRequest{
		Parameters: schema.Parameters{"host": "new.example.org"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/storages/files/form", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("form status = %d", w.Code)
	}
	form := decode[storageservice.Form](t, w)
	host, ok := form.Schema.Lookup("host")
	if !ok || host.Default != "new.example.org" {
		t.Errorf("host = %+v", host)
	}
}

func TestUpdateStorage_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPut, "/storages/ghost", UpdateStorageRequest{})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestDeleteStorage(t *testing.T) {
	backend, router := testEnv(t, "")
	backend.AddStorage("files", "local", nil)

	w := do(t, router, http.MethodDelete, "/storages/files", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	// Deleting again still succeeds.
	w = do(t, router, http.MethodDelete, "/storages/files", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("second delete status = %d", w.Code)
	}
}

func TestListFiles(t *testing.T) {
	backend, router := testEnv(t, "")
	backend.SetListing("files:", "docs", []models.FileEntry{{Path: "docs/a.txt", Name: "a.txt", Size: 3}})

	w := do(t, router, http.MethodGet, "/storages/files/files/docs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[FileListResponse](t, w)
	if resp.Path != "docs/" || len(resp.Entries) != 1 || resp.Entries[0].Name != "a.txt" {
		t.Errorf("listing = %+v", resp)
	}

	w = do(t, router, http.MethodGet, "/storages/files/files", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("root status = %d", w.Code)
	}
	if resp := decode[FileListResponse](t, w); resp.Entries == nil || len(resp.Entries) != 0 {
		t.Errorf("root entries = %+v", resp.Entries)
	}
}

func TestDeleteFileAndTree(t *testing.T) {
	backend, router := testEnv(t, "")

	if w := do(t, router, http.MethodDelete, "/storages/s1/files/a/b.txt", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete file = %d", w.Code)
	}
	if c, ok := backend.LastCall(rc.MethodDeleteFile); !ok || c.Params["remote"] != "a/b.txt" {
		t.Errorf("deletefile call = %+v", c)
	}

	if w := do(t, router, http.MethodDelete, "/storages/s1/files/a?recursive=true", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete tree = %d", w.Code)
	}
	if c, ok := backend.LastCall(rc.MethodPurge); !ok || c.Params["remote"] != "a/" {
		t.Errorf("purge call = %+v", c)
	}
}

func TestBackendErrorsMapToStatus(t *testing.T) {
	backend, router := testEnv(t, "")

	backend.FailWith(rc.MethodMkdir, &rc.Error{Status: 500, Message: "permission denied"})
	if w := do(t, router, http.MethodPost, "/storages/s1/dirs/x", nil); w.Code != http.StatusBadGateway {
		t.Errorf("rejected = %d, want 502", w.Code)
	}

	backend.FailWith(rc.MethodMkdir, context.DeadlineExceeded)
	if w := do(t, router, http.MethodPost, "/storages/s1/dirs/x", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("unreachable = %d, want 503", w.Code)
	}
}

func TestTransfer(t *testing.T) {
	backend, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/transfers", TransferRequest{
		Mode: storageservice.TransferCopy,
		Src:  models.PathRef{Storage: "a", Path: "in/a.txt"},
		Dst:  models.PathRef{Storage: "b", Path: "out"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[OperationResponse](t, w)
	if resp.Request.Dst.Path != "out/a.txt" {
		t.Errorf("dst = %+v", resp.Request.Dst)
	}
	if _, ok := backend.LastCall(rc.MethodCopyFile); !ok {
		t.Error("copyfile not called")
	}

	w = do(t, router, http.MethodPost, "/transfers", TransferRequest{
		Mode:    storageservice.TransferMove,
		Src:     models.PathRef{Storage: "a", Path: "in/a.txt"},
		Dst:     models.PathRef{Storage: "b", Path: "out"},
		NewName: "x/y",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad new name = %d, want 400", w.Code)
	}
}

func TestMountLifecycle(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/storages/files/mount", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("mount = %d, body = %s", w.Code, w.Body.String())
	}
	if resp := decode[MountResponse](t, w); resp.MountPoint != "/mnt/files" {
		t.Errorf("mount point = %q", resp.MountPoint)
	}

	w = do(t, router, http.MethodGet, "/mounts", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list mounts = %d", w.Code)
	}

	if w := do(t, router, http.MethodPost, "/mounts/unmount", UnmountRequest{MountPoint: "/mnt/files"}); w.Code != http.StatusNoContent {
		t.Fatalf("unmount = %d", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/mounts/unmount", UnmountRequest{MountPoint: "/mnt/files"}); w.Code != http.StatusNotFound {
		t.Errorf("second unmount = %d, want 404", w.Code)
	}
}

func TestKinds(t *testing.T) {
	_, router := testEnv(t, "")

	if w := do(t, router, http.MethodGet, "/kinds", nil); w.Code != http.StatusOK {
		t.Errorf("kinds = %d", w.Code)
	}
	w := do(t, router, http.MethodGet, "/kinds/sftp", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("kind = %d", w.Code)
	}
	if s := decode[schema.Schema](t, w); s.Kind != "sftp" {
		t.Errorf("kind = %q", s.Kind)
	}
	if w := do(t, router, http.MethodGet, "/kinds/floppy", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown kind = %d, want 404", w.Code)
	}
}

func TestOperationsJournal(t *testing.T) {
	_, router := testEnv(t, "")

	do(t, router, http.MethodPost, "/storages/s1/dirs/a", nil)
	do(t, router, http.MethodPost, "/storages/s2/dirs/b", nil)

	w := do(t, router, http.MethodGet, "/operations?storage=s2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode[OperationListResponse](t, w)
	if len(resp.Operations) != 1 || resp.Operations[0].Src.Path != "b/" {
		t.Errorf("operations = %+v", resp.Operations)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/storages", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := do(t, router, http.MethodGet, "/storages", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_ChallengeHeader(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := do(t, router, http.MethodGet, "/storages", nil)
	if got := w.Header().Get("WWW-Authenticate"); !strings.HasPrefix(got, "Bearer") {
		t.Errorf("WWW-Authenticate = %q", got)
	}
}

func TestAuthMiddleware_QueryTokenOnlyForEvents(t *testing.T) {
	_, router := testEnvFull(t, true, "tok", blockingSSE())

	if w := do(t, router, http.MethodGet, "/storages?access_token=tok", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("query token on /storages = %d, want 401", w.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events?access_token=tok", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with query token should not 401")
	}

	if w := do(t, router, http.MethodGet, "/events?access_token=wrong", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE with wrong query token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/storages", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

// SSE endpoint auth tests.

func blockingSSE() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnvFull(t, true, "secret", blockingSSE())

	w := do(t, router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvFull(t, true, "tok", blockingSSE())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
