package handlers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tphummel/lab_inventory/internal/db"
	"github.com/tphummel/lab_inventory/internal/handlers"
	"github.com/tphummel/lab_inventory/internal/inventory"
	"github.com/tphummel/lab_inventory/internal/middleware"
	"github.com/tphummel/lab_inventory/internal/models"
)

const apiToken = "test-token"

// newTestMux builds the same mux as cmd/server, backed by an in-memory DB.
// It returns both the mux (for serving requests) and the DB (for inspecting
// the audit log).
func newTestMux(t *testing.T) (http.Handler, *db.DB) {
	t.Helper()
	d, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	h := &handlers.Handler{Store: inventory.New(nil), DB: d, Version: "test", Commit: "abc"}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.Health)
	mux.Handle("GET /api/v1/inventory", middleware.Auth(apiToken, http.HandlerFunc(h.ListInventory)))
	mux.Handle("GET /api/v1/hosts/{name}", middleware.Auth(apiToken, http.HandlerFunc(h.GetHost)))
	mux.Handle("GET /api/v1/lookups", middleware.Auth(apiToken, http.HandlerFunc(h.ListLookups)))
	mux.Handle("GET /api/v1/lookups/{id}", middleware.Auth(apiToken, http.HandlerFunc(h.GetLookup)))

	return mux, d
}

// authReq builds a GET request with the test Bearer token already attached.
func authReq(path string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	r.Header.Set("Authorization", "Bearer "+apiToken)
	return r
}

// serve is a small helper that runs a request through the mux and returns the recorder.
func serve(mux http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}

// decodeBody unmarshals a recorder's body into v.
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response body: %v\nbody: %s", err, w.Body.String())
	}
}

// --- Health ---

func TestHealth(t *testing.T) {
	mux, _ := newTestMux(t)
	w := serve(mux, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", w.Code)
	}
	var body map[string]any
	decodeBody(t, w, &body)
	if body["status"] != "ok" {
		t.Errorf("status field: got %v, want ok", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("version field: got %v, want test", body["version"])
	}
	if body["hosts"] != float64(5) {
		t.Errorf("hosts field: got %v, want 5", body["hosts"])
	}
}

func TestHealth_DBClosed(t *testing.T) {
	mux, d := newTestMux(t)
	d.Close()

	w := serve(mux, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", w.Code)
	}
}

// --- Auth guard on protected routes ---

func TestProtectedRoutes_RequireAuth(t *testing.T) {
	mux, _ := newTestMux(t)

	for _, path := range []string{
		"/api/v1/inventory",
		"/api/v1/hosts/kuro",
		"/api/v1/lookups",
		"/api/v1/lookups/some-id",
	} {
		t.Run(fmt.Sprintf("GET %s", path), func(t *testing.T) {
			// deliberately no Authorization header
			w := serve(mux, httptest.NewRequest(http.MethodGet, path, nil))
			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected 401 without auth, got %d", w.Code)
			}
		})
	}
}

// --- ListInventory ---

func TestListInventory(t *testing.T) {
	mux, _ := newTestMux(t)
	w := serve(mux, authReq("/api/v1/inventory"))

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	var doc struct {
		Meta struct {
			Hostvars map[string]models.HostRecord `json:"hostvars"`
		} `json:"_meta"`
		All struct {
			Hosts []string `json:"hosts"`
		} `json:"all"`
	}
	decodeBody(t, w, &doc)

	want := []string{"portainer", "portainer2", "portainer3", "kuro", "maple"}
	if len(doc.All.Hosts) != len(want) {
		t.Fatalf("all.hosts: got %v, want %v", doc.All.Hosts, want)
	}
	for i, h := range want {
		if doc.All.Hosts[i] != h {
			t.Errorf("all.hosts[%d]: got %q, want %q", i, doc.All.Hosts[i], h)
		}
		if _, ok := doc.Meta.Hostvars[h]; !ok {
			t.Errorf("hostvars missing %q", h)
		}
	}
	if doc.Meta.Hostvars["maple"].AnsibleUser != "one" {
		t.Errorf("maple ansible_user: got %q", doc.Meta.Hostvars["maple"].AnsibleUser)
	}
}

func TestListInventory_Audited(t *testing.T) {
	mux, d := newTestMux(t)
	serve(mux, authReq("/api/v1/inventory"))

	lookups, err := d.List(models.ModeList)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(lookups) != 1 {
		t.Fatalf("expected 1 audited list lookup, got %d", len(lookups))
	}
	if !lookups[0].Found {
		t.Error("list lookups are always found")
	}
}

// --- GetHost ---

func TestGetHost_Found(t *testing.T) {
	mux, _ := newTestMux(t)
	w := serve(mux, authReq("/api/v1/hosts/portainer"))

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	var rec map[string]string
	decodeBody(t, w, &rec)
	if rec["postgres_db"] != "maindb" {
		t.Errorf("postgres_db: got %q, want maindb", rec["postgres_db"])
	}
	if rec["ansible_host"] != "192.168.68.124" {
		t.Errorf("ansible_host: got %q", rec["ansible_host"])
	}
}

func TestGetHost_NotFound(t *testing.T) {
	mux, d := newTestMux(t)
	w := serve(mux, authReq("/api/v1/hosts/doesnotexist"))

	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
	var body map[string]string
	decodeBody(t, w, &body)
	if body["error"] != "host not found" {
		t.Errorf("error: got %q", body["error"])
	}

	lookups, err := d.List(models.ModeHost)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(lookups) != 1 || lookups[0].Found || lookups[0].Hostname != "doesnotexist" {
		t.Errorf("unexpected audit log: %+v", lookups)
	}
}

func TestGetHost_CaseSensitive(t *testing.T) {
	mux, _ := newTestMux(t)
	w := serve(mux, authReq("/api/v1/hosts/Maple"))
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

// --- Lookups ---

func TestListLookups_Empty(t *testing.T) {
	mux, _ := newTestMux(t)
	w := serve(mux, authReq("/api/v1/lookups"))

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("body: got %q, want []", w.Body.String())
	}
}

func TestListLookups_ModeFilter(t *testing.T) {
	mux, _ := newTestMux(t)
	serve(mux, authReq("/api/v1/inventory"))
	serve(mux, authReq("/api/v1/hosts/kuro"))
	serve(mux, authReq("/api/v1/hosts/maple"))

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?mode=list", 1},
		{"?mode=host", 2},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := serve(mux, authReq("/api/v1/lookups"+tt.query))
			if w.Code != http.StatusOK {
				t.Fatalf("status: got %d, want 200", w.Code)
			}
			var lookups []models.Lookup
			decodeBody(t, w, &lookups)
			if len(lookups) != tt.want {
				t.Errorf("got %d lookups, want %d", len(lookups), tt.want)
			}
		})
	}
}

func TestListLookups_InvalidMode(t *testing.T) {
	mux, _ := newTestMux(t)
	w := serve(mux, authReq("/api/v1/lookups?mode=positional"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestGetLookup(t *testing.T) {
	mux, d := newTestMux(t)
	serve(mux, authReq("/api/v1/hosts/kuro"))

	lookups, err := d.List("")
	if err != nil || len(lookups) != 1 {
		t.Fatalf("List: %v (%d lookups)", err, len(lookups))
	}

	w := serve(mux, authReq("/api/v1/lookups/"+lookups[0].ID))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	var got models.Lookup
	decodeBody(t, w, &got)
	if got.Hostname != "kuro" || got.Mode != models.ModeHost || !got.Found {
		t.Errorf("unexpected lookup: %+v", got)
	}
	if time.Since(got.CreatedAt) > time.Minute {
		t.Errorf("created_at too old: %v", got.CreatedAt)
	}
}

func TestGetLookup_NotFound(t *testing.T) {
	mux, _ := newTestMux(t)
	w := serve(mux, authReq("/api/v1/lookups/does-not-exist"))
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

// --- Content-Type ---

func TestResponseContentType(t *testing.T) {
	mux, _ := newTestMux(t)
	for _, path := range []string{"/api/v1/inventory", "/api/v1/hosts/kuro", "/api/v1/hosts/nope", "/api/v1/lookups"} {
		w := serve(mux, authReq(path))
		if ct := w.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s Content-Type: got %q, want application/json", path, ct)
		}
	}
}
