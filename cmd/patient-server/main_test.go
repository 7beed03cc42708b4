package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/patients/internal/config"
	"github.com/ehr/patients/internal/domain/patient"
)

func newTestServer(t *testing.T) (*echo.Echo, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patient-data.json")
	store := patient.NewFileStore(path)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init store: %v", err)
	}
	cfg := &config.Config{
		Env:         "test",
		APIVersion:  "v1.0.0-alpha",
		StoreDriver: config.StoreDriverFile,
		DataFile:    path,
	}
	return newServer(cfg, zerolog.Nop(), patient.NewService(store), nil), path
}

func do(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func readCollection(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	var c []map[string]interface{}
	if err := json.Unmarshal(data, &c); err != nil {
		t.Fatalf("parse store: %v", err)
	}
	return c
}

func TestServer_Version(t *testing.T) {
	e, _ := newTestServer(t)
	rec := do(e, http.MethodGet, "/api")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "Current Version: v1.0.0-alpha" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestServer_CreateThenSearch(t *testing.T) {
	e, path := newTestServer(t)

	rec := do(e, http.MethodPost, "/api/v1.0.0-alpha/patients?lastName=Doe&primaryKey=42")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "Patient created" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}

	stored := readCollection(t, path)
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored record, got %d", len(stored))
	}
	if stored[0]["primaryKey"] != float64(1) {
		t.Errorf("expected primaryKey 1, got %v", stored[0]["primaryKey"])
	}
	if stored[0]["firstName"] != "" || stored[0]["mrn"] != "" {
		t.Errorf("expected unset fields to be empty strings, got %v", stored[0])
	}

	rec = do(e, http.MethodGet, "/api/v1.0.0-alpha/patients?lastName=Doe")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got patient.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.PrimaryKey != 1 || got.LastName != "Doe" {
		t.Errorf("unexpected record %+v", got)
	}
}

func TestServer_SearchNotFound(t *testing.T) {
	e, _ := newTestServer(t)
	rec := do(e, http.MethodGet, "/api/v1.0.0-alpha/patients?lastName=Nobody")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec.Body.String() != "Patient not found" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestServer_SearchManyReturnsArray(t *testing.T) {
	e, _ := newTestServer(t)
	do(e, http.MethodPost, "/api/v1.0.0-alpha/patients?lastName=Doe&firstName=Jane")
	do(e, http.MethodPost, "/api/v1.0.0-alpha/patients?lastName=Doe&firstName=John")

	rec := do(e, http.MethodGet, "/api/v1.0.0-alpha/patients?lastName=Doe")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []patient.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("expected array body: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 records, got %d", len(got))
	}
}

func TestServer_GetByID(t *testing.T) {
	e, _ := newTestServer(t)
	do(e, http.MethodPost, "/api/v1.0.0-alpha/patients?lastName=Doe")

	rec := do(e, http.MethodGet, "/api/v1.0.0-alpha/patients/1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = do(e, http.MethodGet, "/api/v1.0.0-alpha/patients/2")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestServer_UpdateLastName(t *testing.T) {
	e, path := newTestServer(t)
	do(e, http.MethodPost, "/api/v1.0.0-alpha/patients?lastName=Doe&firstName=Jane&room=12")

	rec := do(e, http.MethodPut, "/api/v1.0.0-alpha/patients?primaryKey=1&lastName=Smith")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "Patient updated" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}

	stored := readCollection(t, path)
	if stored[0]["lastName"] != "Smith" {
		t.Errorf("expected lastName Smith, got %v", stored[0]["lastName"])
	}
	if stored[0]["firstName"] != "Jane" || stored[0]["room"] != float64(12) {
		t.Errorf("expected other fields unchanged, got %v", stored[0])
	}
}

func TestServer_UpdateWithoutKey(t *testing.T) {
	e, path := newTestServer(t)
	do(e, http.MethodPost, "/api/v1.0.0-alpha/patients?lastName=Doe")
	before, _ := os.ReadFile(path)

	rec := do(e, http.MethodPut, "/api/v1.0.0-alpha/patients?lastName=Smith")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if rec.Body.String() != "Bad Request. Primary Key Required." {
		t.Errorf("unexpected body %q", rec.Body.String())
	}

	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Error("expected store to be unchanged")
	}
}

func TestServer_UpdateAmbiguous(t *testing.T) {
	e, path := newTestServer(t)
	dup := `[{"primaryKey":3,"lastName":"A"},{"primaryKey":3,"lastName":"B"}]`
	if err := os.WriteFile(path, []byte(dup), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := do(e, http.MethodPut, "/api/v1.0.0-alpha/patients?primaryKey=3&lastName=C")
	if rec.Code != http.StatusMultipleChoices {
		t.Fatalf("expected 300, got %d", rec.Code)
	}
	if rec.Body.String() != "Multiple patients found" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestServer_DeleteMissing(t *testing.T) {
	e, path := newTestServer(t)
	do(e, http.MethodPost, "/api/v1.0.0-alpha/patients?lastName=Doe")
	before, _ := os.ReadFile(path)

	rec := do(e, http.MethodDelete, "/api/v1.0.0-alpha/patients?primaryKey=999")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Error("expected store to be unchanged")
	}
}

func TestServer_Delete(t *testing.T) {
	e, path := newTestServer(t)
	do(e, http.MethodPost, "/api/v1.0.0-alpha/patients?lastName=Doe")

	rec := do(e, http.MethodDelete, "/api/v1.0.0-alpha/patients")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without key, got %d", rec.Code)
	}

	rec = do(e, http.MethodDelete, "/api/v1.0.0-alpha/patients?primaryKey=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "Patient deleted" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
	if n := len(readCollection(t, path)); n != 0 {
		t.Errorf("expected empty collection, got %d records", n)
	}
}

func TestServer_UnknownVersion(t *testing.T) {
	e, _ := newTestServer(t)
	rec := do(e, http.MethodGet, "/api/v2/patients")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestServer_MissingStoreIsServerError(t *testing.T) {
	e, path := newTestServer(t)
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	rec := do(e, http.MethodGet, "/api/v1.0.0-alpha/patients")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}

	rec = do(e, http.MethodGet, "/health/store")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 from store health, got %d", rec.Code)
	}
}

func TestServer_HealthAndRequestID(t *testing.T) {
	e, _ := newTestServer(t)
	rec := do(e, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestStoreCmd_InitAndDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "patients.json")
	t.Setenv("STORE_DRIVER", config.StoreDriverFile)
	t.Setenv("DATA_FILE", path)

	cmd := storeCmd()
	cmd.SetArgs([]string{"init"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("store init: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected store file to exist: %v", err)
	}

	var out strings.Builder
	cmd = storeCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"dump"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("store dump: %v", err)
	}
	if out.String() != "[]\n" {
		t.Errorf("expected empty array, got %q", out.String())
	}
}
