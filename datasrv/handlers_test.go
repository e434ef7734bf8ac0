package datasrv

import (
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

func setupTestServer(t *testing.T) (*echo.Echo, *FileStore) {
	t.Helper()
	store := NewFileStore(filepath.Join(t.TempDir(), "data.json"))
	log := logrus.New()
	log.SetOutput(io.Discard)

	e := echo.New()
	NewHandler(store, log).RegisterRoutes(e.Group("/api"))
	return e, store
}

func do(e *echo.Echo, method, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, "/api/data", r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestGetBeforeAnyDataReturnsDefault(t *testing.T) {
	e, _ := setupTestServer(t)

	rec := do(e, http.MethodGet, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	want := `{"newsItems":[],"galleryItems":[],"videoUrl":""}`
	if got := strings.TrimSpace(rec.Body.String()); got != want {
		t.Errorf("body = %s, want %s", got, want)
	}
}

func TestPostThenGet(t *testing.T) {
	e, _ := setupTestServer(t)

	rec := do(e, http.MethodPost, `{"newsItems":[{"title":"a","description":"b"}],"extra":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST status = %d, body %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("POST body = %s", rec.Body)
	}

	rec = do(e, http.MethodGet, "")
	if !strings.Contains(rec.Body.String(), `"extra": 1`) {
		t.Errorf("arbitrary fields should be kept verbatim, got %s", rec.Body)
	}
}

func TestPostRejectsNonObjects(t *testing.T) {
	e, store := setupTestServer(t)

	if rec := do(e, http.MethodPost, `{"videoUrl":"keep"}`); rec.Code != http.StatusOK {
		t.Fatalf("seed POST status = %d", rec.Code)
	}
	before := string(store.Load())

	for _, body := range []string{`null`, `42`, `[1,2]`, `"text"`, `{oops`} {
		rec := do(e, http.MethodPost, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("POST %s status = %d, want 400", body, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"error":"Invalid payload"`) {
			t.Errorf("POST %s body = %s", body, rec.Body)
		}
	}

	if after := string(store.Load()); after != before {
		t.Errorf("rejected writes changed stored data:\nbefore %s\nafter  %s", before, after)
	}
}

func TestLoadIgnoresCorruptFile(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "data.json"))
	if err := store.Save([]byte(`{"a":1}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save([]byte(`{bad`)); err == nil {
		t.Fatal("Save of invalid JSON should fail")
	}
	if got := string(store.Load()); !strings.Contains(got, `"a": 1`) {
		t.Errorf("Load = %s", got)
	}
}
