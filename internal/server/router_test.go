package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/notemirror/backend/internal/auth"
	"github.com/notemirror/backend/internal/catalog"
	"github.com/notemirror/backend/internal/syncer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubSync struct {
	summary    syncer.Summary
	syncErr    error
	creds      auth.Credentials
	credsErr   error
	lastUserID int64
	lastToken  string
}

func (s *stubSync) SyncUser(_ context.Context, userID int64) (syncer.Summary, error) {
	s.lastUserID = userID
	return s.summary, s.syncErr
}

func (s *stubSync) StoreCredentials(_ context.Context, userID int64, token string) (auth.Credentials, error) {
	s.lastUserID = userID
	s.lastToken = token
	return s.creds, s.credsErr
}

type stubCatalog struct {
	notebooks   []catalog.NotebookView
	page        catalog.NotesPage
	logs        []syncer.SyncLog
	toggleState bool
	toggleErr   error
	lastFilters catalog.NoteFilters
}

func (s *stubCatalog) ListNotebooks(context.Context, int64) ([]catalog.NotebookView, error) {
	return s.notebooks, nil
}

func (s *stubCatalog) ListNotes(_ context.Context, _ int64, filters catalog.NoteFilters) (catalog.NotesPage, error) {
	s.lastFilters = filters
	return s.page, nil
}

func (s *stubCatalog) SyncHistory(context.Context, int64, int) ([]syncer.SyncLog, error) {
	return s.logs, nil
}

func (s *stubCatalog) ToggleNotebookSync(context.Context, int64) (bool, error) {
	return s.toggleState, s.toggleErr
}

func newTestHandler(t *testing.T, sync *stubSync, cat *stubCatalog) http.Handler {
	t.Helper()
	handler, err := NewHTTPHandler(Dependencies{SyncService: sync, CatalogService: cat})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return handler
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestHandler(t, &stubSync{}, &stubCatalog{})
	recorder := doRequest(t, handler, http.MethodGet, "/health", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("health returned %d", recorder.Code)
	}
}

func TestTriggerSyncReturnsSummary(t *testing.T) {
	sync := &stubSync{summary: syncer.Summary{Notebooks: 3, Own: 2, Shared: 1, Notes: 12}}
	handler := newTestHandler(t, sync, &stubCatalog{})

	recorder := doRequest(t, handler, http.MethodPost, "/api/v1/evernote/sync/7", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("sync returned %d: %s", recorder.Code, recorder.Body.String())
	}
	if sync.lastUserID != 7 {
		t.Fatalf("expected user 7, got %d", sync.lastUserID)
	}
	body := decodeBody(t, recorder)
	if body["notes"] != float64(12) {
		t.Fatalf("unexpected summary body: %v", body)
	}
}

func TestTriggerSyncErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{name: "missing user", err: syncer.ErrUserNotFound, wantStatus: http.StatusNotFound, wantError: "user_not_found"},
		{name: "not connected", err: auth.ErrNotConnected, wantStatus: http.StatusBadRequest, wantError: "remote_not_connected"},
		{name: "expired token", err: auth.ErrTokenExpired, wantStatus: http.StatusBadRequest, wantError: "remote_not_connected"},
		{name: "engine failure", err: errors.New("page listing failed"), wantStatus: http.StatusInternalServerError, wantError: "page listing failed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestHandler(t, &stubSync{syncErr: tc.err}, &stubCatalog{})
			recorder := doRequest(t, handler, http.MethodPost, "/api/v1/evernote/sync/7", nil)
			if recorder.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", recorder.Code, tc.wantStatus)
			}
			if body := decodeBody(t, recorder); body["error"] != tc.wantError {
				t.Fatalf("error = %v, want %q", body["error"], tc.wantError)
			}
		})
	}
}

func TestTriggerSyncRejectsBadUserID(t *testing.T) {
	handler := newTestHandler(t, &stubSync{}, &stubCatalog{})
	for _, path := range []string{"/api/v1/evernote/sync/abc", "/api/v1/evernote/sync/0", "/api/v1/evernote/sync/-3"} {
		recorder := doRequest(t, handler, http.MethodPost, path, nil)
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("%s returned %d, want 400", path, recorder.Code)
		}
	}
}

func TestAuthCallbackStoresCredentials(t *testing.T) {
	sync := &stubSync{creds: auth.Credentials{RemoteUserID: 0x4a535ee}}
	handler := newTestHandler(t, sync, &stubCatalog{})

	recorder := doRequest(t, handler, http.MethodPost, "/api/v1/evernote/auth/callback",
		map[string]interface{}{"user_id": 7, "token": "S=s1:U=4a535ee:E=7fffffff"})
	if recorder.Code != http.StatusOK {
		t.Fatalf("callback returned %d: %s", recorder.Code, recorder.Body.String())
	}
	if sync.lastUserID != 7 || sync.lastToken != "S=s1:U=4a535ee:E=7fffffff" {
		t.Fatalf("credentials not forwarded: user=%d token=%q", sync.lastUserID, sync.lastToken)
	}
	if body := decodeBody(t, recorder); body["status"] != "connected" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestAuthCallbackValidation(t *testing.T) {
	handler := newTestHandler(t, &stubSync{}, &stubCatalog{})

	recorder := doRequest(t, handler, http.MethodPost, "/api/v1/evernote/auth/callback",
		map[string]interface{}{"user_id": 7})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("missing token returned %d, want 400", recorder.Code)
	}

	malformed := newTestHandler(t, &stubSync{credsErr: auth.ErrMalformedToken}, &stubCatalog{})
	recorder = doRequest(t, malformed, http.MethodPost, "/api/v1/evernote/auth/callback",
		map[string]interface{}{"user_id": 7, "token": "garbage"})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("malformed token returned %d, want 400", recorder.Code)
	}
	if body := decodeBody(t, recorder); body["error"] != "malformed_token" {
		t.Fatalf("unexpected body: %v", body)
	}

	missing := newTestHandler(t, &stubSync{credsErr: syncer.ErrUserNotFound}, &stubCatalog{})
	recorder = doRequest(t, missing, http.MethodPost, "/api/v1/evernote/auth/callback",
		map[string]interface{}{"user_id": 99, "token": "S=s1:E=7fffffff"})
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("unknown user returned %d, want 404", recorder.Code)
	}
}

func TestListNotesForwardsFilters(t *testing.T) {
	cat := &stubCatalog{page: catalog.NotesPage{Total: 0, Notes: []catalog.NoteView{}}}
	handler := newTestHandler(t, &stubSync{}, cat)

	recorder := doRequest(t, handler, http.MethodGet,
		"/api/v1/evernote/users/7/notes?q=roadmap&tag=work&company=Acme&notebook_id=3&shared_only=true&limit=10&offset=20", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("list notes returned %d", recorder.Code)
	}
	want := catalog.NoteFilters{
		Text: "roadmap", Tag: "work", Company: "Acme",
		NotebookID: 3, SharedOnly: true, Limit: 10, Offset: 20,
	}
	if cat.lastFilters != want {
		t.Fatalf("filters = %+v, want %+v", cat.lastFilters, want)
	}
}

func TestSyncStatusShapesEntries(t *testing.T) {
	cat := &stubCatalog{logs: []syncer.SyncLog{
		{ID: 2, PassID: "pass-2", SyncType: syncer.SyncTypeFull, Status: syncer.SyncStatusSuccess, NotesSynced: 4},
		{ID: 1, PassID: "pass-1", SyncType: syncer.SyncTypeFull, Status: syncer.SyncStatusFailed, ErrorMessage: "listing failed"},
	}}
	handler := newTestHandler(t, &stubSync{}, cat)

	recorder := doRequest(t, handler, http.MethodGet, "/api/v1/evernote/sync/7/status", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status returned %d", recorder.Code)
	}
	body := decodeBody(t, recorder)
	syncs, ok := body["syncs"].([]interface{})
	if !ok || len(syncs) != 2 {
		t.Fatalf("unexpected syncs payload: %v", body)
	}
	first := syncs[0].(map[string]interface{})
	if first["pass_id"] != "pass-2" || first["status"] != syncer.SyncStatusSuccess {
		t.Fatalf("unexpected first entry: %v", first)
	}
}

func TestToggleSyncRoutes(t *testing.T) {
	handler := newTestHandler(t, &stubSync{}, &stubCatalog{toggleState: false})
	recorder := doRequest(t, handler, http.MethodPatch, "/api/v1/evernote/notebooks/3/toggle-sync", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("toggle returned %d", recorder.Code)
	}
	if body := decodeBody(t, recorder); body["sync_enabled"] != false {
		t.Fatalf("unexpected body: %v", body)
	}

	missing := newTestHandler(t, &stubSync{}, &stubCatalog{toggleErr: catalog.ErrNotebookNotFound})
	recorder = doRequest(t, missing, http.MethodPatch, "/api/v1/evernote/notebooks/99/toggle-sync", nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("missing notebook returned %d, want 404", recorder.Code)
	}
}

func TestNewHTTPHandlerValidatesDependencies(t *testing.T) {
	if _, err := NewHTTPHandler(Dependencies{CatalogService: &stubCatalog{}}); err == nil {
		t.Fatalf("expected missing sync service error")
	}
	if _, err := NewHTTPHandler(Dependencies{SyncService: &stubSync{}}); err == nil {
		t.Fatalf("expected missing catalog service error")
	}
}
