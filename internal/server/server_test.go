package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aidanlsb/chronos/internal/events"
	"github.com/aidanlsb/chronos/internal/rename"
)

type fakeRenamer struct {
	res rename.Result
	err error
	got rename.Request
}

func (f *fakeRenamer) Rename(ctx context.Context, req rename.Request) (rename.Result, error) {
	f.got = req
	return f.res, f.err
}

type panicRenamer struct{}

func (panicRenamer) Rename(context.Context, rename.Request) (rename.Result, error) {
	panic("boom")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func postRename(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/scripts/rename", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRenameSuccess(t *testing.T) {
	fr := &fakeRenamer{res: rename.Result{OldUID: "alpha", NewUID: "beta"}}
	h := New(Options{Logger: discardLogger(), Renamer: fr})

	rec := postRename(t, h, `{"old_name":"Alpha","new_name":"Beta"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if fr.got.OldName != "Alpha" || fr.got.NewName != "Beta" {
		t.Fatalf("request = %+v", fr.got)
	}
	resp := decode(t, rec)
	data, _ := resp.Data.(map[string]any)
	if !resp.OK || data["old_uid"] != "alpha" || data["new_uid"] != "beta" {
		t.Fatalf("response = %+v", resp)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("missing request id header")
	}
}

func TestRenameErrorStatuses(t *testing.T) {
	tests := []struct {
		kind   rename.Kind
		status int
		code   string
	}{
		{rename.KindNotFound, http.StatusNotFound, "SCRIPT_NOT_FOUND"},
		{rename.KindConflict, http.StatusConflict, "SCRIPT_EXISTS"},
		{rename.KindLocked, http.StatusLocked, "RENAME_LOCKED"},
		{rename.KindInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
		{rename.KindStoreFailure, http.StatusInternalServerError, "DATABASE_ERROR"},
		{rename.KindDelegatedFailure, http.StatusBadGateway, "ENVIRONMENT_ERROR"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			fr := &fakeRenamer{err: &rename.Error{Kind: tt.kind, Op: "old script directory", UID: "alpha", Path: "/s/alpha"}}
			rec := postRename(t, New(Options{Logger: discardLogger(), Renamer: fr}), `{"old_name":"Alpha","new_name":"Beta"}`)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			resp := decode(t, rec)
			if resp.OK || resp.Error == nil || resp.Error.Code != tt.code {
				t.Fatalf("response = %+v", resp)
			}
			if resp.Error.Details["uid"] != "alpha" || resp.Error.Details["path"] != "/s/alpha" {
				t.Fatalf("details = %+v", resp.Error.Details)
			}
		})
	}
}

func TestRenameUnclassifiedError(t *testing.T) {
	fr := &fakeRenamer{err: errors.New("mystery")}
	rec := postRename(t, New(Options{Logger: discardLogger(), Renamer: fr}), `{"old_name":"a","new_name":"b"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRenameBadBody(t *testing.T) {
	fr := &fakeRenamer{}
	h := New(Options{Logger: discardLogger(), Renamer: fr})
	for _, body := range []string{`not json`, `{"old":"a"}`} {
		rec := postRename(t, h, body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d", body, rec.Code)
		}
		if resp := decode(t, rec); resp.Error == nil || resp.Error.Code != "INVALID_INPUT" {
			t.Fatalf("body %q: response = %+v", body, resp)
		}
	}
}

func TestRenameRejectsGet(t *testing.T) {
	h := New(Options{Logger: discardLogger(), Renamer: &fakeRenamer{}})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scripts/rename", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	failing := Check{Name: "database", Check: func(context.Context) error { return errors.New("down") }}
	h := New(Options{Logger: discardLogger(), Renamer: &fakeRenamer{}, Checks: []Check{failing}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !decode(t, rec).OK {
		t.Fatalf("healthz = %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"version"`) {
		t.Fatalf("healthz should report version: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"down"`) {
		t.Fatalf("readyz body = %s", rec.Body.String())
	}
}

func TestPanicRecovered(t *testing.T) {
	h := New(Options{Logger: discardLogger(), Renamer: panicRenamer{}})
	rec := postRename(t, h, `{"old_name":"a","new_name":"b"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp := decode(t, rec); resp.Error == nil || resp.Error.Code != "INTERNAL_ERROR" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestEventStreamThroughMiddleware(t *testing.T) {
	hub := events.NewHub(discardLogger())
	srv := httptest.NewServer(New(Options{Logger: discardLogger(), Renamer: &fakeRenamer{}, Events: hub}))
	defer srv.Close()
	defer hub.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/events", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}
	hub.Trigger(events.ScriptRenamed, events.Payload{"new_uid": "beta"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var e events.Event
	if err := conn.ReadJSON(&e); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if e.Name != events.ScriptRenamed || e.Payload["new_uid"] != "beta" {
		t.Fatalf("event = %+v", e)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, discardLogger(), Config{ShutdownTimeout: time.Second}, ln, New(Options{Renamer: &fakeRenamer{}, Logger: discardLogger()}))
	}()

	var resp *http.Response
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err = http.Get("http://" + ln.Addr().String() + "/healthz")
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunRequiresAddr(t *testing.T) {
	if err := Run(context.Background(), discardLogger(), Config{}, http.NotFoundHandler()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRequestsAreLoggedWithID(t *testing.T) {
	tests := []struct {
		name      string
		renamer   Renamer
		header    string
		wantLevel string
		wantCode  string
	}{
		{"client id", &fakeRenamer{}, "req-42", "level=INFO", "status=200"},
		{"panic", panicRenamer{}, "", "level=ERROR", "status=500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			h := New(Options{Logger: slog.New(slog.NewTextHandler(&logs, nil)), Renamer: tt.renamer})

			req := httptest.NewRequest(http.MethodPost, "/api/scripts/rename", strings.NewReader(`{"old_name":"a","new_name":"b"}`))
			if tt.header != "" {
				req.Header.Set("X-Request-Id", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			id := rec.Header().Get("X-Request-Id")
			if id == "" || (tt.header != "" && id != tt.header) {
				t.Fatalf("X-Request-Id = %q", id)
			}
			out := logs.String()
			for _, want := range []string{"request_id=" + id, "msg=\"http request\"", tt.wantLevel, tt.wantCode} {
				if !strings.Contains(out, want) {
					t.Fatalf("log missing %q:\n%s", want, out)
				}
			}
		})
	}
}
