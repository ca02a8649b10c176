package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"ideashare/api/internal/auth"
)

var testSecret = []byte("test-secret")

func newTestServer(t *testing.T) (*harness, http.Handler) {
	t.Helper()
	h := newHarness(t)
	server := NewHTTPServer(h.svc, HTTPOptions{
		JWTSecret: testSecret,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Blobs:     h.blobs,
	})
	return h, server.Handler()
}

func bearerFor(t *testing.T, sub string) string {
	t.Helper()
	token, err := auth.IssueToken(testSecret, auth.Claims{Sub: sub, Exp: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	return "Bearer " + token
}

func uploadRequest(t *testing.T, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="audio"; filename="hook.mp3"`)
	header.Set("Content-Type", "audio/mpeg")
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("CreatePart() error = %v", err)
	}
	_, _ = part.Write([]byte("ID3-audio"))
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("WriteField() error = %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/ideas", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func serve(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	_, handler := newTestServer(t)
	rr := serve(handler, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if ok := decode(t, rr)["ok"]; ok != true {
		t.Errorf("expected ok=true, got %v", ok)
	}
}

func TestReadyEndpoint(t *testing.T) {
	h, handler := newTestServer(t)
	rr := serve(handler, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	if rr.Code != http.StatusOK || decode(t, rr)["status"] != "ready" {
		t.Fatalf("ready = %d %s", rr.Code, rr.Body.String())
	}

	h.store.pingFn = func(context.Context) error { return errors.New("connection refused") }
	rr = serve(handler, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
	payload := decode(t, rr)
	if payload["ok"] != false || payload["status"] != "not_ready" {
		t.Fatalf("unexpected payload %v", payload)
	}
	checks := payload["checks"].(map[string]any)["store"].(map[string]any)
	if checks["error"] != "connection refused" {
		t.Fatalf("store check = %v", checks)
	}
}

func TestEmbargoOptionsEndpoint(t *testing.T) {
	_, handler := newTestServer(t)
	rr := serve(handler, httptest.NewRequest(http.MethodGet, "/api/embargo-options", nil))
	options, _ := decode(t, rr)["options"].([]any)
	if rr.Code != http.StatusOK || len(options) != 4 {
		t.Fatalf("embargo options = %d %s", rr.Code, rr.Body.String())
	}
}

func TestCreateRequiresBearer(t *testing.T) {
	_, handler := newTestServer(t)
	rr := serve(handler, uploadRequest(t, nil))
	if rr.Code != http.StatusUnauthorized || decode(t, rr)["code"] != "UNAUTHORIZED" {
		t.Fatalf("create without token = %d %s", rr.Code, rr.Body.String())
	}

	req := uploadRequest(t, nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	if rr := serve(handler, req); rr.Code != http.StatusUnauthorized {
		t.Fatalf("create with bad token = %d", rr.Code)
	}
}

func TestCreateAndListOverHTTP(t *testing.T) {
	h, handler := newTestServer(t)

	req := uploadRequest(t, map[string]string{"description": "bridge idea", "bpm": "96", "embargoSeconds": "0"})
	req.Header.Set("Authorization", bearerFor(t, "alice"))
	rr := serve(handler, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rr.Code, rr.Body.String())
	}
	created := decode(t, rr)["idea"].(map[string]any)
	if created["owned"] != true || created["bpm"] != float64(96) || created["visibility"] != "public" {
		t.Fatalf("created = %v", created)
	}
	audioURL, _ := created["audioUrl"].(string)
	if !strings.HasPrefix(audioURL, "http://test/api/blobs/") {
		t.Fatalf("audioUrl = %q", audioURL)
	}

	rr = serve(handler, httptest.NewRequest(http.MethodGet, "/api/ideas", nil))
	listed, _ := decode(t, rr)["ideas"].([]any)
	if len(listed) != 1 || listed[0].(map[string]any)["owned"] != false {
		t.Fatalf("public list = %s", rr.Body.String())
	}

	mine := httptest.NewRequest(http.MethodGet, "/api/ideas/mine", nil)
	mine.Header.Set("Authorization", bearerFor(t, "alice"))
	rr = serve(handler, mine)
	owned, _ := decode(t, rr)["ideas"].([]any)
	if rr.Code != http.StatusOK || len(owned) != 1 {
		t.Fatalf("mine = %d %s", rr.Code, rr.Body.String())
	}

	blobReq := httptest.NewRequest(http.MethodGet, strings.TrimPrefix(audioURL, "http://test"), nil)
	rr = serve(handler, blobReq)
	if rr.Code != http.StatusOK || rr.Body.String() != "ID3-audio" || rr.Header().Get("Content-Type") != "audio/mpeg" {
		t.Fatalf("blob = %d %q %q", rr.Code, rr.Body.String(), rr.Header().Get("Content-Type"))
	}
	if h.blobs.Len() != 1 {
		t.Fatalf("blobs = %d", h.blobs.Len())
	}
}

func TestCreateRejectsBadFields(t *testing.T) {
	_, handler := newTestServer(t)
	tests := []struct {
		fields map[string]string
		code   string
	}{
		{map[string]string{"embargoSeconds": "soon"}, "INVALID_EMBARGO"},
		{map[string]string{"embargoSeconds": "3600"}, "INVALID_EMBARGO"},
		{map[string]string{"bpm": "-1"}, "NEGATIVE"},
		{map[string]string{"bpm": "1000"}, "OUT_OF_RANGE"},
	}
	for _, tt := range tests {
		req := uploadRequest(t, tt.fields)
		req.Header.Set("Authorization", bearerFor(t, "alice"))
		rr := serve(handler, req)
		if rr.Code != http.StatusUnprocessableEntity || decode(t, rr)["code"] != tt.code {
			t.Errorf("%v = %d %s, want %s", tt.fields, rr.Code, rr.Body.String(), tt.code)
		}
	}
}

func TestVoteOverHTTP(t *testing.T) {
	h, handler := newTestServer(t)
	idea := h.create(t, "alice", 0)

	rr := serve(handler, httptest.NewRequest(http.MethodPost, "/api/ideas/"+idea.ID+"/vote", nil))
	if rr.Code != http.StatusBadRequest || decode(t, rr)["code"] != "DEVICE_ID_REQUIRED" {
		t.Fatalf("vote without device = %d %s", rr.Code, rr.Body.String())
	}

	vote := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/ideas/"+idea.ID+"/vote", nil)
		req.Header.Set("X-Device-ID", "device-1234")
		return serve(handler, req)
	}
	rr = vote()
	if rr.Code != http.StatusOK || decode(t, rr)["voteCount"] != float64(1) {
		t.Fatalf("vote = %d %s", rr.Code, rr.Body.String())
	}
	rr = vote()
	if rr.Code != http.StatusConflict || decode(t, rr)["code"] != "ALREADY_VOTED" {
		t.Fatalf("repeat vote = %d %s", rr.Code, rr.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/votes", nil)
	req.Header.Set("X-Device-ID", "device-1234")
	rr = serve(handler, req)
	ids, _ := decode(t, rr)["ideaIds"].([]any)
	if len(ids) != 1 || ids[0] != idea.ID {
		t.Fatalf("votes = %s", rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/ideas/missing/vote", nil)
	req.Header.Set("X-Device-ID", "device-1234")
	rr = serve(handler, req)
	if rr.Code != http.StatusNotFound || decode(t, rr)["code"] != "IDEA_GONE" {
		t.Fatalf("vote on missing = %d %s", rr.Code, rr.Body.String())
	}
}

func TestReleaseAndDeleteOverHTTP(t *testing.T) {
	h, handler := newTestServer(t)
	public := h.create(t, "alice", 0)
	private := h.create(t, "alice", 604800)

	del := httptest.NewRequest(http.MethodDelete, "/api/ideas/"+public.ID, nil)
	del.Header.Set("Authorization", bearerFor(t, "alice"))
	if rr := serve(handler, del); rr.Code != http.StatusForbidden || decode(t, rr)["code"] != "ALREADY_PUBLIC" {
		t.Fatalf("delete public = %d %s", rr.Code, rr.Body.String())
	}

	rel := httptest.NewRequest(http.MethodPost, "/api/ideas/"+private.ID+"/release", nil)
	rel.Header.Set("Authorization", bearerFor(t, "alice"))
	if rr := serve(handler, rel); rr.Code != http.StatusForbidden || decode(t, rr)["code"] != "NOT_YET_PUBLIC" {
		t.Fatalf("release private = %d %s", rr.Code, rr.Body.String())
	}

	rel = httptest.NewRequest(http.MethodPost, "/api/ideas/"+public.ID+"/release", nil)
	rel.Header.Set("Authorization", bearerFor(t, "bob"))
	if rr := serve(handler, rel); rr.Code != http.StatusForbidden || decode(t, rr)["code"] != "NOT_OWNER" {
		t.Fatalf("release by bob = %d %s", rr.Code, rr.Body.String())
	}

	rel = httptest.NewRequest(http.MethodPost, "/api/ideas/"+public.ID+"/release", nil)
	rel.Header.Set("Authorization", bearerFor(t, "alice"))
	rr := serve(handler, rel)
	if rr.Code != http.StatusOK {
		t.Fatalf("release = %d %s", rr.Code, rr.Body.String())
	}
	if released := decode(t, rr)["idea"].(map[string]any); released["released"] != true || released["owned"] != false {
		t.Fatalf("released = %v", released)
	}

	del = httptest.NewRequest(http.MethodDelete, "/api/ideas/"+private.ID, nil)
	del.Header.Set("Authorization", bearerFor(t, "alice"))
	if rr := serve(handler, del); rr.Code != http.StatusOK {
		t.Fatalf("delete private = %d %s", rr.Code, rr.Body.String())
	}
	del = httptest.NewRequest(http.MethodDelete, "/api/ideas/"+private.ID, nil)
	del.Header.Set("Authorization", bearerFor(t, "alice"))
	if rr := serve(handler, del); rr.Code != http.StatusNotFound {
		t.Fatalf("delete twice = %d", rr.Code)
	}
}

func TestSearchOverHTTP(t *testing.T) {
	h, handler := newTestServer(t)
	h.create(t, "alice", 0)
	rr := serve(handler, httptest.NewRequest(http.MethodGet, "/api/search?q=night", nil))
	if rr.Code != http.StatusOK || decode(t, rr)["total"] != float64(1) {
		t.Fatalf("search = %d %s", rr.Code, rr.Body.String())
	}
}

func TestCORSHeaders(t *testing.T) {
	_, handler := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://app.test")
	rr := serve(handler, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}
}
