package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"webar/internal/api"
	"webar/internal/backend"
	"webar/internal/catalog"
	"webar/internal/httpapi"
	"webar/internal/logging"
	"webar/internal/registry"
	"webar/internal/testsupport"
)

const token = "s3cret"

type nopScheduler struct{}

func (nopScheduler) Submit(int64) bool { return true }

type harness struct {
	handler http.Handler
	reg     *registry.Store
	svc     *catalog.Service
}

func newHarness(t *testing.T) harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken(token))
	reg := testsupport.MustOpenRegistry(t, cfg)
	blobs := testsupport.MustOpenStore(t, cfg)
	svc := catalog.New(reg, blobs, backend.Local{}, nopScheduler{}, cfg.Server.BaseURL, logging.NewNop())
	srv := httpapi.New(httpapi.Options{
		Catalog:     svc,
		Token:       cfg.Paths.APIToken,
		BaseURL:     cfg.Server.BaseURL,
		BackendName: backend.Local{}.Name(),
		Limits:      catalog.UploadLimits{MaxBytes: 4096, AllowedExtensions: cfg.Server.AllowedExtensions},
		Logger:      logging.NewNop(),
		Health: func(context.Context) api.Health {
			return api.Health{Status: "ok", Backend: "local"}
		},
	})
	return harness{handler: srv.Handler(), reg: reg, svc: svc}
}

func (h harness) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func authed(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func uploadRequest(t *testing.T, filename, name string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if name != "" {
		if err := mw.WriteField("name", name); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/admin/models/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return authed(req)
}

type envelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	RequestID string          `json:"requestId"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, into any) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	if into != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, into); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return env
}

func TestUploadCreatesConvertingAsset(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, uploadRequest(t, "chair.glb", "Armchair", testsupport.SampleGLB(t)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var asset api.Asset
	env := decode(t, rec, &asset)
	if !env.Success || env.RequestID == "" || rec.Header().Get("X-Request-ID") != env.RequestID {
		t.Fatalf("unexpected envelope: %#v", env)
	}
	if asset.Status != string(registry.StatusConverting) || asset.USDZURL != nil || !strings.HasPrefix(asset.Slug, "armchair-") {
		t.Fatalf("unexpected asset: %#v", asset)
	}
	if asset.ViewURL != "http://viewer.test/p/"+asset.Slug {
		t.Fatalf("unexpected view url %q", asset.ViewURL)
	}
}

func TestUploadValidation(t *testing.T) {
	h := newHarness(t)
	glb := testsupport.SampleGLB(t)

	cases := map[string]*http.Request{
		"extension": uploadRequest(t, "chair.obj", "", glb),
		"magic":     uploadRequest(t, "chair.glb", "", []byte("not a model")),
		"size":      uploadRequest(t, "chair.glb", "", append(append([]byte{}, glb...), make([]byte, 5000)...)),
	}
	for name, req := range cases {
		if rec := h.do(t, req); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d: %s", name, rec.Code, rec.Body.String())
		}
	}

	missing := authed(httptest.NewRequest(http.MethodPost, "/api/admin/models/upload", strings.NewReader("")))
	missing.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	if rec := h.do(t, missing); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing file, got %d", rec.Code)
	}

	_, total, _ := h.reg.List(context.Background(), registry.ListOptions{})
	if total != 0 {
		t.Fatalf("rejected uploads must not create records, found %d", total)
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	h := newHarness(t)
	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/admin/models", nil),
		httptest.NewRequest(http.MethodGet, "/api/admin/models/1", nil),
		httptest.NewRequest(http.MethodDelete, "/api/admin/models/1", nil),
	} {
		req.Header.Set("Authorization", "Bearer wrong")
		if rec := h.do(t, req); rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", req.Method, req.URL.Path, rec.Code)
		}
	}
	if rec := h.do(t, httptest.NewRequest(http.MethodGet, "/api/health", nil)); rec.Code != http.StatusOK {
		t.Fatalf("health must be public, got %d", rec.Code)
	}
}

func TestListAndAdminGet(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := h.svc.Create(ctx, catalog.CreateRequest{Data: testsupport.SampleGLB(t), Name: fmt.Sprintf("Chair %d", i)}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	rec := h.do(t, authed(httptest.NewRequest(http.MethodGet, "/api/admin/models?page=1&limit=2", nil)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list api.AssetList
	decode(t, rec, &list)
	if len(list.Items) != 2 || list.Pagination.Total != 3 || list.Pagination.Pages != 2 {
		t.Fatalf("unexpected list: %#v", list)
	}

	if rec := h.do(t, authed(httptest.NewRequest(http.MethodGet, "/api/admin/models?status=pending", nil))); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}
	if rec := h.do(t, authed(httptest.NewRequest(http.MethodGet, "/api/admin/models?page=zero", nil))); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad page, got %d", rec.Code)
	}

	id := list.Items[0].ID
	rec = h.do(t, authed(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/admin/models/%d", id), nil)))
	var one api.Asset
	decode(t, rec, &one)
	if rec.Code != http.StatusOK || one.ID != id {
		t.Fatalf("unexpected admin get: %d %#v", rec.Code, one)
	}
	if rec := h.do(t, authed(httptest.NewRequest(http.MethodGet, "/api/admin/models/abc", nil))); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric id, got %d", rec.Code)
	}
	if rec := h.do(t, authed(httptest.NewRequest(http.MethodGet, "/api/admin/models/999", nil))); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", rec.Code)
	}
}

func TestDeleteRoute(t *testing.T) {
	h := newHarness(t)
	asset, err := h.svc.Create(context.Background(), catalog.CreateRequest{Data: testsupport.SampleGLB(t), Name: "Lamp"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	path := fmt.Sprintf("/api/admin/models/%d", asset.ID)
	if rec := h.do(t, authed(httptest.NewRequest(http.MethodDelete, path, nil))); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := h.do(t, authed(httptest.NewRequest(http.MethodDelete, path, nil))); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}
	if rec := h.do(t, httptest.NewRequest(http.MethodGet, "/api/models/"+asset.Slug, nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("expected public view gone, got %d", rec.Code)
	}
}

func TestPublicViewAndFiles(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	glb := testsupport.SampleGLB(t)
	asset, err := h.svc.Create(ctx, catalog.CreateRequest{Data: glb, Name: "Sofa"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/api/models/"+asset.Slug, nil))
	var view api.PublicAsset
	decode(t, rec, &view)
	if rec.Code != http.StatusOK || view.Slug != asset.Slug || view.USDZURL != nil {
		t.Fatalf("unexpected public view: %d %#v", rec.Code, view)
	}
	if strings.Contains(rec.Body.String(), "diagnostics") || strings.Contains(rec.Body.String(), "backend") {
		t.Fatalf("public view leaked admin fields: %s", rec.Body.String())
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("expected public CORS header")
	}

	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/api/models/"+asset.Slug+"/file", nil))
	if rec.Code != http.StatusOK || !bytes.Equal(rec.Body.Bytes(), glb) {
		t.Fatalf("unexpected glb download: %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "model/gltf-binary" || rec.Header().Get("Cache-Control") != "public, max-age=3600" {
		t.Fatalf("unexpected headers: %v", rec.Header())
	}

	if rec := h.do(t, httptest.NewRequest(http.MethodGet, "/api/models/"+asset.Slug+"/file?format=usdz", nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for usdz before conversion, got %d", rec.Code)
	}
	if rec := h.do(t, httptest.NewRequest(http.MethodGet, "/api/models/"+asset.Slug+"/file?format=fbx", nil)); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", rec.Code)
	}
	if rec := h.do(t, httptest.NewRequest(http.MethodGet, "/api/models/nope-00000000", nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown slug, got %d", rec.Code)
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := h.do(t, req)
	env := decode(t, rec, nil)
	if rec.Header().Get("X-Request-ID") != "abc-123" || env.RequestID != "abc-123" {
		t.Fatalf("expected caller request id echoed, got %q / %q", rec.Header().Get("X-Request-ID"), env.RequestID)
	}
}

func TestRateLimitPerClient(t *testing.T) {
	srv := httpapi.New(httpapi.Options{
		RateLimit: httpapi.RateLimit{Requests: 2, Window: time.Minute},
		Logger:    logging.NewNop(),
		Health: func(context.Context) api.Health {
			return api.Health{Status: "ok", Backend: "local"}
		},
	})
	handler := srv.Handler()
	get := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := get("198.51.100.7:4000"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
	rec := get("198.51.100.7:4001")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" || rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected Retry-After and request id headers, got %v", rec.Header())
	}
	var env api.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil || env.Success || env.RequestID == "" {
		t.Fatalf("expected failure envelope, got %s (%v)", rec.Body.String(), err)
	}

	if rec := get("203.0.113.9:4000"); rec.Code != http.StatusOK {
		t.Fatalf("expected other client to pass, got %d", rec.Code)
	}
}
