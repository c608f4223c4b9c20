package main

import (
	"bytes"
	"encoding/json"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/distribution_backend/config"
	"github.com/mmdatafocus/distribution_backend/middlewares"
	"github.com/mmdatafocus/distribution_backend/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testRouter mounts the routes without the readiness gate, so requests that never reach
// storage can be exercised without a database.
func testRouter() *gin.Engine {
	r := gin.New()
	r.Use(correlationMiddleware())
	r.Use(middlewares.AuthMiddleware())
	registerRoutes(r.Group("/", middlewares.RequireActor()))
	r.NoRoute(customNotFoundHandler)
	return r
}

func bearer(t *testing.T, role string, unitId int) string {
	t.Helper()
	token, err := utils.JwtGenerate(1, "tester", role, unitId)
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	return "Bearer " + token
}

func serve(r http.Handler, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthzBypassesReadiness(t *testing.T) {
	r := newRouter(config.GetLogger())
	if w := serve(r, http.MethodGet, "/healthz", ""); w.Code != http.StatusNoContent {
		t.Fatalf("healthz: expected 204, got %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/units", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("units before storage is up: expected 503, got %d", w.Code)
	}
}

func TestCorrelationIdEchoed(t *testing.T) {
	r := testRouter()
	req := httptest.NewRequest(http.MethodGet, "/units", nil)
	req.Header.Set("x-correlation-id", "req-77")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("x-correlation-id"); got != "req-77" {
		t.Fatalf("expected echoed id, got %q", got)
	}

	w = serve(r, http.MethodGet, "/units", "")
	if w.Header().Get("x-correlation-id") == "" {
		t.Fatalf("a correlation id should be minted")
	}
}

func TestRoutesRequireActor(t *testing.T) {
	r := testRouter()
	if w := serve(r, http.MethodGet, "/orders", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/orders", "Bearer garbage"); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: expected 401, got %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/orders", bearer(t, "ROOT", 0)); w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown role: expected 401, got %d", w.Code)
	}
}

func TestInvalidIdParam(t *testing.T) {
	r := testRouter()
	auth := bearer(t, "HUB", 1)
	for _, path := range []string{"/orders/abc/authorize", "/orders/0/confirm", "/orders/-3/cancel"} {
		w := serve(r, http.MethodPost, path, auth)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, w.Code)
		}
		var body errorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Code != "bad_request" {
			t.Fatalf("%s: unexpected body %s", path, w.Body.String())
		}
	}
}

func TestAuditLogsForbiddenForScopedActors(t *testing.T) {
	r := testRouter()
	for _, role := range []string{"HUB", "BRANCH"} {
		w := serve(r, http.MethodGet, "/audit-logs", bearer(t, role, 2))
		if w.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403, got %d", role, w.Code)
		}
	}
}

func TestSettlementQueueAccess(t *testing.T) {
	r := testRouter()
	cases := []struct {
		name   string
		path   string
		auth   string
		status int
	}{
		{"branch", "/settlements?status=pending", bearer(t, "BRANCH", 2), http.StatusForbidden},
		{"other hub", "/settlements?source_unit_id=5", bearer(t, "HUB", 2), http.StatusForbidden},
		{"unsupported status", "/settlements?status=validated", bearer(t, "HUB", 2), http.StatusBadRequest},
		{"bad unit", "/settlements?source_unit_id=abc", bearer(t, "UNRESTRICTED", 0), http.StatusBadRequest},
	}
	for _, tc := range cases {
		if w := serve(r, http.MethodGet, tc.path, tc.auth); w.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, w.Code)
		}
	}
}

func TestListOrdersRejectsUnknownPaymentStatus(t *testing.T) {
	r := testRouter()
	w := serve(r, http.MethodGet, "/orders?payment_status=pending,owed", bearer(t, "HUB", 2))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	r := testRouter()
	if w := serve(r, http.MethodGet, "/nowhere", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestReceiptExtension(t *testing.T) {
	cases := map[string]string{
		"receipt.PDF":    ".pdf",
		" photo.jpeg ":   ".jpeg",
		"scan.final.png": ".png",
		"transfer.JPG":   ".jpg",
	}
	for name, want := range cases {
		got, err := receiptExtension(name)
		if err != nil || got != want {
			t.Fatalf("%q: expected %s, got %s %v", name, want, got, err)
		}
	}
	for _, name := range []string{"receipt.exe", "noext", "image.gif"} {
		if _, err := receiptExtension(name); err != errUnsupportedReceipt {
			t.Fatalf("%q: expected errUnsupportedReceipt, got %v", name, err)
		}
	}
}

func TestCheckReceiptSize(t *testing.T) {
	if err := checkReceiptSize(0); err != errEmptyReceipt {
		t.Fatalf("empty: got %v", err)
	}
	if err := checkReceiptSize(maxUploadSizeBytes); err != nil {
		t.Fatalf("at limit: got %v", err)
	}
	if err := checkReceiptSize(maxUploadSizeBytes + 1); err != errReceiptTooLarge {
		t.Fatalf("over limit: got %v", err)
	}
}

func TestReceiptObjectKey(t *testing.T) {
	a, b := receiptObjectKey(".pdf"), receiptObjectKey(".pdf")
	if a == b {
		t.Fatalf("keys should be unique")
	}
	if len(a) != len("receipts/")+36+len(".pdf") || a[:9] != "receipts/" {
		t.Fatalf("unexpected key %s", a)
	}
}

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := imaging.New(width, height, color.NRGBA{R: 200, G: 10, B: 10, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestDownscaleReceipt(t *testing.T) {
	small := encodePNG(t, 200, 100)
	out, err := downscaleReceipt(small, ".png")
	if err != nil {
		t.Fatalf("small image: %v", err)
	}
	if !bytes.Equal(out, small) {
		t.Fatalf("images within bounds should be stored as uploaded")
	}

	wide := encodePNG(t, 3200, 400)
	out, err = downscaleReceipt(wide, ".png")
	if err != nil {
		t.Fatalf("wide image: %v", err)
	}
	img, err := imaging.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if img.Bounds().Dx() != maxReceiptWidth || img.Bounds().Dy() != 200 {
		t.Fatalf("expected %dx200, got %v", maxReceiptWidth, img.Bounds())
	}

	pdf := []byte("%PDF-1.4 not really")
	if out, err := downscaleReceipt(pdf, ".pdf"); err != nil || !bytes.Equal(out, pdf) {
		t.Fatalf("pdf should pass through untouched")
	}
	if _, err := downscaleReceipt([]byte("not an image"), ".jpg"); err == nil {
		t.Fatalf("garbage image should fail to decode")
	}
}
