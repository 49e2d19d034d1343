package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jo-hoe/worldscars/internal/backend/storage"
	"github.com/jo-hoe/worldscars/internal/core"
	"github.com/labstack/echo/v4"
)

func newTestConfig(t *testing.T) *core.ServiceConfig {
	t.Helper()
	config := core.DefaultConfig()
	config.Database = core.Database{Type: "sqlite", ConnectionString: ":memory:"}
	config.Storage = storage.Config{Type: "filesystem", Directory: t.TempDir(), PublicPath: "/media"}
	config.ThumbnailWidth = 16
	config.API.MaxPageSize = 2
	return config
}

func newTestServer(t *testing.T, config *core.ServiceConfig) *echo.Echo {
	t.Helper()
	coreService, err := core.NewCoreService(context.Background(), config)
	if err != nil {
		t.Fatalf("failed to create core service: %v", err)
	}
	t.Cleanup(func() {
		_ = coreService.Close()
	})

	e := NewEchoServer(config)
	NewAPIService(config, coreService).SetRoutes(e)
	return e
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func postJSON(t *testing.T, e *echo.Echo, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/images", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return serve(e, req)
}

func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{200, uint8(x), uint8(y), 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func multipartRequest(t *testing.T, target string, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("failed to write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	return req
}

func decodeImage(t *testing.T, rec *httptest.ResponseRecorder) ImageResponse {
	t.Helper()
	var response ImageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return response
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []ImageResponse {
	t.Helper()
	var response []ImageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return response
}

func TestProbe(t *testing.T) {
	e := newTestServer(t, newTestConfig(t))
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/probe", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestReadiness_DatabaseUnavailable(t *testing.T) {
	config := newTestConfig(t)
	coreService, err := core.NewCoreService(context.Background(), config)
	if err != nil {
		t.Fatalf("failed to create core service: %v", err)
	}
	e := NewEchoServer(config)
	NewAPIService(config, coreService).SetRoutes(e)

	if err := coreService.Close(); err != nil {
		t.Fatalf("failed to close core service: %v", err)
	}
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/probe", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestListImages_Empty(t *testing.T) {
	e := newTestServer(t, newTestConfig(t))

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/images", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty JSON array, got %s", rec.Body.String())
	}
	if rec.Header().Get("X-Total-Count") != "0" {
		t.Errorf("expected X-Total-Count 0, got %q", rec.Header().Get("X-Total-Count"))
	}
}

func TestCreateImage_JSON(t *testing.T) {
	e := newTestServer(t, newTestConfig(t))

	rec := postJSON(t, e, `{"title":" Nagasaki ","description":"1945","imageUrl":"https://example.org/n.jpg","location":"Japan"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeImage(t, rec)
	if created.ID == 0 || created.Title != "Nagasaki" || created.ImageURL != "https://example.org/n.jpg" {
		t.Errorf("unexpected created image %+v", created)
	}
	if created.UploadedAt.IsZero() {
		t.Errorf("expected uploadedAt to be set")
	}
	if strings.Contains(rec.Body.String(), "storageKey") {
		t.Errorf("storage key must not be exposed: %s", rec.Body.String())
	}

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/api/images/1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if fetched := decodeImage(t, rec); fetched.ID != created.ID || fetched.Location != "Japan" {
		t.Errorf("unexpected fetched image %+v", fetched)
	}
}

func TestCreateImage_Invalid(t *testing.T) {
	e := newTestServer(t, newTestConfig(t))

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"title":`},
		{"missing title", `{"imageUrl":"https://example.org/a.jpg"}`},
		{"blank title", `{"title":"   ","imageUrl":"https://example.org/a.jpg"}`},
		{"missing url", `{"title":"A"}`},
		{"not http", `{"title":"A","imageUrl":"file:///etc/passwd"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, e, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), `"message"`) {
				t.Errorf("expected echo error body, got %s", rec.Body.String())
			}
		})
	}
}

func TestGetImage_Errors(t *testing.T) {
	e := newTestServer(t, newTestConfig(t))

	tests := []struct {
		path string
		code int
	}{
		{"/api/images/abc", http.StatusBadRequest},
		{"/api/images/0", http.StatusBadRequest},
		{"/api/images/99", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := serve(e, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.code {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.code, rec.Code)
		}
	}
}

func TestListImages_PagingAndQuery(t *testing.T) {
	e := newTestServer(t, newTestConfig(t))
	for _, title := range []string{"Hiroshima", "Dresden", "Warsaw"} {
		if rec := postJSON(t, e, `{"title":"`+title+`","imageUrl":"https://example.org/x.jpg"}`); rec.Code != http.StatusCreated {
			t.Fatalf("failed to create %s: %d", title, rec.Code)
		}
	}

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/images", nil))
	all := decodeList(t, rec)
	if len(all) != 3 || all[0].Title != "Warsaw" || all[2].Title != "Hiroshima" {
		t.Fatalf("expected all images newest first, got %+v", all)
	}

	// limit above maxPageSize is clamped
	rec = serve(e, httptest.NewRequest(http.MethodGet, "/api/images?limit=50&offset=1", nil))
	page := decodeList(t, rec)
	if len(page) != 2 || page[0].Title != "Dresden" {
		t.Errorf("expected clamped page starting at Dresden, got %+v", page)
	}
	if rec.Header().Get("X-Total-Count") != "3" {
		t.Errorf("expected total 3, got %q", rec.Header().Get("X-Total-Count"))
	}

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/api/images?q=DRES", nil))
	if found := decodeList(t, rec); len(found) != 1 || found[0].Title != "Dresden" {
		t.Errorf("expected query to match Dresden only, got %+v", found)
	}

	for _, query := range []string{"limit=abc", "limit=0", "limit=-1", "offset=-3", "offset=x"} {
		rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/images?"+query, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", query, rec.Code)
		}
	}
}

func TestUploadImage(t *testing.T) {
	e := newTestServer(t, newTestConfig(t))

	for _, target := range []string{"/api/images/upload", "/api/images"} {
		t.Run(target, func(t *testing.T) {
			req := multipartRequest(t, target, map[string]string{
				"title":       "Bombed bridge",
				"description": "Mostar",
				"location":    "Bosnia",
			}, "bridge.png", testPNG(t, 40, 20))

			rec := serve(e, req)
			if rec.Code != http.StatusCreated {
				t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
			}
			created := decodeImage(t, rec)
			if created.Title != "Bombed bridge" || created.Location != "Bosnia" {
				t.Errorf("unexpected created image %+v", created)
			}
			if !strings.HasPrefix(created.ImageURL, "/media/") || created.ThumbnailURL == "" {
				t.Fatalf("expected stored media urls, got %+v", created)
			}

			media := serve(e, httptest.NewRequest(http.MethodGet, created.ImageURL, nil))
			if media.Code != http.StatusOK {
				t.Fatalf("expected stored image to be served, got %d", media.Code)
			}
			if _, err := png.Decode(media.Body); err != nil {
				t.Errorf("served media is not a png: %v", err)
			}
		})
	}
}

func TestUploadImage_Invalid(t *testing.T) {
	e := newTestServer(t, newTestConfig(t))

	tests := []struct {
		name     string
		fields   map[string]string
		filename string
		content  []byte
	}{
		{"missing file", map[string]string{"title": "A"}, "", nil},
		{"missing title", map[string]string{}, "a.png", testPNG(t, 2, 2)},
		{"not an image", map[string]string{"title": "A"}, "a.txt", []byte("just text")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(e, multipartRequest(t, "/api/images/upload", tt.fields, tt.filename, tt.content))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestUploadImage_TooLarge(t *testing.T) {
	config := newTestConfig(t)
	config.API.MaxUploadBytes = 512
	e := newTestServer(t, config)

	req := multipartRequest(t, "/api/images/upload", map[string]string{"title": "Big"}, "big.png", bytes.Repeat([]byte{1}, 4096))
	rec := serve(e, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestUploadImage_TooManyPixels(t *testing.T) {
	config := newTestConfig(t)
	config.API.MaxImagePixels = 16
	e := newTestServer(t, config)

	rec := serve(e, multipartRequest(t, "/api/images/upload", map[string]string{"title": "Panorama"}, "wide.png", testPNG(t, 8, 4)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "exceeds the limit") {
		t.Errorf("expected pixel limit message, got %s", rec.Body.String())
	}
}

func TestCreateImage_RateLimited(t *testing.T) {
	config := newTestConfig(t)
	config.API.UploadRateLimit = core.RateLimit{Rate: 0.001, Burst: 1}
	e := newTestServer(t, config)

	body := `{"title":"A","imageUrl":"https://example.org/a.jpg"}`
	if rec := postJSON(t, e, body); rec.Code != http.StatusCreated {
		t.Fatalf("expected first request to pass, got %d", rec.Code)
	}
	if rec := postJSON(t, e, body); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	// reads are not limited
	if rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/images", nil)); rec.Code != http.StatusOK {
		t.Fatalf("expected reads to pass, got %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	e := newTestServer(t, newTestConfig(t))

	req := httptest.NewRequest(http.MethodGet, "/api/images", nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:3000")
	rec := serve(e, req)
	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "*" {
		t.Errorf("expected wildcard allow origin, got %q", got)
	}

	preflight := httptest.NewRequest(http.MethodOptions, "/api/images/upload", nil)
	preflight.Header.Set(echo.HeaderOrigin, "http://localhost:3000")
	preflight.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec = serve(e, preflight)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 preflight, got %d", rec.Code)
	}
}
