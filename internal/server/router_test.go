package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/asset-hub/asset-hub/internal/asset"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestNewAppValidatesOptions(t *testing.T) {
	handler := AssetHandlerFunc(func(c fiber.Ctx, id asset.FileID, filename string) error {
		return nil
	})

	cases := []struct {
		name string
		opts AppOptions
	}{
		{"missing logger", AppOptions{Assets: handler, ListenPort: 5000}},
		{"missing handler", AppOptions{Logger: newTestLogger(), ListenPort: 5000}},
		{"invalid port", AppOptions{Logger: newTestLogger(), Assets: handler, ListenPort: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewApp(tc.opts); err == nil {
				t.Fatalf("期望返回错误, 实际为 nil")
			}
		})
	}
}

func TestAssetRouteDelegatesToHandler(t *testing.T) {
	var gotID asset.FileID
	var gotFilename string
	handler := AssetHandlerFunc(func(c fiber.Ctx, id asset.FileID, filename string) error {
		gotID = id
		gotFilename = filename
		return c.SendString("served")
	})

	app, err := NewApp(AppOptions{Logger: newTestLogger(), Assets: handler, ListenPort: 5000})
	if err != nil {
		t.Fatalf("NewApp error: %v", err)
	}

	id := asset.NewFileID("https://example.com/pic.png")
	req := httptest.NewRequest(http.MethodGet, "http://asset.local/f/"+id.String()+"/pic.png", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if gotID != id || gotFilename != "pic.png" {
		t.Fatalf("handler received %s/%s", gotID, gotFilename)
	}
}

func TestAssetRouteRejectsMalformedID(t *testing.T) {
	called := false
	handler := AssetHandlerFunc(func(c fiber.Ctx, id asset.FileID, filename string) error {
		called = true
		return nil
	})

	app, err := NewApp(AppOptions{Logger: newTestLogger(), Assets: handler, ListenPort: 5000})
	if err != nil {
		t.Fatalf("NewApp error: %v", err)
	}

	for _, rawID := range []string{"short", "ZZZZZZZZZZZZZZZZ", "0123456789abcdef0"} {
		req := httptest.NewRequest(http.MethodGet, "http://asset.local/f/"+rawID+"/pic.png", nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test error: %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != fiber.StatusNotFound {
			t.Fatalf("id %q: expected 404, got %d", rawID, resp.StatusCode)
		}
		if !strings.Contains(string(body), "asset_not_found") {
			t.Fatalf("id %q: unexpected body %s", rawID, body)
		}
	}
	if called {
		t.Fatalf("handler must not run for malformed ids")
	}
}

func TestRequestIDAttachedToResponse(t *testing.T) {
	var seenInHandler string
	handler := AssetHandlerFunc(func(c fiber.Ctx, id asset.FileID, filename string) error {
		seenInHandler = RequestID(c)
		return c.SendString("ok")
	})

	app, err := NewApp(AppOptions{Logger: newTestLogger(), Assets: handler, ListenPort: 5000})
	if err != nil {
		t.Fatalf("NewApp error: %v", err)
	}

	id := asset.NewFileID("https://example.com/pic.png")
	req := httptest.NewRequest(http.MethodGet, "http://asset.local/f/"+id.String()+"/pic.png", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	resp.Body.Close()

	headerID := resp.Header.Get("X-Request-ID")
	if headerID == "" {
		t.Fatalf("X-Request-ID header missing")
	}
	if seenInHandler != headerID {
		t.Fatalf("handler saw %q, header carries %q", seenInHandler, headerID)
	}
}

func TestHeadRouteRegistered(t *testing.T) {
	handler := AssetHandlerFunc(func(c fiber.Ctx, id asset.FileID, filename string) error {
		c.Set("Content-Length", "4")
		return nil
	})

	app, err := NewApp(AppOptions{Logger: newTestLogger(), Assets: handler, ListenPort: 5000})
	if err != nil {
		t.Fatalf("NewApp error: %v", err)
	}

	id := asset.NewFileID("https://example.com/pic.png")
	req := httptest.NewRequest(http.MethodHead, "http://asset.local/f/"+id.String()+"/pic.png", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 for HEAD, got %d", resp.StatusCode)
	}
}
