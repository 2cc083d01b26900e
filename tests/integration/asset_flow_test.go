package integration

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/asset-hub/asset-hub/internal/asset"
	"github.com/asset-hub/asset-hub/internal/assetkind"
	"github.com/asset-hub/asset-hub/internal/cleanup"
	"github.com/asset-hub/asset-hub/internal/download"
	"github.com/asset-hub/asset-hub/internal/proxy"
	"github.com/asset-hub/asset-hub/internal/server"
	"github.com/asset-hub/asset-hub/internal/server/routes"
	"github.com/asset-hub/asset-hub/internal/storage"
	"github.com/asset-hub/asset-hub/internal/urlgen"
)

// 端到端链路：生成 URL → pending 元数据 → 首次 GET 回源落盘 →
// 二次 GET 直接命中缓存 → 条件请求 304 → 过期后清理。
func TestAssetLifecycle(t *testing.T) {
	var originHits int64
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&originHits, 1)
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("ETag", `"origin-v1"`)
		w.Header().Set("Cache-Control", "max-age=3600")
		w.Write([]byte("png bytes"))
	}))
	defer origin.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("store error: %v", err)
	}

	sourceURL := origin.URL + "/banner.png"
	generator := urlgen.NewGenerator(store, urlgen.BaseURLBuilder{BaseURL: "https://cdn.example.com"}, logger)
	proxyURL, err := generator.Generate(context.Background(), asset.Reference{
		SourceURL:   sourceURL,
		DisplayName: "banner",
		Extension:   "png",
	}, urlgen.ReferenceAbsolute)
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}

	id := asset.NewFileID(sourceURL)
	if !strings.HasSuffix(proxyURL, "/f/"+id.String()+"/banner.png") {
		t.Fatalf("unexpected proxy url: %s", proxyURL)
	}

	// 生成阶段只写 pending 元数据，不触发下载。
	meta, err := store.GetMetadata(context.Background(), id, "banner.png")
	if err != nil {
		t.Fatalf("metadata error: %v", err)
	}
	if !meta.IsPending() {
		t.Fatalf("生成后的元数据应处于 pending 状态: %+v", meta)
	}
	if atomic.LoadInt64(&originHits) != 0 {
		t.Fatalf("URL 生成不应访问原站")
	}

	fetcher := download.NewDownloader(download.Options{
		DefaultTTL: time.Hour,
		Timeout:    5 * time.Second,
	})
	handler := proxy.NewHandler(store, fetcher, assetkind.Builtin(nil), proxy.ResponsePolicy{
		EnableETag: true,
		MaxAge:     10 * time.Minute,
		Visibility: "public",
	}, logger)

	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Assets:     handler,
		ListenPort: 5400,
	})
	if err != nil {
		t.Fatalf("app error: %v", err)
	}

	doRequest := func(headers map[string]string) *http.Response {
		req := httptest.NewRequest(http.MethodGet, "http://cdn.example.com/f/"+id.String()+"/banner.png", nil)
		for key, value := range headers {
			req.Header.Set(key, value)
		}
		resp, err := app.Test(req, fiber.TestConfig{Timeout: 10 * time.Second})
		if err != nil {
			t.Fatalf("app.Test error: %v", err)
		}
		return resp
	}

	// 首次请求触发回源。
	first := doRequest(nil)
	body, _ := io.ReadAll(first.Body)
	first.Body.Close()
	if first.StatusCode != http.StatusOK {
		t.Fatalf("首次请求期望 200，得到 %d", first.StatusCode)
	}
	if string(body) != "png bytes" {
		t.Fatalf("正文不一致: %q", body)
	}
	if got := first.Header.Get("Content-Type"); got != "image/png" {
		t.Fatalf("Content-Type 不一致: %s", got)
	}
	if got := first.Header.Get("Cache-Control"); got != "public, max-age=600" {
		t.Fatalf("Cache-Control 不一致: %s", got)
	}
	if atomic.LoadInt64(&originHits) != 1 {
		t.Fatalf("首次请求应回源一次，实际 %d", originHits)
	}

	// 二次请求命中缓存，不再回源。
	second := doRequest(nil)
	io.Copy(io.Discard, second.Body)
	second.Body.Close()
	if second.StatusCode != http.StatusOK {
		t.Fatalf("二次请求期望 200，得到 %d", second.StatusCode)
	}
	if got := second.Header.Get("X-Asset-Hub-Cache-Hit"); got != "true" {
		t.Fatalf("二次请求应标记缓存命中: %s", got)
	}
	if atomic.LoadInt64(&originHits) != 1 {
		t.Fatalf("缓存命中后不应再回源，实际 %d", originHits)
	}

	// 条件请求返回 304。
	conditional := doRequest(map[string]string{"If-None-Match": `"origin-v1"`})
	io.Copy(io.Discard, conditional.Body)
	conditional.Body.Close()
	if conditional.StatusCode != http.StatusNotModified {
		t.Fatalf("条件请求期望 304，得到 %d", conditional.StatusCode)
	}

	// 把元数据改写为已过期后，清理任务应删除整个条目。
	expired := time.Now().Add(-time.Minute)
	stale, err := store.GetMetadata(context.Background(), id, "banner.png")
	if err != nil {
		t.Fatalf("metadata error: %v", err)
	}
	stale.ExpiresAt = &expired
	if err := store.SetMetadata(context.Background(), id, "banner.png", stale); err != nil {
		t.Fatalf("改写元数据失败: %v", err)
	}

	sweeper := cleanup.NewSweeper(store, logger)
	report, err := sweeper.Run(context.Background(), cleanup.Options{ExpiredOnly: true})
	if err != nil {
		t.Fatalf("清理失败: %v", err)
	}
	if report.Deleted != 1 {
		t.Fatalf("应删除一个过期条目: %+v", report)
	}

	// 清理后再次请求：pending 元数据已不存在，回 404。
	afterCleanup := doRequest(nil)
	io.Copy(io.Discard, afterCleanup.Body)
	afterCleanup.Body.Close()
	if afterCleanup.StatusCode != http.StatusNotFound {
		t.Fatalf("清理后期望 404，得到 %d", afterCleanup.StatusCode)
	}
	if atomic.LoadInt64(&originHits) != 1 {
		t.Fatalf("清理后的请求不应回源，实际 %d", originHits)
	}
}

// 诊断接口应暴露内建资产类型。
func TestKindDiagnosticsRoute(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("store error: %v", err)
	}

	kinds := assetkind.Builtin([]string{"png"})
	handler := proxy.NewHandler(store, nil, kinds, proxy.ResponsePolicy{}, logger)
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Assets:     handler,
		ListenPort: 5401,
	})
	if err != nil {
		t.Fatalf("app error: %v", err)
	}
	routes.RegisterKindRoutes(app, kinds)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "http://cdn.example.com/-/kinds", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("期望 200，得到 %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "png") {
		t.Fatalf("诊断输出应包含 png 类型: %s", body)
	}

	missing, err := app.Test(httptest.NewRequest(http.MethodGet, "http://cdn.example.com/-/kinds/mp4", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("未注册类型期望 404，得到 %d", missing.StatusCode)
	}
}
