package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/asset-hub/asset-hub/internal/asset"
	"github.com/asset-hub/asset-hub/internal/assetkind"
	"github.com/asset-hub/asset-hub/internal/download"
	"github.com/asset-hub/asset-hub/internal/logging"
	"github.com/asset-hub/asset-hub/internal/server"
	"github.com/asset-hub/asset-hub/internal/storage"
)

// ErrIncompleteDownloadMetadata 表示下载结果缺少 contentType 或 expiresAt。
// 缺字段的元数据不允许落盘，也不允许用来构造响应，请求必须失败。
var ErrIncompleteDownloadMetadata = errors.New("incomplete download metadata")

// Fetcher 抽象回源下载，便于测试注入计数桩。
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, asset.FileMetadata, error)
}

// ResponsePolicy 控制对外响应的缓存语义。这里的 max-age/s-maxage 只影响
// 客户端与边缘缓存，与落盘元数据里的过期时间互相独立。
type ResponsePolicy struct {
	EnableETag         bool
	MaxAge             time.Duration
	SMaxAge            time.Duration
	Visibility         string
	DefaultContentType string
}

// CacheControl 把策略拼装为 Cache-Control 头的值；无可用指令时返回空串。
func (p ResponsePolicy) CacheControl() string {
	var directives []string
	switch strings.ToLower(strings.TrimSpace(p.Visibility)) {
	case "public":
		directives = append(directives, "public")
	case "private":
		directives = append(directives, "private")
	}
	if p.MaxAge > 0 {
		directives = append(directives, fmt.Sprintf("max-age=%d", int64(p.MaxAge/time.Second)))
	}
	if p.SMaxAge > 0 {
		directives = append(directives, fmt.Sprintf("s-maxage=%d", int64(p.SMaxAge/time.Second)))
	}
	return strings.Join(directives, ", ")
}

// Handler 负责 orchestrate “元数据查找 → 懒下载落盘 → 条件响应” 的全流程，
// 对外暴露 server.AssetHandler，内部复用共享下载器与存储实例。
type Handler struct {
	store   storage.Store
	fetcher Fetcher
	kinds   *assetkind.Registry
	policy  ResponsePolicy
	logger  *logrus.Logger
	flights singleflight.Group
}

// NewHandler constructs an asset proxy handler with shared store/fetcher/logger.
func NewHandler(store storage.Store, fetcher Fetcher, kinds *assetkind.Registry, policy ResponsePolicy, logger *logrus.Logger) *Handler {
	return &Handler{
		store:   store,
		fetcher: fetcher,
		kinds:   kinds,
		policy:  policy,
		logger:  logger,
	}
}

// Handle 执行一次代理请求，任何阶段出错都会输出结构化日志。
func (h *Handler) Handle(c fiber.Ctx, id asset.FileID, filename string) error {
	started := time.Now()
	requestID := server.RequestID(c)

	ext := strings.TrimPrefix(path.Ext(filename), ".")
	if ext == "" || !h.kinds.Allowed(ext) {
		h.logResult(id, filename, requestID, fiber.StatusNotFound, false, started, nil)
		return h.writeError(c, fiber.StatusNotFound, "asset_not_found")
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	meta, err := h.store.GetMetadata(ctx, id, filename)
	if err != nil {
		if errors.Is(err, storage.ErrMetadataNotFound) {
			h.logResult(id, filename, requestID, fiber.StatusNotFound, false, started, nil)
			return h.writeError(c, fiber.StatusNotFound, "asset_not_found")
		}
		h.logResult(id, filename, requestID, fiber.StatusInternalServerError, false, started, err)
		return h.writeError(c, fiber.StatusInternalServerError, "storage_failed")
	}

	hasContent, err := h.store.HasContent(ctx, id, filename)
	if err != nil {
		h.logResult(id, filename, requestID, fiber.StatusInternalServerError, false, started, err)
		return h.writeError(c, fiber.StatusInternalServerError, "storage_failed")
	}

	cacheHit := hasContent
	if !hasContent {
		if err := h.materialize(ctx, id, filename, meta); err != nil {
			code := "upstream_failed"
			if errors.Is(err, ErrIncompleteDownloadMetadata) {
				code = "download_metadata_incomplete"
			}
			h.logResult(id, filename, requestID, fiber.StatusBadGateway, false, started, err)
			return h.writeError(c, fiber.StatusBadGateway, code)
		}
		// 下载方写入的是补全后的元数据，重读以便响应头使用。
		meta, err = h.store.GetMetadata(ctx, id, filename)
		if err != nil {
			return h.notFoundOnRace(c, id, filename, requestID, started, err)
		}
	}

	result, err := h.store.GetContent(ctx, id, filename)
	if err != nil {
		// 与清理任务并发时条目可能刚被删除，按约定回 404 而不是崩溃。
		return h.notFoundOnRace(c, id, filename, requestID, started, err)
	}
	defer result.Reader.Close()

	if h.policy.EnableETag && meta.ETag != "" && c.Get("If-None-Match") == meta.ETag {
		h.applyCacheHeaders(c, meta)
		c.Status(fiber.StatusNotModified)
		h.logResult(id, filename, requestID, fiber.StatusNotModified, cacheHit, started, nil)
		return nil
	}

	c.Set("Content-Type", h.resolveContentType(meta, ext))
	h.applyCacheHeaders(c, meta)
	c.Response().Header.SetContentLength(int(result.Entry.SizeBytes))
	c.Set("X-Asset-Hub-Cache-Hit", fmt.Sprintf("%t", cacheHit))
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}
	c.Status(fiber.StatusOK)

	if c.Method() == http.MethodHead {
		h.logResult(id, filename, requestID, fiber.StatusOK, cacheHit, started, nil)
		return nil
	}

	_, err = io.Copy(c.Response().BodyWriter(), result.Reader)
	h.logResult(id, filename, requestID, fiber.StatusOK, cacheHit, started, err)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, fmt.Sprintf("read content failed: %v", err))
	}
	return nil
}

// materialize 通过 singleflight 合并同一条目的并发回源：只有一个请求真正
// 下载，其余请求等待同一结果，避免重复打到原站。下载使用与客户端断开的
// context，请求取消不会中断已经开始的回源，落盘结果留给后续请求复用。
func (h *Handler) materialize(ctx context.Context, id asset.FileID, filename string, meta asset.FileMetadata) error {
	key := id.String() + "/" + filename
	_, err, _ := h.flights.Do(key, func() (interface{}, error) {
		detached := context.WithoutCancel(ctx)

		body, enriched, err := h.fetcher.Fetch(detached, meta.OriginalURL)
		if err != nil {
			return nil, err
		}
		if enriched.ContentType == "" || enriched.ExpiresAt == nil {
			return nil, fmt.Errorf("%w: url=%s", ErrIncompleteDownloadMetadata, meta.OriginalURL)
		}

		if err := h.store.SetMetadata(detached, id, filename, enriched); err != nil {
			return nil, fmt.Errorf("persist metadata: %w", err)
		}
		if _, err := h.store.SetContent(detached, id, filename, bytes.NewReader(body)); err != nil {
			return nil, fmt.Errorf("persist content: %w", err)
		}
		return nil, nil
	})
	return err
}

func (h *Handler) resolveContentType(meta asset.FileMetadata, ext string) string {
	if meta.ContentType != "" {
		return meta.ContentType
	}
	if kind, ok := h.kinds.ResolveExtension(ext); ok && kind.ContentType != "" {
		return kind.ContentType
	}
	if h.policy.DefaultContentType != "" {
		return h.policy.DefaultContentType
	}
	return "application/octet-stream"
}

func (h *Handler) applyCacheHeaders(c fiber.Ctx, meta asset.FileMetadata) {
	if h.policy.EnableETag && meta.ETag != "" {
		c.Set("ETag", meta.ETag)
	}
	if cacheControl := h.policy.CacheControl(); cacheControl != "" {
		c.Set("Cache-Control", cacheControl)
	}
}

func (h *Handler) notFoundOnRace(c fiber.Ctx, id asset.FileID, filename, requestID string, started time.Time, err error) error {
	if errors.Is(err, storage.ErrMetadataNotFound) || errors.Is(err, storage.ErrContentNotFound) {
		h.logResult(id, filename, requestID, fiber.StatusNotFound, false, started, nil)
		return h.writeError(c, fiber.StatusNotFound, "asset_not_found")
	}
	h.logResult(id, filename, requestID, fiber.StatusInternalServerError, false, started, err)
	return h.writeError(c, fiber.StatusInternalServerError, "storage_failed")
}

func (h *Handler) writeError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}

func (h *Handler) logResult(
	id asset.FileID,
	filename string,
	requestID string,
	status int,
	cacheHit bool,
	started time.Time,
	err error,
) {
	if h.logger == nil {
		return
	}
	fields := logging.AssetFields(id.String(), filename, cacheHit)
	fields["action"] = "proxy"
	fields["status"] = status
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Error("proxy_failed")
		return
	}
	h.logger.WithFields(fields).Info("proxy_complete")
}

// 编译期确认 Downloader 满足 Fetcher 约定。
var _ Fetcher = (*download.Downloader)(nil)
