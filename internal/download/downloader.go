package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/asset-hub/asset-hub/internal/asset"
)

// ErrDownloadFailed 表示回源失败（非 2xx 或传输错误）。下载器内部不重试，
// 重试策略属于调用方或传输层。
var ErrDownloadFailed = errors.New("download failed")

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// Options 控制下载器的策略常量，默认值来自全局配置。
type Options struct {
	// DefaultTTL 在上游未给出可解析的 max-age 时生效。
	DefaultTTL time.Duration
	// DefaultContentType 在上游未返回 Content-Type 时生效。
	DefaultContentType string
	// Timeout 约束单次回源请求的整体耗时。
	Timeout time.Duration
}

// Downloader 负责从原站拉取资产正文，并从响应头推导元数据。
type Downloader struct {
	client             *http.Client
	defaultTTL         time.Duration
	defaultContentType string
	now                func() time.Time
}

// NewDownloader 构造共享 http.Client 的下载器，零值选项回退到参考常量。
func NewDownloader(opts Options) *Downloader {
	ttl := opts.DefaultTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	contentType := opts.DefaultContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Downloader{
		client: &http.Client{
			Timeout:   timeout,
			Transport: defaultTransport.Clone(),
		},
		defaultTTL:         ttl,
		defaultContentType: contentType,
		now:                time.Now,
	}
}

// Fetch 执行单次 GET，完整缓冲正文后返回字节与补全的元数据。
// 正文全量缓冲保证存储层永远不会提交半截内容。
func (d *Downloader) Fetch(ctx context.Context, url string) ([]byte, asset.FileMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, asset.FileMetadata{}, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, asset.FileMetadata{}, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, asset.FileMetadata{}, fmt.Errorf("%w: status %d from %s", ErrDownloadFailed, resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, asset.FileMetadata{}, fmt.Errorf("%w: read body: %v", ErrDownloadFailed, err)
	}

	return body, d.buildMetadata(url, resp), nil
}

func (d *Downloader) buildMetadata(url string, resp *http.Response) asset.FileMetadata {
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = d.defaultContentType
	}

	ttl := d.defaultTTL
	if maxAge, ok := parseMaxAge(resp.Header.Get("Cache-Control")); ok {
		ttl = maxAge
	}
	expiresAt := d.now().Add(ttl).UTC()

	return asset.FileMetadata{
		OriginalURL: url,
		ContentType: contentType,
		ETag:        resp.Header.Get("ETag"),
		ExpiresAt:   &expiresAt,
	}
}

// parseMaxAge 从 Cache-Control 中提取第一个 max-age 指令。
// 指令名大小写不敏感，值必须是非负整数秒。
func parseMaxAge(header string) (time.Duration, bool) {
	for _, directive := range strings.Split(header, ",") {
		directive = strings.TrimSpace(directive)
		key, value, found := strings.Cut(directive, "=")
		if !found {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(key), "max-age") {
			continue
		}
		seconds, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
		if err != nil {
			continue
		}
		return time.Duration(seconds) * time.Second, true
	}
	return 0, false
}
