package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var extensionPattern = regexp.MustCompile(`^[a-z0-9]+$`)

// Validate 校验全局与 Cdn 配置，返回第一个失败字段的 FieldError。
func (c *Config) Validate() error {
	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.StoragePath == "" {
		return newFieldError("Global.StoragePath", "不能为空")
	}
	if g.DefaultTTL.DurationValue() <= 0 {
		return newFieldError("Global.DefaultTTL", "必须大于 0")
	}
	if g.DownloadTimeout.DurationValue() <= 0 {
		return newFieldError("Global.DownloadTimeout", "必须大于 0")
	}
	if g.PublicBaseURL != "" {
		if err := validateBaseURL(g.PublicBaseURL); err != nil {
			return fmt.Errorf("Global.PublicBaseURL: %w", err)
		}
	}

	cdn := c.Cdn
	switch strings.ToLower(strings.TrimSpace(cdn.CacheVisibility)) {
	case "", "public", "private":
	default:
		return newFieldError("Cdn.CacheVisibility", "仅支持 public/private 或留空")
	}
	if cdn.CacheMaxAge.DurationValue() < 0 {
		return newFieldError("Cdn.CacheMaxAge", "不能为负数")
	}
	if cdn.CacheSMaxAge.DurationValue() < 0 {
		return newFieldError("Cdn.CacheSMaxAge", "不能为负数")
	}
	for i, ext := range cdn.AllowedExtensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if !extensionPattern.MatchString(normalized) {
			return newFieldError(
				fmt.Sprintf("Cdn.AllowedExtensions[%d]", i),
				fmt.Sprintf("非法扩展名: %q", ext),
			)
		}
		c.Cdn.AllowedExtensions[i] = normalized
	}

	return nil
}

func validateBaseURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("缺少 Host: %s", raw)
	}
	return nil
}
