package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述全局运行时行为。
type GlobalConfig struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	StoragePath     string   `mapstructure:"StoragePath"`
	PublicBaseURL   string   `mapstructure:"PublicBaseURL"`
	DefaultTTL      Duration `mapstructure:"DefaultTTL"`
	DownloadTimeout Duration `mapstructure:"DownloadTimeout"`
}

// CdnConfig 决定代理端点对外响应的缓存语义与扩展名许可。
// CacheMaxAge/CacheSMaxAge 控制下发给客户端/边缘的 Cache-Control，
// 与落盘元数据里的 expiresAt 相互独立：后者只决定回源与清理资格。
type CdnConfig struct {
	EnableETag         bool     `mapstructure:"EnableETag"`
	CacheMaxAge        Duration `mapstructure:"CacheMaxAge"`
	CacheSMaxAge       Duration `mapstructure:"CacheSMaxAge"`
	CacheVisibility    string   `mapstructure:"CacheVisibility"`
	DefaultContentType string   `mapstructure:"DefaultContentType"`
	AllowedExtensions  []string `mapstructure:"AllowedExtensions"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	Cdn    CdnConfig    `mapstructure:"Cdn"`
}
