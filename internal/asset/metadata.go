package asset

import (
	"errors"
	"fmt"
	"time"
)

// FileMetadata 描述一个缓存条目的元信息。首次引用时仅有 OriginalURL
//（pending 状态），下载完成后由 Downloader 补全其余字段。
type FileMetadata struct {
	OriginalURL string
	ContentType string
	ETag        string
	// ExpiresAt 为 nil 表示永不过期。
	ExpiresAt *time.Time
}

// Record 是元数据的落盘形式，字段名与 JSON 键保持稳定。
type Record struct {
	OriginalURL string  `json:"originalUrl"`
	ContentType *string `json:"contentType"`
	ETag        *string `json:"etag"`
	ExpiresAt   *string `json:"expiresAt"`
}

// IsPending reports whether the entry has not been enriched by a download yet.
func (m FileMetadata) IsPending() bool {
	return m.ContentType == "" && m.ExpiresAt == nil
}

// IsExpired 判断条目是否已过期；未设置 ExpiresAt 的条目永不过期。
func (m FileMetadata) IsExpired(now time.Time) bool {
	if m.ExpiresAt == nil {
		return false
	}
	return m.ExpiresAt.Before(now)
}

// ToRecord 将元数据编码为可无损往返的扁平记录。
func (m FileMetadata) ToRecord() Record {
	rec := Record{OriginalURL: m.OriginalURL}
	if m.ContentType != "" {
		ct := m.ContentType
		rec.ContentType = &ct
	}
	if m.ETag != "" {
		etag := m.ETag
		rec.ETag = &etag
	}
	if m.ExpiresAt != nil {
		ts := m.ExpiresAt.UTC().Format(time.RFC3339)
		rec.ExpiresAt = &ts
	}
	return rec
}

// FromRecord 从扁平记录还原元数据，缺少 originalUrl 或时间戳损坏视为非法。
func FromRecord(rec Record) (FileMetadata, error) {
	if rec.OriginalURL == "" {
		return FileMetadata{}, errors.New("metadata record missing originalUrl")
	}

	meta := FileMetadata{OriginalURL: rec.OriginalURL}
	if rec.ContentType != nil {
		meta.ContentType = *rec.ContentType
	}
	if rec.ETag != nil {
		meta.ETag = *rec.ETag
	}
	if rec.ExpiresAt != nil && *rec.ExpiresAt != "" {
		parsed, err := time.Parse(time.RFC3339, *rec.ExpiresAt)
		if err != nil {
			return FileMetadata{}, fmt.Errorf("parse expiresAt: %w", err)
		}
		utc := parsed.UTC()
		meta.ExpiresAt = &utc
	}
	return meta, nil
}
