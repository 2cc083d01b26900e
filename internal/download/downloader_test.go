package download

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchExtractsHeaders(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("ETag", `"v42"`)
		w.Header().Set("Cache-Control", "public, max-age=600")
		w.Write([]byte("png bytes"))
	}))
	defer upstream.Close()

	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	d := newTestDownloader(now)

	body, meta, err := d.Fetch(context.Background(), upstream.URL)
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if !bytes.Equal(body, []byte("png bytes")) {
		t.Fatalf("body mismatch: %s", body)
	}
	if meta.ContentType != "image/png" {
		t.Fatalf("content type mismatch: %s", meta.ContentType)
	}
	if meta.ETag != `"v42"` {
		t.Fatalf("etag mismatch: %s", meta.ETag)
	}
	if meta.ExpiresAt == nil || !meta.ExpiresAt.Equal(now.Add(10*time.Minute)) {
		t.Fatalf("expiresAt mismatch: %v", meta.ExpiresAt)
	}
	if meta.OriginalURL != upstream.URL {
		t.Fatalf("originalUrl mismatch: %s", meta.OriginalURL)
	}
}

func TestFetchDefaultsContentTypeAndTTL(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 显式清掉 Content-Type，httptest 默认会按内容嗅探。
		w.Header()["Content-Type"] = nil
		w.Write([]byte{0x00, 0x01})
	}))
	defer upstream.Close()

	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	d := newTestDownloader(now)

	_, meta, err := d.Fetch(context.Background(), upstream.URL)
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if meta.ContentType != "application/octet-stream" {
		t.Fatalf("expected default content type, got %s", meta.ContentType)
	}
	if meta.ExpiresAt == nil || !meta.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected default TTL expiry, got %v", meta.ExpiresAt)
	}
	if meta.ETag != "" {
		t.Fatalf("expected absent etag, got %s", meta.ETag)
	}
}

func TestFetchFailsOnErrorStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer upstream.Close()

	d := NewDownloader(Options{})
	if _, _, err := d.Fetch(context.Background(), upstream.URL); !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("expected ErrDownloadFailed, got %v", err)
	}
}

func TestFetchFailsOnTransportError(t *testing.T) {
	d := NewDownloader(Options{Timeout: time.Second})
	if _, _, err := d.Fetch(context.Background(), "http://127.0.0.1:1/nope"); !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("expected ErrDownloadFailed, got %v", err)
	}
}

func TestParseMaxAge(t *testing.T) {
	cases := []struct {
		header   string
		expected time.Duration
		ok       bool
	}{
		{"max-age=60", time.Minute, true},
		{"public, max-age=120, immutable", 2 * time.Minute, true},
		{"Public, MAX-AGE=30", 30 * time.Second, true},
		{"max-age=10, max-age=999", 10 * time.Second, true},
		{"max-age=0", 0, true},
		{"max-age=-5", 0, false},
		{"max-age=abc", 0, false},
		{"no-store", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseMaxAge(tc.header)
		if ok != tc.ok || got != tc.expected {
			t.Fatalf("header %q: expected (%v, %v), got (%v, %v)", tc.header, tc.expected, tc.ok, got, ok)
		}
	}
}

func newTestDownloader(now time.Time) *Downloader {
	d := NewDownloader(Options{DefaultTTL: time.Hour, Timeout: 5 * time.Second})
	d.now = func() time.Time { return now }
	return d
}
