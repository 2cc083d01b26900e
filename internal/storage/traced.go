package storage

import (
	"context"
	"errors"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/asset-hub/asset-hub/internal/asset"
)

// NewTracedStore 返回一个记录命中/未命中/写入事件的装饰器，接口与被包装
// 实例完全一致，由组合根在构造期决定是否启用。
func NewTracedStore(next Store, logger *logrus.Logger) Store {
	return &tracedStore{next: next, logger: logger}
}

type tracedStore struct {
	next   Store
	logger *logrus.Logger
}

func (t *tracedStore) HasMetadata(ctx context.Context, id asset.FileID, filename string) (bool, error) {
	return t.next.HasMetadata(ctx, id, filename)
}

func (t *tracedStore) HasContent(ctx context.Context, id asset.FileID, filename string) (bool, error) {
	return t.next.HasContent(ctx, id, filename)
}

func (t *tracedStore) GetMetadata(ctx context.Context, id asset.FileID, filename string) (asset.FileMetadata, error) {
	meta, err := t.next.GetMetadata(ctx, id, filename)
	t.trace("metadata_get", id, filename, err, errors.Is(err, ErrMetadataNotFound))
	return meta, err
}

func (t *tracedStore) GetContent(ctx context.Context, id asset.FileID, filename string) (*ReadResult, error) {
	result, err := t.next.GetContent(ctx, id, filename)
	t.trace("content_get", id, filename, err, errors.Is(err, ErrContentNotFound))
	return result, err
}

func (t *tracedStore) SetMetadata(ctx context.Context, id asset.FileID, filename string, meta asset.FileMetadata) error {
	err := t.next.SetMetadata(ctx, id, filename, meta)
	t.trace("metadata_set", id, filename, err, false)
	return err
}

func (t *tracedStore) SetContent(ctx context.Context, id asset.FileID, filename string, body io.Reader) (*Entry, error) {
	entry, err := t.next.SetContent(ctx, id, filename, body)
	t.trace("content_set", id, filename, err, false)
	return entry, err
}

func (t *tracedStore) Remove(ctx context.Context, id asset.FileID, filename string) error {
	err := t.next.Remove(ctx, id, filename)
	t.trace("remove", id, filename, err, false)
	return err
}

func (t *tracedStore) RemoveAll(ctx context.Context, id asset.FileID) error {
	err := t.next.RemoveAll(ctx, id)
	t.trace("remove_all", id, "", err, false)
	return err
}

func (t *tracedStore) ListIDs(ctx context.Context) ([]asset.FileID, error) {
	return t.next.ListIDs(ctx)
}

func (t *tracedStore) ListFilenames(ctx context.Context, id asset.FileID) ([]string, error) {
	return t.next.ListFilenames(ctx, id)
}

func (t *tracedStore) trace(action string, id asset.FileID, filename string, err error, miss bool) {
	if t.logger == nil {
		return
	}
	fields := logrus.Fields{
		"action":   "storage_" + action,
		"file_id":  id.String(),
		"filename": filename,
	}
	switch {
	case miss:
		fields["hit"] = false
		t.logger.WithFields(fields).Debug("storage_miss")
	case err != nil:
		fields["error"] = err.Error()
		t.logger.WithFields(fields).Warn("storage_error")
	default:
		fields["hit"] = true
		t.logger.WithFields(fields).Debug("storage_ok")
	}
}
