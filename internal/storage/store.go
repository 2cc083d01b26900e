package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/asset-hub/asset-hub/internal/asset"
)

// Store 负责按 (FileID, filename) 管理元数据与正文两层持久化。
// 两层相互独立：仅有元数据（pending）是合法的中间状态，不是数据损坏。
// 参考实现基于本地文件系统，远端实现（对象存储、KV）需保持相同语义。
type Store interface {
	// HasMetadata 查询元数据是否存在，是 UrlGenerator 判断缓存命中的依据。
	HasMetadata(ctx context.Context, id asset.FileID, filename string) (bool, error)

	// HasContent 查询正文是否存在。
	HasContent(ctx context.Context, id asset.FileID, filename string) (bool, error)

	// GetMetadata 读取元数据，不存在时返回 ErrMetadataNotFound，
	// 无法解码时返回 ErrMalformedMetadata。
	GetMetadata(ctx context.Context, id asset.FileID, filename string) (asset.FileMetadata, error)

	// GetContent 返回可流式读取的正文，不存在时返回 ErrContentNotFound。
	GetContent(ctx context.Context, id asset.FileID, filename string) (*ReadResult, error)

	// SetMetadata 全量覆盖元数据；需要局部更新的调用方自行 read-modify-write。
	SetMetadata(ctx context.Context, id asset.FileID, filename string, meta asset.FileMetadata) error

	// SetContent 全量覆盖正文。实现需通过临时文件 + rename 保证原子性，
	// 读取方永远不会观察到半写状态。
	SetContent(ctx context.Context, id asset.FileID, filename string, body io.Reader) (*Entry, error)

	// Remove 删除单个条目（元数据 + 正文），条目不存在不算错误。
	Remove(ctx context.Context, id asset.FileID, filename string) error

	// RemoveAll 删除一个 ID 下的全部条目，幂等。
	RemoveAll(ctx context.Context, id asset.FileID) error

	// ListIDs 枚举当前存储的全部 ID，供清理任务遍历。
	ListIDs(ctx context.Context) ([]asset.FileID, error)

	// ListFilenames 返回指定 ID 下拥有元数据记录的文件名。
	ListFilenames(ctx context.Context, id asset.FileID) ([]string, error)
}

// Entry 描述一次正文写入/命中的结果。
type Entry struct {
	ID        asset.FileID
	Filename  string
	SizeBytes int64
	ModTime   time.Time
}

// ReadResult 组合 Entry 与正文 Reader，便于代理层直接流式返回。
type ReadResult struct {
	Entry  Entry
	Reader io.ReadSeekCloser
}

var (
	// ErrMetadataNotFound 表示元数据缺失，代理边界应转换为 404。
	ErrMetadataNotFound = errors.New("metadata not found")
	// ErrContentNotFound 表示正文缺失，pending 条目读取正文时的预期错误。
	ErrContentNotFound = errors.New("content not found")
	// ErrMalformedMetadata 表示落盘元数据无法解码，仅清理任务会遇到并跳过。
	ErrMalformedMetadata = errors.New("malformed metadata record")
)
