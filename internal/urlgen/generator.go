package urlgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/asset-hub/asset-hub/internal/asset"
	"github.com/asset-hub/asset-hub/internal/storage"
)

// ReferenceType 决定生成的代理 URL 形态。
type ReferenceType string

const (
	// ReferenceAbsolute 生成包含 scheme+host 的完整 URL。
	ReferenceAbsolute ReferenceType = "absolute"
	// ReferenceAbsolutePath 生成以 / 开头的站内路径。
	ReferenceAbsolutePath ReferenceType = "absolute-path"
	// ReferenceRelativePath 生成不带前导 / 的相对路径。
	ReferenceRelativePath ReferenceType = "relative-path"
)

// URLBuilder 是宿主提供的 URL 构建设施；本包每次 Generate 只调用一次，
// 并把返回值视为不透明字符串。
type URLBuilder interface {
	Build(refType ReferenceType, id asset.FileID, filename string) string
}

// BaseURLBuilder 是参考实现：以配置的站点根渲染 /f/{id}/{filename} 路由。
type BaseURLBuilder struct {
	BaseURL string
}

// Build 按请求的引用类型渲染代理路由。
func (b BaseURLBuilder) Build(refType ReferenceType, id asset.FileID, filename string) string {
	path := fmt.Sprintf("f/%s/%s", id, filename)
	switch refType {
	case ReferenceAbsolute:
		return strings.TrimSuffix(b.BaseURL, "/") + "/" + path
	case ReferenceRelativePath:
		return path
	default:
		return "/" + path
	}
}

// Generator 是渲染侧的公共入口：确保元数据存在并返回代理 URL，
// 永远不在这里触发下载。
type Generator struct {
	store   storage.Store
	builder URLBuilder
	logger  *logrus.Logger
}

// NewGenerator 构造注入存储与 URL 构建器的生成器。
func NewGenerator(store storage.Store, builder URLBuilder, logger *logrus.Logger) *Generator {
	return &Generator{
		store:   store,
		builder: builder,
		logger:  logger,
	}
}

// Generate 为资源引用派生描述符，首次见到时写入 pending 元数据，
// 之后的调用观察到 HasMetadata 为真即跳过写入。并发竞态由存储层的
// 幂等覆盖保证最终一致，这里不做跨进程协调。
func (g *Generator) Generate(ctx context.Context, ref asset.Reference, refType ReferenceType) (string, error) {
	desc, err := asset.NewDescriptor(ref)
	if err != nil {
		return "", err
	}

	filename := desc.Filename()
	exists, err := g.store.HasMetadata(ctx, desc.ID, filename)
	if err != nil {
		return "", fmt.Errorf("check metadata: %w", err)
	}

	if !exists {
		pending := asset.FileMetadata{OriginalURL: desc.SourceURL}
		if err := g.store.SetMetadata(ctx, desc.ID, filename, pending); err != nil {
			return "", fmt.Errorf("write pending metadata: %w", err)
		}
		if g.logger != nil {
			g.logger.WithFields(logrus.Fields{
				"action":   "url_generate",
				"file_id":  desc.ID.String(),
				"filename": filename,
			}).Debug("pending_metadata_written")
		}
	}

	return g.builder.Build(refType, desc.ID, filename), nil
}
