package asset

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidReference 表示上游资源引用缺少必填字段，渲染方应视为致命错误。
var ErrInvalidReference = errors.New("invalid asset reference")

// Reference 是上游内容平台暴露的资源视图，本子系统只读不改。
// Width/Height 为 0 表示尺寸未知。
type Reference struct {
	SourceURL   string
	Width       uint
	Height      uint
	DisplayName string
	Extension   string
}

// Descriptor 由 Reference 纯派生而来，不做任何网络访问，
// 仅在单次调用内存活，持久化状态完全由 storage 负责。
type Descriptor struct {
	ID          FileID
	SourceURL   string
	Width       uint
	Height      uint
	DisplayName string
	Extension   string
}

// NewDescriptor 校验引用字段并派生内容寻址 ID；扩展名统一转小写。
func NewDescriptor(ref Reference) (*Descriptor, error) {
	if strings.TrimSpace(ref.SourceURL) == "" {
		return nil, fmt.Errorf("%w: source url is required", ErrInvalidReference)
	}
	if strings.TrimSpace(ref.Extension) == "" {
		return nil, fmt.Errorf("%w: extension is required", ErrInvalidReference)
	}
	if strings.TrimSpace(ref.DisplayName) == "" {
		return nil, fmt.Errorf("%w: display name is required", ErrInvalidReference)
	}

	return &Descriptor{
		ID:          NewFileID(ref.SourceURL),
		SourceURL:   ref.SourceURL,
		Width:       ref.Width,
		Height:      ref.Height,
		DisplayName: ref.DisplayName,
		Extension:   strings.ToLower(ref.Extension),
	}, nil
}

// Filename 返回存储层使用的规范文件名。任一维度非零时带上尺寸前缀，
// 以便同一原图的不同变体在目录中可读区分。
func (d *Descriptor) Filename() string {
	if d.Width > 0 || d.Height > 0 {
		return fmt.Sprintf("%dx%d-%s.%s", d.Width, d.Height, d.DisplayName, d.Extension)
	}
	return fmt.Sprintf("%s.%s", d.DisplayName, d.Extension)
}
