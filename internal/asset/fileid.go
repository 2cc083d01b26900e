package asset

import (
	"fmt"
	"regexp"

	"github.com/cespare/xxhash/v2"
)

// FileID 是由源 URL 派生的内容寻址标识，固定 16 个小写十六进制字符。
type FileID string

var fileIDPattern = regexp.MustCompile(`^[a-f0-9]{16}$`)

// NewFileID 对源 URL 做 64 位 xxhash 并格式化为 16 位十六进制。
// 纯函数：相同输入在任何进程、任何节点上都得到相同的 ID。
func NewFileID(sourceURL string) FileID {
	return FileID(fmt.Sprintf("%016x", xxhash.Sum64String(sourceURL)))
}

// ValidFileID reports whether raw looks like a content-addressed id.
func ValidFileID(raw string) bool {
	return fileIDPattern.MatchString(raw)
}

// String 返回底层字符串，便于拼接路径与日志字段。
func (id FileID) String() string {
	return string(id)
}
