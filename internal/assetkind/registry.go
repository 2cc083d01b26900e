package assetkind

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Kind 记录一类资产的静态信息，供扩展名校验、响应兜底与诊断端使用。
type Kind struct {
	Key         string
	Description string
	// Extensions 是该类型允许的小写扩展名（含别名，如 jpeg/jpg）。
	Extensions []string
	// ContentType 是按扩展名兜底的响应类型；元数据里的类型优先。
	ContentType string
}

// Registry 维护扩展名到资产类型的映射。实例由组合根构造并显式注入，
// 不存在进程级全局状态。
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]Kind
	byExt map[string]string
}

// NewRegistry 返回空注册表。
func NewRegistry() *Registry {
	return &Registry{
		kinds: make(map[string]Kind),
		byExt: make(map[string]string),
	}
}

// Register 将类型加入注册表，重复键或重复扩展名会返回错误。
func (r *Registry) Register(kind Kind) error {
	key := normalize(kind.Key)
	if key == "" {
		return fmt.Errorf("kind key is required")
	}
	if len(kind.Extensions) == 0 {
		return fmt.Errorf("kind %s has no extensions", key)
	}
	kind.Key = key

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.kinds[key]; exists {
		return fmt.Errorf("kind %s already registered", key)
	}
	normalized := make([]string, 0, len(kind.Extensions))
	for _, ext := range kind.Extensions {
		ext = normalize(ext)
		if ext == "" {
			return fmt.Errorf("kind %s has an empty extension", key)
		}
		if owner, exists := r.byExt[ext]; exists {
			return fmt.Errorf("extension %s already registered by %s", ext, owner)
		}
		normalized = append(normalized, ext)
	}
	kind.Extensions = normalized

	r.kinds[key] = kind
	for _, ext := range kind.Extensions {
		r.byExt[ext] = key
	}
	return nil
}

// MustRegister 在注册失败时 panic，适合组合根的初始化代码调用。
func (r *Registry) MustRegister(kind Kind) {
	if err := r.Register(kind); err != nil {
		panic(err)
	}
}

// Resolve 返回指定键的类型定义。
func (r *Registry) Resolve(key string) (Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kind, ok := r.kinds[normalize(key)]
	return kind, ok
}

// ResolveExtension 按扩展名查找所属类型。
func (r *Registry) ResolveExtension(ext string) (Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key, ok := r.byExt[normalize(ext)]
	if !ok {
		return Kind{}, false
	}
	return r.kinds[key], true
}

// Allowed reports whether the extension passes the proxy allow-list.
func (r *Registry) Allowed(ext string) bool {
	_, ok := r.ResolveExtension(ext)
	return ok
}

// List 返回按键排序的类型列表。
func (r *Registry) List() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.kinds) == 0 {
		return nil
	}

	keys := make([]string, 0, len(r.kinds))
	for key := range r.kinds {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]Kind, 0, len(keys))
	for _, key := range keys {
		result = append(result, r.kinds[key])
	}
	return result
}

// Keys 返回所有已注册类型的键值，供调试或诊断使用。
func (r *Registry) Keys() []string {
	items := r.List()
	result := make([]string, len(items))
	for i, kind := range items {
		result[i] = kind.Key
	}
	return result
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
