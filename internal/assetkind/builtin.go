package assetkind

// Builtin 构造带默认类型集的注册表：常见图片格式、PDF 与 MP4。
// allowed 非空时仅保留其中出现的扩展名，用于配置层收窄许可范围。
func Builtin(allowed []string) *Registry {
	defaults := []Kind{
		{Key: "jpeg", Description: "JPEG image", Extensions: []string{"jpg", "jpeg"}, ContentType: "image/jpeg"},
		{Key: "png", Description: "PNG image", Extensions: []string{"png"}, ContentType: "image/png"},
		{Key: "gif", Description: "GIF image", Extensions: []string{"gif"}, ContentType: "image/gif"},
		{Key: "webp", Description: "WebP image", Extensions: []string{"webp"}, ContentType: "image/webp"},
		{Key: "svg", Description: "SVG vector image", Extensions: []string{"svg"}, ContentType: "image/svg+xml"},
		{Key: "avif", Description: "AVIF image", Extensions: []string{"avif"}, ContentType: "image/avif"},
		{Key: "pdf", Description: "PDF document", Extensions: []string{"pdf"}, ContentType: "application/pdf"},
		{Key: "mp4", Description: "MP4 video", Extensions: []string{"mp4"}, ContentType: "video/mp4"},
	}

	allowSet := make(map[string]struct{}, len(allowed))
	for _, ext := range allowed {
		allowSet[normalize(ext)] = struct{}{}
	}

	registry := NewRegistry()
	for _, kind := range defaults {
		if len(allowSet) > 0 {
			var kept []string
			for _, ext := range kind.Extensions {
				if _, ok := allowSet[ext]; ok {
					kept = append(kept, ext)
				}
			}
			if len(kept) == 0 {
				continue
			}
			kind.Extensions = kept
		}
		registry.MustRegister(kind)
	}
	return registry
}
