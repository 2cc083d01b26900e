package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// AssetFields 提供 file_id/filename/命中状态字段，供代理请求日志复用。
func AssetFields(fileID, filename string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"file_id":   fileID,
		"filename":  filename,
		"cache_hit": cacheHit,
	}
}
