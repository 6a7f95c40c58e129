package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// FontFields 提供族名/来源/阶段字段，供缓存流程日志复用。
func FontFields(family, source, stage string) logrus.Fields {
	return logrus.Fields{
		"family": family,
		"source": source,
		"stage":  stage,
	}
}

// RequestFields 提供 HTTP 请求日志的公共字段。
func RequestFields(requestID, method, path string, status int) logrus.Fields {
	return logrus.Fields{
		"request_id": requestID,
		"method":     method,
		"path":       path,
		"status":     status,
	}
}
