package services

import (
	"fmt"
	"sort"
	"strings"

	"pso-monitor-service/config"
)

// InterfaceErrorLogger 非致命错误上报接口
// 级联清理里被吞掉的失败都要经过这里，保证运维侧可见
type InterfaceErrorLogger interface {
	LogError(err error, context map[string]interface{})
}

// ErrorLogger 基于分级日志的实现
type ErrorLogger struct{}

// NewErrorLogger 创建错误日志器
func NewErrorLogger() InterfaceErrorLogger {
	return &ErrorLogger{}
}

// LogError 记录错误与上下文，上下文按键排序保证日志可比对
func (l *ErrorLogger) LogError(err error, context map[string]interface{}) {
	if err == nil {
		return
	}

	keys := make([]string, 0, len(context))
	for k := range context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, context[k]))
	}

	if len(parts) > 0 {
		config.Error("%v (%s)", err, strings.Join(parts, ", "))
	} else {
		config.Error("%v", err)
	}
}

// runBestEffort 包装一次尽力而为的调用：失败只记录，不向上传播
// 级联清理和广播扇出都用它，保证单个旁路失败不会中断主流程
func runBestEffort(logger InterfaceErrorLogger, step string, context map[string]interface{}, fn func() error) {
	if err := fn(); err != nil {
		if context == nil {
			context = map[string]interface{}{}
		}
		context["step"] = step
		logger.LogError(err, context)
	}
}
