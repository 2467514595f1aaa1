// 包 logger：统一初始化与获取日志器；通过环境变量控制日志级别与输出格式
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var defaultLogger *slog.Logger

// 文档注释：解析日志级别
// 约束：未知取值回退到 info
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New：按格式与级别构建日志器，format 为 json 时输出 JSON，否则为文本
func New(w io.Writer, format string, lvl slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Setup：按 LOG_LEVEL / LOG_FORMAT 初始化进程级日志器，输出到标准错误
func Setup() *slog.Logger {
	defaultLogger = New(os.Stderr, os.Getenv("LOG_FORMAT"), parseLevel(os.Getenv("LOG_LEVEL")))
	slog.SetDefault(defaultLogger)
	return defaultLogger
}

// L：获取默认日志器；未初始化时回退到 Setup
func L() *slog.Logger {
	if defaultLogger == nil {
		return Setup()
	}
	return defaultLogger
}

// LogError：以结构化字段记录错误
func LogError(l *slog.Logger, msg string, err error, args ...any) {
	if l == nil || err == nil {
		return
	}
	l.Error(msg, append([]any{slog.String("err", err.Error())}, args...)...)
}
