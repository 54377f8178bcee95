package logger

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// 日志文件滚动参数
const (
	maxSizeMB  = 100
	maxBackups = 5
	maxAgeDays = 30
)

// New 创建命名日志
// format 为 console 或 json；file 非空时同时写入滚动文件
func New(name, level, format, file string) (*zap.Logger, error) {
	level = strings.ToLower(level)
	switch level {
	case "":
		level = "info"
	case "warning":
		level = "warn"
	case "critical":
		level = "fatal"
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "parse log level %q", level)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch strings.ToLower(format) {
	case "", "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, errors.Errorf("unsupported log format %q", format)
	}

	sink := zapcore.AddSync(os.Stderr)
	if file != "" {
		sink = zapcore.NewMultiWriteSyncer(sink, zapcore.AddSync(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   true,
		}))
	}

	core := zapcore.NewCore(enc, sink, zap.NewAtomicLevelAt(lvl))
	return zap.New(core, zap.AddCaller()).Named(name), nil
}
