package logger

import (
	"io"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"product-user-services/internal/core/config"
)

type Options struct {
	Level string // debug / info / warn / error，非法值退回 info
	JSON  bool   // JSON 输出；否则彩色 console（开发模式）
	File  config.LogFile
	Out   zapcore.WriteSyncer // 默认 stdout，测试里换成 buffer
}

// New 只写 stdout
func New(level string, json bool) (*zap.Logger, func()) {
	return buildLogger(Options{Level: level, JSON: json})
}

// NewFromConfig 按配置决定是否额外写滚动文件
func NewFromConfig(c config.Log) (*zap.Logger, func()) {
	return buildLogger(Options{Level: c.Level, JSON: c.JSON, File: c.File})
}

func encoder(json bool) zapcore.Encoder {
	if json {
		cfg := zap.NewProductionEncoderConfig()
		cfg.TimeKey = "ts"
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncodeCaller = zapcore.ShortCallerEncoder
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

func buildLogger(opt Options) (*zap.Logger, func()) {
	lvl, err := zapcore.ParseLevel(opt.Level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	out := opt.Out
	if out == nil {
		out = zapcore.Lock(os.Stdout)
	}

	enc := encoder(opt.JSON)
	cores := []zapcore.Core{zapcore.NewCore(enc, out, lvl)}
	if opt.File.Enable && opt.File.Filename != "" {
		// 文件统一 JSON，方便采集
		cores = append(cores, zapcore.NewCore(encoder(true), zapcore.AddSync(&lumberjack.Logger{
			Filename:   opt.File.Filename,
			MaxSize:    max(1, opt.File.MaxSizeMB),
			MaxBackups: max(0, opt.File.MaxBackups),
			MaxAge:     max(0, opt.File.MaxAgeDays),
			Compress:   opt.File.Compress,
		}), lvl))
	}

	// 同一秒内同样的消息超过 100 条后开始采样
	core := zapcore.NewSamplerWithOptions(zapcore.NewTee(cores...), time.Second, 100, 100)
	zopts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if !opt.JSON {
		zopts = append(zopts, zap.Development())
	}
	l := zap.New(core, zopts...)
	return l, func() { _ = l.Sync() }
}

type zapIOWriter struct {
	l     *zap.Logger
	level zapcore.Level
}

func (w *zapIOWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\r\n")
	if ce := w.l.Check(w.level, msg); ce != nil {
		ce.Write()
	}
	return len(p), nil
}

// ToWriter 给 gin.DefaultWriter 之类只认 io.Writer 的地方用
func ToWriter(l *zap.Logger, level zapcore.Level) io.Writer {
	return &zapIOWriter{l: l, level: level}
}

// ToStdLogger gorm logger 需要 Printf
func ToStdLogger(l *zap.Logger, level zapcore.Level) *log.Logger {
	std, err := zap.NewStdLogAt(l, level)
	if err != nil {
		return zap.NewStdLog(l)
	}
	return std
}

// RedirectStdLog 返回恢复函数
func RedirectStdLog(l *zap.Logger, level zapcore.Level) func() {
	undo, err := zap.RedirectStdLogAt(l, level)
	if err != nil {
		return func() {}
	}
	return undo
}
