package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds a zap logger that writes JSON to a rotating file under
// logDir and human-readable output to stderr.
func NewLogger(logDir, level string) (*zap.Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zap.InfoLevel
	}

	fileSink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(logDir, "statusd.log"),
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	})

	jsonCfg := zap.NewProductionEncoderConfig()
	jsonCfg.TimeKey = "ts"
	consoleCfg := zap.NewDevelopmentEncoderConfig()

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(jsonCfg), fileSink, lvl),
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), lvl),
	)
	return zap.New(core), nil
}
