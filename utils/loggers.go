package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger = zap.NewNop()

// InitLogger installs the process logger. Production uses JSON output,
// anything else the console encoder.
func InitLogger(production bool) {
	var cfg zap.Config
	if production {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.DisableStacktrace = !production

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		l = zap.NewExample()
	}
	logger = l
}

// Logger exposes the underlying zap logger for components that want fields.
func Logger() *zap.Logger {
	return logger
}

func SyncLogger() {
	_ = logger.Sync()
}

func LogInfo(message string, fields ...zap.Field) {
	logger.Info(message, fields...)
}

func LogWarning(message string, fields ...zap.Field) {
	logger.Warn(message, fields...)
}

func LogError(message string, err error, fields ...zap.Field) {
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	logger.Error(message, fields...)
}

func LogFatal(message string, err error, fields ...zap.Field) {
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	logger.Fatal(message, fields...)
}
