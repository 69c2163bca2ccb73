package logx

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New: logger JSON production-style, field "service" selalu terpasang.
func New(service string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	log, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return log.With(zap.String("service", service))
}
