// Package logging builds the process's root *zap.Logger, mirroring
// the sink/encoder setup in the teacher's logging.go, scaled down to
// this proxy's single-sink needs.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger. When development is true it uses a
// console-friendly encoder and debug level, matching local iteration;
// otherwise it emits JSON at info level, suitable for log aggregation.
func New(development bool) (*zap.Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	return cfg.Build()
}
