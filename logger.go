package dictgraph

import (
	"strings"

	"go.uber.org/zap"
)

// NewLogger builds a zap logger for programs embedding the engine. "prod" or
// "production" selects JSON output, anything else the development console
// encoder. Both log at debug level.
func NewLogger(mode string) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	return cfg.Build()
}

func componentLogger(log *zap.Logger, component string) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log.With(zap.String("component", component))
}
