// Package logging builds the process-wide zap logger from the engine
// configuration. All engine components log through it; the transport layer
// must route logs to stderr so stdout stays clean for the JSON-RPC stream.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nibzard/agrama/internal/config"
)

// New constructs a logger per cfg. Format "console" is human-oriented;
// "json" is the structured default. Output always goes to stderr.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logging: parsing level %q: %w", cfg.Level, err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.Encoding = cfg.Format
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: building logger: %w", err)
	}
	return logger, nil
}

// Nop returns a logger that discards everything. Used by tests and by
// components constructed without an engine.
func Nop() *zap.Logger { return zap.NewNop() }
