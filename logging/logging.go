// Package logging builds zap loggers from preset names or JSON configuration files.
package logging

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewZapLogger returns a new [*zap.Logger] with the given preset and log level.
//
// The available presets are:
//
//   - "console" (default): Reasonable defaults for printing logs to the console.
//   - "console-nocolor": Same as "console", but without color.
//   - "console-notime": Same as "console", but without timestamps.
//   - "systemd": Reasonable defaults for running as a systemd service. Same as "console", but without color and timestamps.
//   - "production": Zap's built-in production preset.
//   - "development": Zap's built-in development preset.
//
// If the preset is not recognized, it is treated as a path to a JSON configuration file.
//
// The log level does not apply to the "production", "development", or custom presets.
func NewZapLogger(preset string, level zapcore.Level) (*zap.Logger, error) {
	switch preset {
	case "console":
		return NewProductionConsoleZapLogger(level, false, false, false), nil
	case "console-nocolor":
		return NewProductionConsoleZapLogger(level, true, false, false), nil
	case "console-notime":
		return NewProductionConsoleZapLogger(level, false, true, false), nil
	case "systemd":
		return NewProductionConsoleZapLogger(level, true, true, false), nil
	case "production":
		return zap.NewProduction()
	case "development":
		return zap.NewDevelopment()
	default:
		return NewZapLoggerFromConfig(preset)
	}
}

// NewZapLoggerFromConfig returns a new [*zap.Logger] built from the JSON configuration file at path.
func NewZapLoggerFromConfig(path string) (*zap.Logger, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open zap config: %w", err)
	}
	defer f.Close()

	var zc zap.Config
	d := json.NewDecoder(f)
	d.DisallowUnknownFields()
	if err = d.Decode(&zc); err != nil {
		return nil, fmt.Errorf("failed to decode zap config %q: %w", path, err)
	}
	return zc.Build()
}

// NewProductionConsoleConfig is like [zap.NewProductionConfig], but with a console encoder.
func NewProductionConsoleConfig(level zapcore.Level, noColor, noTime, addCaller bool) zap.Config {
	var (
		levelEncoder zapcore.LevelEncoder
		timeKey      string
	)
	if noColor {
		levelEncoder = zapcore.CapitalLevelEncoder
	} else {
		levelEncoder = zapcore.CapitalColorLevelEncoder
	}
	if !noTime {
		timeKey = "ts"
	}

	return zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       false,
		DisableCaller:     !addCaller,
		DisableStacktrace: true,
		Encoding:          "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        timeKey,
			LevelKey:       "L",
			NameKey:        "N",
			CallerKey:      "C",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "M",
			StacktraceKey:  "S",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    levelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
}

// NewProductionConsoleZapLogger builds a logger from [NewProductionConsoleConfig].
func NewProductionConsoleZapLogger(level zapcore.Level, noColor, noTime, addCaller bool) *zap.Logger {
	cfg := NewProductionConsoleConfig(level, noColor, noTime, addCaller)
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
