// Package logger builds the process-wide zap logger.
package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the logger flavour.
type Options struct {
	AppEnv   string // "production" switches to JSON output
	Level    string // debug, info, warn, error
	Filename string // optional rotating log file
}

// New builds a zap logger from opts.
func New(opts Options) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("logger: invalid level %q: %w", opts.Level, err)
		}
	}

	var zapConfig zap.Config
	if opts.AppEnv == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = level
	zapConfig.OutputPaths = []string{"stdout"}

	if opts.Filename == "" {
		return zapConfig.Build(zap.AddCaller())
	}

	lumberJackLogger := &lumberjack.Logger{
		Filename:   opts.Filename,
		MaxSize:    64,
		MaxBackups: 7,
		MaxAge:     7,
		Compress:   false,
	}
	core := zapcore.NewTee(
		zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(lumberJackLogger),
			level,
		),
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(zapConfig.EncoderConfig),
			zapcore.AddSync(os.Stdout),
			level,
		),
	)
	return zap.New(core, zap.AddCaller()), nil
}

// Init builds the logger and installs it as the zap global.
func Init(opts Options) (*zap.Logger, error) {
	l, err := New(opts)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(l)
	return l, nil
}
