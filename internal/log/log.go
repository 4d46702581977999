// Package log builds the zap loggers used throughout webglhost.
package log

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger suited to the execution mode. Development loggers are
// human readable and log at debug level; production loggers emit JSON at info
// level.
func New(production bool) (*zap.Logger, error) {
	var config zap.Config
	if production {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	config.DisableStacktrace = true
	return config.Build()
}

// For returns a child of logger tagged with the element type and address of
// src, such as "Store(0xc000123456)". This can be a convenient way to
// differentiate instances of the same type, though addresses are somewhat
// opaque as identifiers.
func For[T any](logger *zap.Logger, src *T) *zap.Logger {
	return logger.With(zap.String("src", fmt.Sprintf("%s(%p)", reflect.TypeFor[T]().Name(), src)))
}
