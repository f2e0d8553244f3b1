package adapters

import (
	"github.com/kerlexov/logcollector/pkg/client"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapCore is a zapcore.Core that forwards entries to a collector logger
type ZapCore struct {
	zapcore.LevelEnabler
	logger client.Logger
}

// NewZapCore forwards entries at or above enabler
func NewZapCore(logger client.Logger, enabler zapcore.LevelEnabler) zapcore.Core {
	return &ZapCore{LevelEnabler: enabler, logger: logger}
}

func (c *ZapCore) With(fields []zapcore.Field) zapcore.Core {
	return &ZapCore{
		LevelEnabler: c.LevelEnabler,
		logger:       c.logger.WithFields(convertZapFields(fields)...),
	}
}

func (c *ZapCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *ZapCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	c.logger.Log(zapLevel(entry.Level), entry.Message, convertZapFields(fields)...)
	return nil
}

func (c *ZapCore) Sync() error {
	return nil
}

// convertZapFields resolves typed zap fields through a map encoder
func convertZapFields(fields []zapcore.Field) []client.Field {
	encoder := zapcore.NewMapObjectEncoder()
	for _, field := range fields {
		field.AddTo(encoder)
	}

	converted := make([]client.Field, 0, len(encoder.Fields))
	for _, field := range fields {
		if value, ok := encoder.Fields[field.Key]; ok {
			converted = append(converted, client.Field{Key: field.Key, Value: value})
		}
	}
	return converted
}

func zapLevel(level zapcore.Level) client.Level {
	switch level {
	case zapcore.DebugLevel:
		return client.LevelDebug
	case zapcore.InfoLevel:
		return client.LevelInfo
	case zapcore.WarnLevel:
		return client.LevelWarn
	case zapcore.ErrorLevel:
		return client.LevelError
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return client.LevelFatal
	default:
		return client.LevelInfo
	}
}

// NewZapLogger returns a zap logger writing only to the collector
func NewZapLogger(logger client.Logger, enabler zapcore.LevelEnabler) *zap.Logger {
	return zap.New(NewZapCore(logger, enabler))
}

// Tee adds collector forwarding to an existing zap logger
func Tee(base *zap.Logger, logger client.Logger, enabler zapcore.LevelEnabler) *zap.Logger {
	return base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, NewZapCore(logger, enabler))
	}))
}
