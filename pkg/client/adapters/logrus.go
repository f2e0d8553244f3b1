package adapters

import (
	"github.com/kerlexov/logcollector/pkg/client"
	"github.com/sirupsen/logrus"
)

// LogrusHook forwards logrus entries to a collector logger
type LogrusHook struct {
	logger client.Logger
	levels []logrus.Level
}

// NewLogrusHook forwards entries at every level
func NewLogrusHook(logger client.Logger) *LogrusHook {
	return &LogrusHook{logger: logger, levels: logrus.AllLevels}
}

// NewLogrusHookWithLevels forwards only the given levels
func NewLogrusHookWithLevels(logger client.Logger, levels ...logrus.Level) *LogrusHook {
	return &LogrusHook{logger: logger, levels: levels}
}

func (h *LogrusHook) Levels() []logrus.Level {
	return h.levels
}

func (h *LogrusHook) Fire(entry *logrus.Entry) error {
	fields := make([]client.Field, 0, len(entry.Data))
	for key, value := range entry.Data {
		fields = append(fields, client.Field{Key: key, Value: value})
	}

	h.logger.Log(logrusLevel(entry.Level), entry.Message, fields...)
	return nil
}

func logrusLevel(level logrus.Level) client.Level {
	switch level {
	case logrus.TraceLevel, logrus.DebugLevel:
		return client.LevelDebug
	case logrus.InfoLevel:
		return client.LevelInfo
	case logrus.WarnLevel:
		return client.LevelWarn
	case logrus.ErrorLevel:
		return client.LevelError
	case logrus.FatalLevel, logrus.PanicLevel:
		return client.LevelFatal
	default:
		return client.LevelInfo
	}
}

// InstallLogrusHook adds the hook to the standard logrus logger
func InstallLogrusHook(logger client.Logger) {
	logrus.AddHook(NewLogrusHook(logger))
}
