package liquidsdk

import (
	"strings"

	"github.com/breez/breez-liquid-sdk-go/internal/logger"
	"github.com/breez/breez-liquid-sdk-go/pkg/models"
	"github.com/sirupsen/logrus"
)

type logHook struct {
	logger models.Logger
}

func (hook *logHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook *logHook) Fire(entry *logrus.Entry) error {
	hook.logger.Log(models.LogEntry{
		Line:  entry.Message,
		Level: logLevel(entry.Level),
	})
	return nil
}

func logLevel(level logrus.Level) string {
	switch level {
	case logrus.WarnLevel:
		return "WARN"
	case logrus.PanicLevel, logrus.FatalLevel:
		return "ERROR"
	}
	return strings.ToUpper(level.String())
}

// SetLogger forwards every sdk log line to l, replacing a previously set logger
func SetLogger(l models.Logger) {
	logger.ResetHooks()
	if l != nil {
		logger.AddHook(&logHook{logger: l})
	}
}
