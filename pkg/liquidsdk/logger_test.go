package liquidsdk

import (
	"sync"
	"testing"

	"github.com/breez/breez-liquid-sdk-go/internal/logger"
	"github.com/breez/breez-liquid-sdk-go/internal/test"
	"github.com/breez/breez-liquid-sdk-go/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type testLogger struct {
	lock    sync.Mutex
	entries []models.LogEntry
}

func (l *testLogger) Log(entry models.LogEntry) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.entries = append(l.entries, entry)
}

func TestSetLogger(t *testing.T) {
	test.InitLogger()
	collected := &testLogger{}
	SetLogger(collected)
	t.Cleanup(func() { SetLogger(nil) })

	logger.Info("started")
	logger.Warnf("retrying %d", 2)

	collected.lock.Lock()
	defer collected.lock.Unlock()
	require.Contains(t, collected.entries, models.LogEntry{Line: "started", Level: "INFO"})
	require.Contains(t, collected.entries, models.LogEntry{Line: "retrying 2", Level: "WARN"})
}

func TestLogLevel(t *testing.T) {
	require.Equal(t, "DEBUG", logLevel(logrus.DebugLevel))
	require.Equal(t, "TRACE", logLevel(logrus.TraceLevel))
	require.Equal(t, "WARN", logLevel(logrus.WarnLevel))
	require.Equal(t, "ERROR", logLevel(logrus.ErrorLevel))
	require.Equal(t, "ERROR", logLevel(logrus.FatalLevel))
}
