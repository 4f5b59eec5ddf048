package logger

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type recordingHook struct {
	entries []*logrus.Entry
}

func (h *recordingHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *recordingHook) Fire(entry *logrus.Entry) error {
	h.entries = append(h.entries, entry)
	return nil
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("silly")
	require.NoError(t, err)
	require.Equal(t, logrus.TraceLevel, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	require.Equal(t, logrus.InfoLevel, level)

	_, err = ParseLevel("loud")
	require.Error(t, err)
}

func TestInit(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "debug", Logger: &buf, Quiet: true})
	t.Cleanup(func() { Init(Options{Level: "info"}) })

	hook := &recordingHook{}
	AddHook(hook)
	t.Cleanup(ResetHooks)

	Debugf("swap %s", "abc")
	Silly("not shown")

	require.Contains(t, buf.String(), "swap abc")
	require.NotContains(t, buf.String(), "not shown")
	require.Len(t, hook.entries, 1)
	require.Equal(t, logrus.DebugLevel, hook.entries[0].Level)
}
