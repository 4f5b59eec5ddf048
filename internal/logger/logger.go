package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

type Options struct {
	Level string `long:"loglevel" description:"Log level (fatal, error, warn, info, debug, silly)"`

	// Logger receives a copy of every line in addition to stderr, usually a lumberjack.Logger
	Logger io.Writer `toml:"-"`
	// disables writing to stderr
	Quiet bool `toml:"-"`
}

var (
	log  = logrus.New()
	lock sync.RWMutex
)

func init() {
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(logrus.InfoLevel)
}

func ParseLevel(level string) (logrus.Level, error) {
	switch strings.ToLower(level) {
	case "silly", "trace":
		return logrus.TraceLevel, nil
	case "warning":
		return logrus.WarnLevel, nil
	case "":
		return logrus.InfoLevel, nil
	}
	return logrus.ParseLevel(level)
}

func Init(options Options) {
	lock.Lock()
	defer lock.Unlock()

	level, err := ParseLevel(options.Level)
	if err != nil {
		log.Warnf("Invalid log level %s, using info", options.Level)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	var writers []io.Writer
	if !options.Quiet {
		writers = append(writers, os.Stderr)
	}
	if options.Logger != nil {
		writers = append(writers, options.Logger)
	}
	switch len(writers) {
	case 0:
		log.SetOutput(io.Discard)
	case 1:
		log.SetOutput(writers[0])
	default:
		log.SetOutput(io.MultiWriter(writers...))
	}
}

// AddHook registers a hook which sees every entry at or above the configured level.
func AddHook(hook logrus.Hook) {
	lock.Lock()
	defer lock.Unlock()
	log.AddHook(hook)
}

func ResetHooks() {
	lock.Lock()
	defer lock.Unlock()
	log.ReplaceHooks(make(logrus.LevelHooks))
}

func Fatal(message string) {
	log.Fatal(message)
}

func Fatalf(format string, args ...any) {
	log.Fatalf(format, args...)
}

func Error(message string) {
	log.Error(message)
}

func Errorf(format string, args ...any) {
	log.Errorf(format, args...)
}

func Warn(message string) {
	log.Warn(message)
}

func Warnf(format string, args ...any) {
	log.Warnf(format, args...)
}

func Info(message string) {
	log.Info(message)
}

func Infof(format string, args ...any) {
	log.Infof(format, args...)
}

func Debug(message string) {
	log.Debug(message)
}

func Debugf(format string, args ...any) {
	log.Debugf(format, args...)
}

// Silly is for very verbose output like raw websocket messages and sql queries
func Silly(message string) {
	log.Trace(message)
}

func Sillyf(format string, args ...any) {
	log.Tracef(format, args...)
}
