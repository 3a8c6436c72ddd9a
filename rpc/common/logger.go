package common

import (
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/sirupsen/logrus"
	"os"
	"strings"
)

// base is the logrus logger every package logger writes to.
var base = newBaseLogger()

func newBaseLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	// filtering happens per package, see daftLogger.SetLevel
	l.SetLevel(logrus.DebugLevel)
	return l
}

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// daftLogger implements the ILogger interface on top of a logrus entry
// tagged with the package name
type daftLogger struct {
	level logger.LogLevel
	entry *logrus.Entry
}

func (l *daftLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *daftLogger) Debugf(format string, args ...interface{}) {
	if l.level >= logger.DEBUG {
		l.entry.Debugf(format, args...)
	}
}

func (l *daftLogger) Infof(format string, args ...interface{}) {
	if l.level >= logger.INFO {
		l.entry.Infof(format, args...)
	}
}

func (l *daftLogger) Warningf(format string, args ...interface{}) {
	if l.level >= logger.WARNING {
		l.entry.Warnf(format, args...)
	}
}

func (l *daftLogger) Errorf(format string, args ...interface{}) {
	if l.level >= logger.ERROR {
		l.entry.Errorf(format, args...)
	}
}

func (l *daftLogger) Panicf(format string, args ...interface{}) {
	l.entry.Panicf(format, args...)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// CreateLogger implements dragonboats logger.Factory
func CreateLogger(pkgName string) logger.ILogger {
	return &daftLogger{
		level: logger.INFO,
		entry: base.WithField("pkg", pkgName),
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info", "":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return logger.INFO, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// loggers lists every package logger the level is applied to
var loggers = []string{
	// dragonboat
	"raft", "raftdb", "rsm", "transport", "dragonboat", "grpc", "util", "logdb",
	// dAFT
	"aft", "session", "codec", "replica", "transport/rpc", "rpc", "cli",
}

// InitLoggers installs the logrus backed factory and sets level on all
// package loggers. Dragonboat creates the backing logger of a package on its
// first use, so this has to run before anything is logged.
func InitLoggers(level string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}

	logger.SetLoggerFactory(CreateLogger)
	for _, name := range loggers {
		logger.GetLogger(name).SetLevel(lvl)
	}
	return nil
}
