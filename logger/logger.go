package logger

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	projectLogger     *logrus.Logger
	projectLoggerOnce sync.Once
)

// GetProjectLogger returns the logger shared by every package of the metronome.
func GetProjectLogger() *logrus.Logger {
	projectLoggerOnce.Do(func() {
		projectLogger = logrus.New()
		projectLogger.SetOutput(os.Stderr)
		projectLogger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		projectLogger.SetLevel(logrus.InfoLevel)
	})
	return projectLogger
}

// ForComponent scopes the project logger to a single component.
func ForComponent(name string) *logrus.Entry {
	return GetProjectLogger().WithField("component", name)
}

// SetLevel parses and applies a level such as "debug" or "warn".
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	GetProjectLogger().SetLevel(lvl)
	return nil
}
