package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the process logger. format is "json" or "text"; an
// unknown level falls back to info.
func NewLogger(level, format string) *logrus.Logger {
	logg := logrus.New()
	logg.SetOutput(os.Stdout)

	if format == "text" {
		logg.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logg.SetFormatter(&logrus.JSONFormatter{})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logg.SetLevel(lvl)
	return logg
}
