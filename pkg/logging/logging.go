// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package logging

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

const (
	// FormatText is the default logrus text formatter
	FormatText = "text"
	// FormatJSON is the logrus JSON formatter
	FormatJSON = "json"

	// DefaultLogLevel is the default log level
	DefaultLogLevel = logrus.InfoLevel
)

// DefaultLogger is the base logrus logger. It is different from the logrus
// standard logger so that packages of this repository do not pick up settings
// made on the global one by dependencies.
var DefaultLogger = InitializeDefaultLogger()

// InitializeDefaultLogger returns a logrus Logger with the default text
// formatter and log level.
func InitializeDefaultLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(GetFormatter(FormatText))
	logger.SetLevel(DefaultLogLevel)
	return logger
}

// GetFormatter returns a configured logrus.Formatter for the given format.
func GetFormatter(format string) logrus.Formatter {
	switch format {
	case FormatJSON:
		return &logrus.JSONFormatter{
			DisableTimestamp: false,
		}
	default:
		return &logrus.TextFormatter{
			DisableTimestamp: true,
			DisableColors:    true,
		}
	}
}

// SetupLogging sets up the DefaultLogger with the given level and format.
func SetupLogging(level, format string) error {
	switch format {
	case FormatText, FormatJSON, "":
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	lvl := DefaultLogLevel
	if level != "" {
		var err error
		lvl, err = logrus.ParseLevel(level)
		if err != nil {
			return err
		}
	}

	DefaultLogger.SetLevel(lvl)
	DefaultLogger.SetFormatter(GetFormatter(format))
	return nil
}
