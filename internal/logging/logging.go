// Package logging configures the process-wide logger: timestamped lines on
// stderr, mirrored to a rotating file under the state directory so long
// batch runs leave an inspectable trail.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger *logrus.Logger
	once   sync.Once
)

// Setup initializes the shared logger. The file writer is skipped when
// logFile is empty (tests, or commands that never touch the state dir).
// Safe to call more than once; only the first call wins.
func Setup(logFile string, verbose bool) *logrus.Logger {
	once.Do(func() {
		logger = logrus.New()
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		}

		writers := []io.Writer{os.Stderr}
		if logFile != "" {
			writers = append(writers, &lumberjack.Logger{
				Filename:   logFile,
				MaxSize:    20, // megabytes
				MaxAge:     14, // days
				MaxBackups: 3,
				Compress:   true,
			})
		}
		logger.SetOutput(io.MultiWriter(writers...))
	})
	return logger
}

// L returns the shared logger, initializing a stderr-only one if Setup was
// never called.
func L() *logrus.Logger {
	if logger == nil {
		return Setup("", false)
	}
	return logger
}
