package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"camtrap/internal/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger provides leveled logging (debug/info/warning/error) to rotated files and stdout/stderr.
type Logger struct {
	infoLog    *logrus.Logger
	warningLog *logrus.Logger
	errorLog   *logrus.Logger
	logDir     string
	mu         sync.Mutex
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(config *config.Config) *Logger {
	if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
		logrus.Fatalf("Failed to create log directory: %v", err)
	}

	logger := &Logger{
		logDir: config.LogDirectory,
	}

	level, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}

	logger.setupLoggers(level)
	return logger
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return &Logger{
		infoLog:    newLogrus(io.Discard, logrus.DebugLevel),
		warningLog: newLogrus(io.Discard, logrus.WarnLevel),
		errorLog:   newLogrus(io.Discard, logrus.ErrorLevel),
	}
}

// setupLoggers initializes writers and per-level loggers.
func (l *Logger) setupLoggers(level logrus.Level) {
	infoWriter := io.MultiWriter(os.Stdout, l.rotatingFile("info.log"))
	warningWriter := io.MultiWriter(os.Stdout, l.rotatingFile("warning.log"))
	errorWriter := io.MultiWriter(os.Stderr, l.rotatingFile("error.log"))

	l.infoLog = newLogrus(infoWriter, level)
	l.warningLog = newLogrus(warningWriter, logrus.WarnLevel)
	l.errorLog = newLogrus(errorWriter, logrus.ErrorLevel)
}

func (l *Logger) rotatingFile(filename string) io.Writer {
	return &lumberjack.Logger{
		Filename:   filepath.Join(l.logDir, filename),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28,
	}
}

func newLogrus(out io.Writer, level logrus.Level) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return log
}

// Debug writes a formatted debug-level log entry to the info log.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Debugf(format, v...)
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Infof(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.Warnf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Errorf(format, v...)
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) {
	if l.logDir == "" {
		return
	}
	filePath := filepath.Join(l.logDir, filepath.Base(fileName))
	if err := os.Truncate(filePath, 0); err != nil {
		l.Error("Error truncating log file %s: %v", fileName, err)
		return
	}

	l.Info("File content has been cleared: %s", fileName)
}
