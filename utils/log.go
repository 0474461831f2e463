package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/QRLogin-sec/QRLChecker/libs"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var logger = logrus.New()

// InitLog init log
func InitLog(options *libs.Options) {
	var mwr io.Writer = os.Stderr
	if options.LogFile != "" {
		logFile := NormalizePath(options.LogFile)
		os.MkdirAll(filepath.Dir(logFile), 0750)
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			logger.Errorf("error opening log file %v: %v", logFile, err)
		} else {
			mwr = io.MultiWriter(os.Stderr, f)
		}
	}

	logger = &logrus.Logger{
		Out:   mwr,
		Level: logrus.InfoLevel,
		Formatter: &prefixed.TextFormatter{
			ForceColors:     true,
			ForceFormatting: true,
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		},
	}

	if options.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}
}

// Logger expose the underlying logger for libraries that want an io.Writer
func Logger() *logrus.Logger {
	return logger
}

// GoodF print good message
func GoodF(format string, args ...interface{}) {
	good := color.HiGreenString("[+]")
	fmt.Fprintf(os.Stderr, "%s %s\n", good, fmt.Sprintf(format, args...))
}

// InforF print info message
func InforF(format string, args ...interface{}) {
	logger.Info(fmt.Sprintf(format, args...))
}

// WarningF print warning message
func WarningF(format string, args ...interface{}) {
	logger.Warn(fmt.Sprintf(format, args...))
}

// DebugF print debug message
func DebugF(format string, args ...interface{}) {
	logger.Debug(fmt.Sprintf(format, args...))
}

// ErrorF print error message
func ErrorF(format string, args ...interface{}) {
	logger.Error(fmt.Sprintf(format, args...))
}
