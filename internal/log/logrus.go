package log

import (
	"fmt"
	"io"
	"os"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogrusOptions configures the logrus backend
type LogrusOptions struct {
	Level   string    // trace, debug, info, warn, error (default: info)
	File    string    // Optional rotated log file, written in addition to Output
	Output  io.Writer // Defaults to os.Stderr
	NoColor bool
}

// NewLogrus builds a logrus logger for standalone tools
func NewLogrus(opts LogrusOptions) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.SetFormatter(&formatter.Formatter{
		NoColors:        opts.NoColor,
		TimestampFormat: "02 Jan 06 - 15:04:05",
		HideKeys:        false,
	})

	output := opts.Output
	if output == nil {
		output = os.Stderr
	}
	writers := []io.Writer{output}

	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
		})
	}

	logger.SetOutput(io.MultiWriter(writers...))
	return logger
}

// LogrusSink adapts a logrus logger to Sink
type LogrusSink struct {
	Logger *logrus.Logger
}

func (s LogrusSink) Tracef(format string, args ...interface{}) { s.Logger.Tracef(format, args...) }
func (s LogrusSink) Debugf(format string, args ...interface{}) { s.Logger.Debugf(format, args...) }
func (s LogrusSink) Infof(format string, args ...interface{})  { s.Logger.Infof(format, args...) }
func (s LogrusSink) Warnf(format string, args ...interface{})  { s.Logger.Warnf(format, args...) }
func (s LogrusSink) Errorf(format string, args ...interface{}) { s.Logger.Errorf(format, args...) }

// Progress is logged at debug level
func (s LogrusSink) Progress(progress float64) {
	s.Logger.WithField("progress", fmt.Sprintf("%.0f%%", progress*100)).Debug("progress")
}
