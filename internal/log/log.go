// Package log provides the logging functions used across the plugin.
//
// By default messages go to the Stash plugin log so they show up in the Stash UI.
// Standalone tools install a logrus backend with SetSink.
package log

import (
	"sync"

	stashlog "github.com/stashapp/stash/pkg/plugin/common/log"
)

// Sink receives log messages
type Sink interface {
	Tracef(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Progress(progress float64)
}

var (
	mu   sync.RWMutex
	sink Sink = stashSink{}
)

// SetSink replaces the active sink. A nil sink restores the Stash plugin log.
func SetSink(s Sink) {
	mu.Lock()
	defer mu.Unlock()
	if s == nil {
		s = stashSink{}
	}
	sink = s
}

func current() Sink {
	mu.RLock()
	defer mu.RUnlock()
	return sink
}

// Tracef logs at trace level.
func Tracef(format string, args ...interface{}) {
	current().Tracef(format, args...)
}

// Debugf logs at debug level.
func Debugf(format string, args ...interface{}) {
	current().Debugf(format, args...)
}

// Infof logs at info level.
func Infof(format string, args ...interface{}) {
	current().Infof(format, args...)
}

// Info logs a message at info level.
func Info(msg string) {
	current().Infof("%s", msg)
}

// Warnf logs at warn level.
func Warnf(format string, args ...interface{}) {
	current().Warnf(format, args...)
}

// Errorf logs at error level.
func Errorf(format string, args ...interface{}) {
	current().Errorf(format, args...)
}

// Progress reports task progress between 0 and 1.
func Progress(progress float64) {
	current().Progress(progress)
}

// stashSink forwards to the Stash plugin log
type stashSink struct{}

func (stashSink) Tracef(format string, args ...interface{}) { stashlog.Tracef(format, args...) }
func (stashSink) Debugf(format string, args ...interface{}) { stashlog.Debugf(format, args...) }
func (stashSink) Infof(format string, args ...interface{})  { stashlog.Infof(format, args...) }
func (stashSink) Warnf(format string, args ...interface{})  { stashlog.Warnf(format, args...) }
func (stashSink) Errorf(format string, args ...interface{}) { stashlog.Errorf(format, args...) }
func (stashSink) Progress(progress float64)                 { stashlog.Progress(progress) }
