package mlog

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Log wraps logrus.Logger and holds information of logging file.
type Log struct {
	*logrus.Logger

	file     *os.File
	location string
	mu       sync.Mutex
}

// New creates Log object.
// TODO: logging with linux logrotate.
func New(location string) (*Log, error) {
	l := &Log{}

	l.Logger = logrus.New()
	l.location = location

	if l.location == "stderr" {
		l.Out = os.Stderr
		l.file = nil
	} else {
		f, err := os.OpenFile(location, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
		if err != nil {
			return nil, err
		}
		l.Out = f
		l.file = f
	}

	return l, nil
}

// Close closes the logging file, if any.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}

	err := l.file.Close()
	l.file = nil
	return err
}

var (
	global   *Log
	globalMu sync.Mutex
)

// Init sets up the process-wide logger with the given location.
// Location "stderr" logs to the standard error stream.
func Init(location string) error {
	l, err := New(location)
	if err != nil {
		return err
	}

	globalMu.Lock()
	defer globalMu.Unlock()

	if global != nil {
		global.Close()
	}
	global = l

	return nil
}

func getGlobal() *Log {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global == nil {
		// Not initialized yet; fall back to stderr so early callers
		// and tests are never silenced.
		global, _ = New("stderr")
	}
	return global
}

// GetPackageLogger returns a logger annotated with the package name.
func GetPackageLogger(pkg string) *logrus.Entry {
	return getGlobal().WithField("package", pkg)
}

// GetMethodLogger returns a logger annotated with the calling method name.
func GetMethodLogger(logger *logrus.Entry, method string) *logrus.Entry {
	return logger.WithField("method", method)
}

// GetFunctionLogger returns a logger annotated with the calling function name.
func GetFunctionLogger(logger *logrus.Entry, function string) *logrus.Entry {
	return logger.WithField("function", function)
}
