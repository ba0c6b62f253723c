package nact

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// BasicLogger is the logging interface used throughout nact.  It is
// deliberately small so that most logging libraries can be adapted to it.
type BasicLogger interface {
	Debug(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
}

// StdLogger is implmented by the base library log.Logger
type StdLogger interface {
	Print(v ...interface{})
}

type wrappedStdLogger struct {
	log StdLogger
}

// LoggerFromStd adapts a log.Logger (or anything else with Print)
// to be a BasicLogger.  All levels are printed.
func LoggerFromStd(log StdLogger) BasicLogger {
	return wrappedStdLogger{log: log}
}

func (std wrappedStdLogger) Error(msg string, fields ...map[string]interface{}) {
	if len(fields) == 0 {
		std.log.Print(msg)
		return
	}
	vals := make([]interface{}, 1, len(fields)*4+1)
	vals[0] = msg
	for _, m := range fields {
		for k, v := range m {
			vals = append(vals, " "+k+"="+fmt.Sprint(v))
		}
	}
	std.log.Print(vals...)
}

func (std wrappedStdLogger) Warn(msg string, fields ...map[string]interface{}) {
	std.Error(msg, fields...)
}

func (std wrappedStdLogger) Debug(msg string, fields ...map[string]interface{}) {
	std.Error(msg, fields...)
}

type logrusLogger struct {
	log logrus.FieldLogger
}

// LoggerFromLogrus adapts a logrus logger (or entry) to be a BasicLogger.
// Fields are passed through as logrus.Fields.
func LoggerFromLogrus(log logrus.FieldLogger) BasicLogger {
	return logrusLogger{log: log}
}

func (l logrusLogger) with(fields []map[string]interface{}) logrus.FieldLogger {
	if len(fields) == 0 {
		return l.log
	}
	f := make(logrus.Fields)
	for _, m := range fields {
		for k, v := range m {
			f[k] = v
		}
	}
	return l.log.WithFields(f)
}

func (l logrusLogger) Error(msg string, fields ...map[string]interface{}) {
	l.with(fields).Error(msg)
}

func (l logrusLogger) Warn(msg string, fields ...map[string]interface{}) {
	l.with(fields).Warn(msg)
}

func (l logrusLogger) Debug(msg string, fields ...map[string]interface{}) {
	l.with(fields).Debug(msg)
}

// NoLogger returns a BasicLogger that discards all inputs
func NoLogger() BasicLogger {
	return nilLogger{}
}

type nilLogger struct{}

var _ BasicLogger = nilLogger{}

func (nilLogger) Error(msg string, fields ...map[string]interface{}) {}
func (nilLogger) Warn(msg string, fields ...map[string]interface{})  {}
func (nilLogger) Debug(msg string, fields ...map[string]interface{}) {}
