package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// ObservedLogs records every entry written through an observer logger.
type ObservedLogs struct {
	*observer.ObservedLogs
}

// ForRequest keeps the entries logged with the request scope of requestID.
func (o *ObservedLogs) ForRequest(requestID string) *observer.ObservedLogs {
	return o.Filter(func(e observer.LoggedEntry) bool {
		return e.ContextMap()["request_id"] == requestID
	})
}

// Mentions reports whether value occurs in any recorded message or field.
func (o *ObservedLogs) Mentions(value string) bool {
	for _, e := range o.All() {
		if strings.Contains(e.Message, value) {
			return true
		}
		for _, v := range e.ContextMap() {
			if strings.Contains(fmt.Sprint(v), value) {
				return true
			}
		}
	}
	return false
}

// NewObserverLogger returns a logger that records entries at level and above. An unknown level
// records everything.
func NewObserverLogger(level string) (*ZapLogger, *ObservedLogs) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.DebugLevel
	}

	core, logs := observer.New(lvl)
	return &ZapLogger{zap.New(core)}, &ObservedLogs{logs}
}
