package log

import (
	"fmt"

	"github.com/sirupsen/logrus"
	waLog "go.mau.fi/whatsmeow/util/log"
)

type waLogger struct {
	entry *logrus.Entry
}

// WhatsMeow adapts logrus to the logger interface whatsmeow expects.
func WhatsMeow(module string) waLog.Logger {
	return &waLogger{entry: Component("whatsmeow").WithField("module", module)}
}

func (l *waLogger) Debugf(msg string, args ...interface{}) {
	l.entry.Debug(fmt.Sprintf(msg, args...))
}

func (l *waLogger) Infof(msg string, args ...interface{}) {
	l.entry.Info(fmt.Sprintf(msg, args...))
}

func (l *waLogger) Warnf(msg string, args ...interface{}) {
	l.entry.Warn(fmt.Sprintf(msg, args...))
}

func (l *waLogger) Errorf(msg string, args ...interface{}) {
	l.entry.Error(fmt.Sprintf(msg, args...))
}

func (l *waLogger) Sub(module string) waLog.Logger {
	current, _ := l.entry.Data["module"].(string)
	if current != "" {
		module = current + "/" + module
	}
	return &waLogger{entry: l.entry.WithField("module", module)}
}
