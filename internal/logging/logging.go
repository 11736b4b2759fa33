// Package logging builds the logrus loggers injected into every long-lived component.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New returns a logger tagged with component. LOG_LEVEL picks the level (default info) and
// LOG_FORMAT=json switches to JSON output; anything else is text.
func New(component string) logrus.FieldLogger {
	return NewWithOutput(component, os.Stdout, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

func NewWithOutput(component string, w io.Writer, level, format string) logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(w)

	lv, err := logrus.ParseLevel(level)
	if err != nil {
		lv = logrus.InfoLevel
	}
	l.SetLevel(lv)

	if strings.ToLower(format) == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l.WithField("component", component)
}

// Discard is a logger that drops everything. Tests use it.
func Discard() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
