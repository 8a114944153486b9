package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Options contains the configuration values of the logger system
type Options struct {
	Output io.Writer
	Level  string
	JSON   bool
}

// Init configures the standard logrus logger with the given options.
func Init(opt Options) error {
	level := opt.Level
	if level == "" {
		level = "info"
	}
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	out := opt.Output
	if out == nil {
		out = os.Stderr
	}
	l := logrus.StandardLogger()
	l.SetOutput(out)
	l.SetLevel(logLevel)
	if opt.JSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// WithNamespace returns a logger entry tagged with the given namespace.
func WithNamespace(nspace string) *logrus.Entry {
	return logrus.WithField("nspace", nspace)
}
