package cfb

import (
	"io"

	"github.com/sirupsen/logrus"
)

var logger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	l.Level = logrus.WarnLevel
	return l
}

// EnableDebug sends parser debug output to w.
func EnableDebug(w io.Writer) {
	logger.Out = w
	logger.SetLevel(logrus.DebugLevel)
}

// DisableDebug silences parser debug output again.
func DisableDebug() {
	logger.Out = io.Discard
	logger.SetLevel(logrus.WarnLevel)
}
