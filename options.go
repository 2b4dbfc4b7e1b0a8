// Package git is the root package: the Repository façade (C7) and the
// revision resolver (C8) built on top of objectdb and refdb.
package git

import (
	"github.com/sirupsen/logrus"
)

// Options configures Open. Zero-valued fields are filled from
// DefaultOptions by mergo.Merge, so callers only need to set what they
// care about.
type Options struct {
	// Logger receives diagnostic events (the file backend's lock-retry
	// backoff and lock-acquisition failures) that have no other observable
	// surface. Defaults to a logger with output discarded.
	Logger *logrus.Entry
}

// DefaultOptions is merged into any zero-valued field of the Options
// passed to Open.
var DefaultOptions = Options{
	Logger: discardLogger(),
}

func discardLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(logrusDiscard{})
	return logrus.NewEntry(l)
}

type logrusDiscard struct{}

func (logrusDiscard) Write(p []byte) (int, error) { return len(p), nil }
