package log

import "github.com/sirupsen/logrus"

// LedgerLogAdapter implements badger.Logger on top of a logrus entry.
// Badger's own info chatter is demoted to debug so it stays out of progress output.
type LedgerLogAdapter struct {
	entry *logrus.Entry
}

// NewLedgerLogAdapter creates a new adapter
func NewLedgerLogAdapter(entry *logrus.Entry) *LedgerLogAdapter {
	return &LedgerLogAdapter{entry: entry}
}

// Errorf logs an error message
func (l *LedgerLogAdapter) Errorf(f string, v ...interface{}) { l.entry.Errorf(f, v...) }

// Warningf logs a warning message
func (l *LedgerLogAdapter) Warningf(f string, v ...interface{}) { l.entry.Warnf(f, v...) }

// Infof logs at debug level
func (l *LedgerLogAdapter) Infof(f string, v ...interface{}) { l.entry.Debugf(f, v...) }

// Debugf logs a debug message
func (l *LedgerLogAdapter) Debugf(f string, v ...interface{}) { l.entry.Debugf(f, v...) }
