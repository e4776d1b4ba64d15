package log

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// NewConsoleLogger builds the CLI logger: progress lines go to stdout,
// error-level lines go to stderr.
func NewConsoleLogger(stdout, stderr io.Writer, level logrus.Level) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(level)
	log.SetOutput(io.Discard) // Hooks do the writing
	log.AddHook(&writerHook{
		out:    stdout,
		levels: []logrus.Level{logrus.WarnLevel, logrus.InfoLevel, logrus.DebugLevel, logrus.TraceLevel},
	})
	log.AddHook(&writerHook{
		out:    stderr,
		levels: []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel},
	})
	return log
}

// writerHook writes formatted entries of selected levels to a writer
type writerHook struct {
	mu     sync.Mutex
	out    io.Writer
	levels []logrus.Level
}

func (h *writerHook) Levels() []logrus.Level { return h.levels }

func (h *writerHook) Fire(entry *logrus.Entry) error {
	line, err := entry.Logger.Formatter.Format(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.out.Write(line)
	return err
}
