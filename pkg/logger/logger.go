// Package logger exposes the process-wide zerolog logger. The default sink is
// a console writer on stderr; Configure rebuilds the sink set from the "logs"
// configuration subtree and may be called again while workers are running.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var Log zerolog.Logger

// switchWriter lets Configure swap the sink set under a running logger.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *switchWriter) swap(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

var sink = &switchWriter{w: zerolog.ConsoleWriter{Out: os.Stderr}}

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	Log = zerolog.New(sink).With().Timestamp().Caller().Logger()
}

// Appender describes one log destination.
type Appender struct {
	Type string // "stdout" or "file"
	Path string // file path when Type == "file"
}

// Config is the logs subtree of the configuration file.
type Config struct {
	Level     string
	Appenders []Appender
}

// Configure rebuilds the sink set and global level. Files opened by a
// previous call are closed after the swap.
func Configure(cfg Config) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("logger: invalid level %q: %w", cfg.Level, err)
	}

	writers := make([]io.Writer, 0, len(cfg.Appenders))
	files := make([]*os.File, 0, len(cfg.Appenders))
	for _, a := range cfg.Appenders {
		switch a.Type {
		case "stdout":
			writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout})
		case "file":
			f, err := os.OpenFile(a.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				for _, old := range files {
					old.Close()
				}
				return fmt.Errorf("logger: open appender %s: %w", a.Path, err)
			}
			files = append(files, f)
			writers = append(writers, f)
		default:
			for _, old := range files {
				old.Close()
			}
			return fmt.Errorf("logger: unknown appender type %q", a.Type)
		}
	}
	if len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr})
	}

	zerolog.SetGlobalLevel(level)
	sink.swap(zerolog.MultiLevelWriter(writers...))

	closePrevious(files)
	return nil
}

var (
	openMu    sync.Mutex
	openFiles []*os.File
)

func closePrevious(next []*os.File) {
	openMu.Lock()
	prev := openFiles
	openFiles = next
	openMu.Unlock()
	for _, f := range prev {
		f.Close()
	}
}
