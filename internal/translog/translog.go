// Package translog provides asynchronous NDJSON transcript logging.
//
// Events are queued to a background writer so logging never blocks a
// submission. Each user/session pair gets its own NDJSON file; an optional
// global file aggregates every event.
package translog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Event is one logged transcript entry.
type Event struct {
	Timestamp string         `json:"ts"`
	UserID    string         `json:"user_id"`
	SessionID string         `json:"session_id"`
	Channel   string         `json:"channel"`
	Direction string         `json:"direction"`
	EventType string         `json:"event_type"`
	Content   string         `json:"content"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Logger records transcript events.
type Logger interface {
	Log(event Event)
	Close() error
}

// Config controls the transcript logger.
type Config struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// New creates a transcript logger. When disabled, a no-op logger is returned.
func New(cfg Config, logger *slog.Logger) (Logger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled {
		return NopLogger{}, nil
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create transcript log directory: %w", err)
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1000
	}

	l := &fileLogger{
		cfg:    cfg,
		logger: logger,
		queue:  make(chan Event, queueSize),
		done:   make(chan struct{}),
	}
	l.wg.Add(1)
	go l.writeLoop()
	return l, nil
}

// NopLogger discards all events.
type NopLogger struct{}

// Log discards the event.
func (NopLogger) Log(Event) {}

// Close is a no-op.
func (NopLogger) Close() error { return nil }

type fileLogger struct {
	cfg    Config
	logger *slog.Logger
	queue  chan Event
	done   chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// Log enqueues an event for async writing. Events are dropped, with a log
// line, when the queue is full and silently once the logger is closed:
// transcript logging must never block or fail a submit.
func (l *fileLogger) Log(event Event) {
	select {
	case <-l.done:
		return
	default:
	}
	select {
	case l.queue <- event:
	case <-l.done:
	default:
		l.logger.Warn("transcript log queue full, dropping event",
			"user_id", event.UserID,
			"session_id", event.SessionID,
			"event_type", event.EventType,
		)
	}
}

// Close signals shutdown and waits for the writer to drain queued events.
// The queue channel is never closed: a straggler Log, such as a hesitation
// timer firing mid-shutdown, must drop its event rather than panic.
func (l *fileLogger) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
	})
	l.wg.Wait()
	return nil
}

func (l *fileLogger) writeLoop() {
	defer l.wg.Done()
	for {
		select {
		case event := <-l.queue:
			l.write(event)
		case <-l.done:
			for {
				select {
				case event := <-l.queue:
					l.write(event)
				default:
					return
				}
			}
		}
	}
}

func (l *fileLogger) write(event Event) {
	line, err := json.Marshal(event)
	if err != nil {
		l.logger.Warn("failed to marshal transcript event", "error", err)
		return
	}
	line = append(line, '\n')

	dir := filepath.Join(l.cfg.Dir, sanitizePathComponent(event.UserID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		l.logger.Warn("failed to create transcript session directory", "error", err)
		return
	}
	path := filepath.Join(dir, sanitizePathComponent(event.SessionID)+".ndjson")
	if err := appendFile(path, line); err != nil {
		l.logger.Warn("failed to append transcript event", "path", path, "error", err)
	}

	if l.cfg.GlobalEnabled && l.cfg.GlobalPath != "" {
		if err := appendFile(l.cfg.GlobalPath, line); err != nil {
			l.logger.Warn("failed to append global transcript event", "error", err)
		}
	}
}

func appendFile(path string, line []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// sanitizePathComponent keeps ids safe to use as file names.
func sanitizePathComponent(s string) string {
	if s == "" {
		return "unknown"
	}
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		case r == '-' || r == '_' || r == '.' || r == ':':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
