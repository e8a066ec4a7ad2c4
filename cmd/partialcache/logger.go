package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/bool64/ctxd"
)

// NewLogger creates contextualized logger with the level from PARTIALCACHE_LOG, default ERROR.
func NewLogger(w io.Writer) ctxd.Logger {
	level := strings.ToUpper(os.Getenv("PARTIALCACHE_LOG"))
	if level == "" {
		level = "ERROR"
	}

	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = log.ErrorLevel
	}

	return &apexLogger{
		l: &log.Logger{
			Handler: &textHandler{w: w},
			Level:   lvl,
		},
	}
}

// apexLogger adapts apex logger to ctxd.Logger.
type apexLogger struct {
	l *log.Logger
}

func (a *apexLogger) entry(keysAndValues []interface{}) *log.Entry {
	fields := make(log.Fields, len(keysAndValues)/2)

	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}

	return a.l.WithFields(fields)
}

func (a *apexLogger) Debug(_ context.Context, msg string, keysAndValues ...interface{}) {
	a.entry(keysAndValues).Debug(msg)
}

func (a *apexLogger) Info(_ context.Context, msg string, keysAndValues ...interface{}) {
	a.entry(keysAndValues).Info(msg)
}

// Important messages are logged with warn level to pass default filtering.
func (a *apexLogger) Important(_ context.Context, msg string, keysAndValues ...interface{}) {
	a.entry(keysAndValues).Warn(msg)
}

func (a *apexLogger) Warn(_ context.Context, msg string, keysAndValues ...interface{}) {
	a.entry(keysAndValues).Warn(msg)
}

func (a *apexLogger) Error(_ context.Context, msg string, keysAndValues ...interface{}) {
	a.entry(keysAndValues).Error(msg)
}

// textHandler formats log messages as single lines.
type textHandler struct {
	mu sync.Mutex
	w  io.Writer
}

// HandleLog implements the log.Handler interface.
func (h *textHandler) HandleLog(e *log.Entry) error {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}

	sort.Strings(names)

	var b strings.Builder

	b.WriteString(time.Now().Format("2006-01-02 15:04:05"))
	b.WriteString(" ")
	b.WriteString(strings.ToUpper(e.Level.String())[:1])
	b.WriteString(" ")
	b.WriteString(e.Message)

	for _, k := range names {
		fmt.Fprintf(&b, " %s=%v", k, e.Fields[k])
	}

	b.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := io.WriteString(h.w, b.String())

	return err
}
