package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"whisperchat/backend/internal/models"
	"whisperchat/backend/internal/storage"

	"github.com/fatih/color"
)

// ConsoleLogger prints "<sender> sent <receiver>: <message>" with the names
// highlighted.
type ConsoleLogger struct {
	out      io.Writer
	sender   *color.Color
	receiver *color.Color
	message  *color.Color
	mu       sync.Mutex
}

// NewConsoleLogger writes to out, or to the colorable stdout when out is nil.
func NewConsoleLogger(out io.Writer) *ConsoleLogger {
	if out == nil {
		out = color.Output
	}
	return &ConsoleLogger{
		out:      out,
		sender:   color.New(color.FgCyan),
		receiver: color.New(color.FgGreen),
		message:  color.New(color.FgHiBlack),
	}
}

func (l *ConsoleLogger) Write(rec models.AuditRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := fmt.Fprintf(l.out, "%s sent %s: %s\n",
		l.sender.Sprint(rec.SenderName),
		l.receiver.Sprint(rec.Receiver()),
		l.message.Sprint(rec.Content),
	)
	return err
}

func (l *ConsoleLogger) Close() error { return nil }

// DiskLogger appends to one file per process start, named after the UTC start
// time. Every line carries that start time, not the send time.
type DiskLogger struct {
	path    string
	started string
	mu      sync.Mutex
	file    *os.File
}

// NewDiskLogger creates dir if needed. The file itself is created on the
// first write.
func NewDiskLogger(dir string, start time.Time) (*DiskLogger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating audit dir: %w", err)
	}
	started := start.UTC().Format(time.RFC3339)
	return &DiskLogger{
		path:    filepath.Join(dir, started+".log"),
		started: started,
	}, nil
}

// Path is the file records are appended to.
func (l *DiskLogger) Path() string { return l.path }

func (l *DiskLogger) Write(rec models.AuditRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening audit file: %w", err)
		}
		l.file = f
	}
	_, err := fmt.Fprintf(l.file, "[%s] %s sent %s: %s\n", l.started, rec.SenderName, rec.Receiver(), rec.Content)
	return err
}

func (l *DiskLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// StoreLogger saves records through storage and, when publish is set, fans
// them out on the Redis audit channel.
type StoreLogger struct {
	store   storage.Storage
	publish bool
	timeout time.Duration
}

func NewStoreLogger(store storage.Storage, publish bool) *StoreLogger {
	return &StoreLogger{store: store, publish: publish, timeout: 5 * time.Second}
}

func (l *StoreLogger) Write(rec models.AuditRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	if err := l.store.SaveAuditRecord(ctx, &rec); err != nil {
		return fmt.Errorf("saving audit record: %w", err)
	}
	if l.publish {
		if err := l.store.PublishAuditRecord(ctx, rec); err != nil {
			return fmt.Errorf("publishing audit record: %w", err)
		}
	}
	return nil
}

func (l *StoreLogger) Close() error { return nil }
