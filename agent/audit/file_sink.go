package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FileSinkConfig configures a FileSink.
type FileSinkConfig struct {
	Dir string
	// MaxFileSize triggers rotation once the current file reaches it, in bytes.
	MaxFileSize int64
	// RotateDaily starts a new file whenever the record date changes.
	RotateDaily bool
}

// FileSink appends records as JSON lines under Dir.
type FileSink struct {
	dir         string
	maxFileSize int64
	rotateDaily bool
	logger      *zap.Logger

	mu          sync.Mutex
	current     *os.File
	currentDate string
	seq         int
}

// NewFileSink creates the directory if needed.
func NewFileSink(cfg FileSinkConfig, logger *zap.Logger) (*FileSink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Dir == "" {
		cfg.Dir = "./audit_logs"
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 100 * 1024 * 1024
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}

	return &FileSink{
		dir:         cfg.Dir,
		maxFileSize: cfg.MaxFileSize,
		rotateDaily: cfg.RotateDaily,
		logger:      logger.With(zap.String("component", "audit_file_sink")),
	}, nil
}

// Name implements Sink.
func (f *FileSink) Name() string { return "file" }

// Write implements Sink.
func (f *FileSink) Write(_ context.Context, r *Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	date := r.Timestamp.Format("2006-01-02")
	switch {
	case f.current == nil:
		err = f.rotate(date)
	case f.rotateDaily && f.currentDate != date:
		err = f.rotate(date)
	default:
		if info, statErr := f.current.Stat(); statErr == nil && info.Size() >= f.maxFileSize {
			err = f.rotate(date)
		}
	}
	if err != nil {
		return err
	}

	if _, err := f.current.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	return nil
}

// Dir returns the directory files are written to.
func (f *FileSink) Dir() string {
	return f.dir
}

func (f *FileSink) rotate(date string) error {
	if f.current != nil {
		if err := f.current.Close(); err != nil {
			f.logger.Warn("close audit file", zap.Error(err))
		}
	}

	f.seq++
	name := filepath.Join(f.dir, fmt.Sprintf("audit_%s_%d_%d.jsonl", date, time.Now().UnixNano(), f.seq))
	file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		f.current = nil
		return fmt.Errorf("create audit file: %w", err)
	}

	f.current = file
	f.currentDate = date
	f.logger.Info("rotated audit file", zap.String("filename", name))
	return nil
}

// Close implements Sink.
func (f *FileSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.current == nil {
		return nil
	}
	err := f.current.Close()
	f.current = nil
	return err
}
