package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sink durably exports audit records. Records handed to a sink are shared
// and must not be modified.
type Sink interface {
	Name() string
	Write(ctx context.Context, r *Record) error
	Close() error
}

// dispatcher feeds sinks from a bounded queue so that Log never blocks.
type dispatcher struct {
	sinks   []Sink
	queue   chan *Record
	timeout time.Duration
	onDrop  func(*Record)
	logger  *zap.Logger

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Int64
	failed  atomic.Int64
}

func newDispatcher(sinks []Sink, queueSize int, timeout time.Duration, onDrop func(*Record), logger *zap.Logger) *dispatcher {
	if queueSize <= 0 {
		queueSize = 1000
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	d := &dispatcher{
		sinks:   sinks,
		queue:   make(chan *Record, queueSize),
		timeout: timeout,
		onDrop:  onDrop,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// enqueue performs a non-blocking send.
func (d *dispatcher) enqueue(r *Record) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(r, "closed")
		return
	}
	select {
	case d.queue <- r:
	default:
		d.drop(r, "queue full")
	}
}

func (d *dispatcher) drop(r *Record, reason string) {
	d.dropped.Add(1)
	if d.onDrop != nil {
		d.onDrop(r)
	}
	d.logger.Warn("audit record dropped for sinks",
		zap.String("record_id", r.ID),
		zap.String("reason", reason))
}

func (d *dispatcher) run() {
	defer close(d.done)
	for r := range d.queue {
		d.fanOut(r)
	}
}

// fanOut writes r to every sink concurrently. One failing sink does not
// cancel the others.
func (d *dispatcher) fanOut(r *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	var g errgroup.Group
	for _, s := range d.sinks {
		g.Go(func() error {
			if err := s.Write(ctx, r); err != nil {
				d.logger.Error("audit sink write failed",
					zap.String("sink", s.Name()),
					zap.String("record_id", r.ID),
					zap.Error(err))
				return fmt.Errorf("%s: %w", s.Name(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		d.failed.Add(1)
	}
}

func (d *dispatcher) close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.done

	var errs []error
	for _, s := range d.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", s.Name(), err))
		}
	}
	d.logger.Info("audit sinks closed",
		zap.Int("sinks", len(d.sinks)),
		zap.Int64("dropped", d.dropped.Load()),
		zap.Int64("failed", d.failed.Load()))
	return errors.Join(errs...)
}
