package audit

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/agentguard/internal/ctxkeys"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Logger is the write side of the audit trail.
type Logger interface {
	Log(ctx context.Context, r *Record)
}

// Config configures a Trail.
type Config struct {
	Enabled            bool            `json:"enabled"`
	MaxInMemoryEntries int             `json:"max_in_memory_entries"`
	Redaction          RedactionPolicy `json:"redaction"`
	// QueueSize bounds the sink queue. Records are dropped for sinks when it is full.
	QueueSize int `json:"queue_size"`
	// SinkTimeout bounds one fan-out of a record to all sinks.
	SinkTimeout time.Duration `json:"sink_timeout"`
	// OnDrop is called for every record that could not be queued for sinks.
	OnDrop func(*Record) `json:"-"`
	// Now overrides the clock used for missing timestamps.
	Now func() time.Time `json:"-"`
}

// DefaultConfig returns an enabled trail keeping 10000 records.
func DefaultConfig() Config {
	return Config{
		Enabled:            true,
		MaxInMemoryEntries: 10000,
		Redaction:          DefaultRedactionPolicy(),
		QueueSize:          1000,
		SinkTimeout:        5 * time.Second,
	}
}

// Trail is a bounded, redaction-aware, in-memory audit store with optional
// asynchronous sinks. The oldest record is evicted once capacity is reached.
type Trail struct {
	enabled bool
	policy  RedactionPolicy
	now     func() time.Time
	logger  *zap.Logger

	mu   sync.RWMutex
	ring []*Record
	next int
	size int

	dispatcher *dispatcher
}

// NewTrail creates an audit trail. Sinks receive every stored record asynchronously.
func NewTrail(cfg Config, logger *zap.Logger, sinks ...Sink) *Trail {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxInMemoryEntries <= 0 {
		cfg.MaxInMemoryEntries = DefaultConfig().MaxInMemoryEntries
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	t := &Trail{
		enabled: cfg.Enabled,
		policy:  cfg.Redaction,
		now:     cfg.Now,
		logger:  logger.With(zap.String("component", "audit_trail")),
		ring:    make([]*Record, cfg.MaxInMemoryEntries),
	}
	if cfg.Enabled && len(sinks) > 0 {
		t.dispatcher = newDispatcher(sinks, cfg.QueueSize, cfg.SinkTimeout, cfg.OnDrop, t.logger)
	}
	return t
}

// Enabled reports whether Log stores anything.
func (t *Trail) Enabled() bool {
	return t.enabled
}

// Capacity returns the maximum number of records kept in memory.
func (t *Trail) Capacity() int {
	return len(t.ring)
}

// Log stores a redacted copy of r. The caller keeps ownership of r.
func (t *Trail) Log(ctx context.Context, r *Record) {
	if !t.enabled || r == nil {
		return
	}

	rec := r.Clone()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = t.now()
	}
	if rec.RunID == "" && ctx != nil {
		if runID, ok := ctxkeys.RunID(ctx); ok {
			rec.RunID = runID
		}
	}
	t.policy.Apply(rec)

	t.mu.Lock()
	t.ring[t.next] = rec
	t.next = (t.next + 1) % len(t.ring)
	if t.size < len(t.ring) {
		t.size++
	}
	t.mu.Unlock()

	if t.dispatcher != nil {
		t.dispatcher.enqueue(rec)
	}
}

// Query returns copies of matching records, newest first.
func (t *Trail) Query(filter *Filter) []*Record {
	limit := filter.limit()
	out := make([]*Record, 0)

	t.each(func(r *Record) bool {
		if filter.Matches(r) {
			out = append(out, r.Clone())
		}
		return len(out) < limit
	})
	return out
}

// Count returns the number of matching records, ignoring MaxResults.
func (t *Trail) Count(filter *Filter) int {
	n := 0
	t.each(func(r *Record) bool {
		if filter.Matches(r) {
			n++
		}
		return true
	})
	return n
}

// Len returns the number of records currently held.
func (t *Trail) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Dropped returns how many records were not delivered to sinks because the queue was full.
func (t *Trail) Dropped() int64 {
	if t.dispatcher == nil {
		return 0
	}
	return t.dispatcher.dropped.Load()
}

// Close drains the sink queue and closes all sinks.
func (t *Trail) Close() error {
	if t.dispatcher == nil {
		return nil
	}
	return t.dispatcher.close()
}

// each visits records newest first until fn returns false.
func (t *Trail) each(fn func(*Record) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := len(t.ring)
	for i := 1; i <= t.size; i++ {
		r := t.ring[(t.next-i+n)%n]
		if !fn(r) {
			return
		}
	}
}
