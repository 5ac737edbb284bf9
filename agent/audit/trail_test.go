package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BaSui01/agentguard/internal/ctxkeys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memorySink struct {
	mu      sync.Mutex
	records []*Record
	err     error
	closed  bool
}

func (m *memorySink) Name() string { return "memory" }

func (m *memorySink) Write(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, r)
	return nil
}

func (m *memorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *memorySink) snapshot() []*Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Record(nil), m.records...)
}

type blockingSink struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	writes  atomic.Int64
}

func (b *blockingSink) Name() string { return "blocking" }

func (b *blockingSink) Write(_ context.Context, _ *Record) error {
	b.once.Do(func() { close(b.started) })
	<-b.release
	b.writes.Add(1)
	return nil
}

func (b *blockingSink) Close() error { return nil }

func testConfig(capacity int) Config {
	cfg := DefaultConfig()
	cfg.MaxInMemoryEntries = capacity
	return cfg
}

func TestTrail_LogFillsIdentity(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	cfg := testConfig(10)
	cfg.Now = func() time.Time { return fixed }
	trail := NewTrail(cfg, zap.NewNop())

	ctx := ctxkeys.WithRunID(context.Background(), "run-7")
	trail.Log(ctx, &Record{ActorKey: "alice", EventType: EventRunStart, Input: "hi"})

	got := trail.Query(nil)
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, fixed, got[0].Timestamp)
	assert.Equal(t, "run-7", got[0].RunID)
	assert.Equal(t, "hi", got[0].Input)
}

func TestTrail_LogDoesNotAliasCaller(t *testing.T) {
	trail := NewTrail(testConfig(10), nil)

	rec := &Record{ActorKey: "alice", EventType: EventRunEnd, TriggeredValidators: []string{"max_length"}}
	trail.Log(context.Background(), rec)
	rec.ActorKey = "mallory"
	rec.TriggeredValidators[0] = "changed"

	got := trail.Query(nil)
	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0].ActorKey)
	assert.Equal(t, []string{"max_length"}, got[0].TriggeredValidators)
	assert.Empty(t, rec.ID)

	got[0].ActorKey = "eve"
	assert.Equal(t, "alice", trail.Query(nil)[0].ActorKey)
}

func TestTrail_Disabled(t *testing.T) {
	cfg := testConfig(10)
	cfg.Enabled = false
	sink := &memorySink{}
	trail := NewTrail(cfg, nil, sink)

	trail.Log(context.Background(), &Record{ActorKey: "alice"})

	assert.False(t, trail.Enabled())
	assert.Equal(t, 0, trail.Len())
	assert.Empty(t, trail.Query(nil))
	require.NoError(t, trail.Close())
	assert.Empty(t, sink.snapshot())
}

func TestTrail_EvictsOldest(t *testing.T) {
	trail := NewTrail(testConfig(3), nil)
	for i := 0; i < 5; i++ {
		trail.Log(context.Background(), &Record{ActorKey: fmt.Sprintf("actor-%d", i)})
	}

	assert.Equal(t, 3, trail.Len())
	assert.Equal(t, 3, trail.Capacity())

	got := trail.Query(nil)
	require.Len(t, got, 3)
	assert.Equal(t, "actor-4", got[0].ActorKey)
	assert.Equal(t, "actor-3", got[1].ActorKey)
	assert.Equal(t, "actor-2", got[2].ActorKey)
}

func TestTrail_QueryFilter(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	trail := NewTrail(testConfig(100), nil)

	trail.Log(context.Background(), &Record{ActorKey: "alice", EventType: EventRunStart, Timestamp: base})
	trail.Log(context.Background(), &Record{ActorKey: "alice", EventType: EventRunEnd, Status: StatusSuccess, Timestamp: base.Add(time.Minute)})
	trail.Log(context.Background(), &Record{ActorKey: "bob", EventType: EventAdmissionDenied, Status: StatusRateLimited, Timestamp: base.Add(2 * time.Minute)})
	trail.Log(context.Background(), &Record{ActorKey: "alice", EventType: EventValidationBlocked, Status: StatusBlocked, Timestamp: base.Add(3 * time.Minute)})

	tests := []struct {
		name   string
		filter *Filter
		want   int
	}{
		{name: "nil filter", filter: nil, want: 4},
		{name: "by actor", filter: &Filter{ActorKey: "alice"}, want: 3},
		{name: "by event type", filter: &Filter{EventTypes: []EventType{EventRunStart, EventRunEnd}}, want: 2},
		{name: "by status", filter: &Filter{Statuses: []Status{StatusBlocked, StatusRateLimited}}, want: 2},
		{name: "since", filter: &Filter{Since: base.Add(2 * time.Minute)}, want: 2},
		{name: "until", filter: &Filter{Until: base.Add(time.Minute)}, want: 2},
		{name: "max results", filter: &Filter{MaxResults: 1}, want: 1},
		{name: "no match", filter: &Filter{ActorKey: "carol"}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, trail.Query(tt.filter), tt.want)
		})
	}

	assert.Equal(t, 3, trail.Count(&Filter{ActorKey: "alice", MaxResults: 1}))
	assert.Equal(t, EventValidationBlocked, trail.Query(&Filter{ActorKey: "alice"})[0].EventType)
}

func TestTrail_QueryDefaultLimit(t *testing.T) {
	trail := NewTrail(testConfig(500), nil)
	for i := 0; i < 150; i++ {
		trail.Log(context.Background(), &Record{ActorKey: "alice"})
	}
	assert.Len(t, trail.Query(&Filter{}), DefaultMaxResults)
	assert.Equal(t, 150, trail.Count(nil))
}

func TestTrail_RedactsBeforeStoring(t *testing.T) {
	cfg := testConfig(10)
	cfg.Redaction = RedactionPolicy{
		Input:    FieldPolicy{LogEnabled: false},
		Output:   FieldPolicy{LogEnabled: true, MaxContentLength: 20},
		ToolArgs: FieldPolicy{LogEnabled: true},
	}
	sink := &memorySink{}
	trail := NewTrail(cfg, nil, sink)

	trail.Log(context.Background(), &Record{
		ActorKey: "alice",
		Input:    "secret input",
		Output:   "abcdefghijklmnopqrstuvwxyz",
		ToolArgs: `{"q":"x"}`,
	})
	require.NoError(t, trail.Close())

	got := trail.Query(nil)[0]
	assert.Equal(t, RedactedMarker, got.Input)
	assert.Equal(t, "abcdefghijklmnopqrst"+TruncatedMarker, got.Output)
	assert.Equal(t, `{"q":"x"}`, got.ToolArgs)

	exported := sink.snapshot()
	require.Len(t, exported, 1)
	assert.Equal(t, RedactedMarker, exported[0].Input)
}

func TestTrail_SinkFanOut(t *testing.T) {
	a, b := &memorySink{}, &memorySink{}
	failing := &memorySink{err: errors.New("disk full")}
	trail := NewTrail(testConfig(10), zap.NewNop(), a, failing, b)

	for i := 0; i < 3; i++ {
		trail.Log(context.Background(), &Record{ActorKey: "alice"})
	}
	require.NoError(t, trail.Close())

	assert.Len(t, a.snapshot(), 3)
	assert.Len(t, b.snapshot(), 3)
	assert.True(t, a.closed)
	assert.True(t, failing.closed)
	assert.Equal(t, int64(0), trail.Dropped())
}

func TestTrail_DropsWhenQueueFull(t *testing.T) {
	sink := &blockingSink{started: make(chan struct{}), release: make(chan struct{})}
	var dropped atomic.Int64

	cfg := testConfig(10)
	cfg.QueueSize = 1
	cfg.OnDrop = func(*Record) { dropped.Add(1) }
	trail := NewTrail(cfg, nil, sink)

	trail.Log(context.Background(), &Record{ActorKey: "first"})
	<-sink.started
	trail.Log(context.Background(), &Record{ActorKey: "queued"})
	trail.Log(context.Background(), &Record{ActorKey: "dropped"})

	assert.Equal(t, int64(1), trail.Dropped())
	assert.Equal(t, int64(1), dropped.Load())
	assert.Equal(t, 3, trail.Len(), "in-memory trail keeps every record")

	close(sink.release)
	require.NoError(t, trail.Close())
	assert.Equal(t, int64(2), sink.writes.Load())
}

func TestTrail_LogAfterClose(t *testing.T) {
	sink := &memorySink{}
	trail := NewTrail(testConfig(10), nil, sink)
	require.NoError(t, trail.Close())
	require.NoError(t, trail.Close())

	trail.Log(context.Background(), &Record{ActorKey: "late"})
	assert.Equal(t, 1, trail.Len())
	assert.Equal(t, int64(1), trail.Dropped())
	assert.Empty(t, sink.snapshot())
}

func TestTrail_ConcurrentLogAndQuery(t *testing.T) {
	sink := &memorySink{}
	trail := NewTrail(testConfig(50), nil, sink)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				trail.Log(context.Background(), &Record{ActorKey: fmt.Sprintf("w%d", w)})
				_ = trail.Query(&Filter{ActorKey: "w0"})
			}
		}(w)
	}
	wg.Wait()
	require.NoError(t, trail.Close())

	assert.Equal(t, 50, trail.Len())
	assert.Equal(t, int64(800), int64(len(sink.snapshot()))+trail.Dropped())
}
