package admission

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Denial reasons.
const (
	ReasonRateLimited        = "rate_limited"
	ReasonRequestTokensLimit = "request_token_limit"
	ReasonSessionTokensLimit = "session_token_limit"
	ReasonInvalidTokenCount  = "invalid_token_count"
)

// Unlimited is reported as Remaining when the corresponding limit is disabled.
const Unlimited = -1

// Config configures the admission controller. A zero limit disables that check.
type Config struct {
	MaxRequestsPerWindow int           `json:"max_requests_per_window"`
	Window               time.Duration `json:"window"`
	MaxTokensPerRequest  int           `json:"max_tokens_per_request"`
	MaxTokensPerSession  int           `json:"max_tokens_per_session"`
	// Window defaults to one minute when not positive.
	// IdleTTL is how long a key may stay untouched before Sweep considers it.
	// Only keys with an empty window and no charged tokens are evicted.
	// Defaults to 10x Window.
	IdleTTL time.Duration `json:"idle_ttl"`
	// SweepInterval is the ticker period used by Start. Defaults to IdleTTL.
	SweepInterval time.Duration `json:"sweep_interval"`
}

// DefaultConfig returns a configuration allowing 60 requests per minute with no token limits.
func DefaultConfig() Config {
	return Config{
		MaxRequestsPerWindow: 60,
		Window:               time.Minute,
	}
}

// Decision is the result of a request-window check.
type Decision struct {
	Allowed    bool          `json:"allowed"`
	Remaining  int           `json:"remaining"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Reason     string        `json:"reason,omitempty"`
}

// TokenDecision is the result of a token-quota check.
type TokenDecision struct {
	Allowed   bool   `json:"allowed"`
	Used      int    `json:"used"`
	Remaining int    `json:"remaining"`
	Reason    string `json:"reason,omitempty"`
}

// Status is a point-in-time view of one key.
type Status struct {
	Key               string    `json:"key"`
	RequestsInWindow  int       `json:"requests_in_window"`
	RemainingRequests int       `json:"remaining_requests"`
	TokensUsed        int       `json:"tokens_used"`
	RemainingTokens   int       `json:"remaining_tokens"`
	LastSeen          time.Time `json:"last_seen,omitempty"`
}

// Stats contains controller-wide counters.
type Stats struct {
	Keys          int   `json:"keys"`
	Allowed       int64 `json:"allowed"`
	Denied        int64 `json:"denied"`
	TokensAllowed int64 `json:"tokens_allowed"`
	TokensDenied  int64 `json:"tokens_denied"`
	Evicted       int64 `json:"evicted"`
}

// keyState holds the sliding-window instants and the token total of one key.
// evicted is set under mu when the state leaves the map; holders of a stale
// pointer must look the key up again.
type keyState struct {
	mu       sync.Mutex
	requests []time.Time
	tokens   int
	lastSeen time.Time
	evicted  bool
}

// Option customizes a Controller.
type Option func(*Controller)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Controller enforces per-key request windows and token quotas.
// The map lock is held only to find or create a key's state; mutations
// happen under the per-key lock so unrelated keys never contend.
type Controller struct {
	cfg    Config
	now    func() time.Time
	logger *zap.Logger

	mu     sync.Mutex
	states map[string]*keyState

	allowed       atomic.Int64
	denied        atomic.Int64
	tokensAllowed atomic.Int64
	tokensDenied  atomic.Int64
	evicted       atomic.Int64

	startOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewController creates an admission controller.
func NewController(cfg Config, opts ...Option) *Controller {
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * cfg.Window
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = cfg.IdleTTL
	}

	c := &Controller{
		cfg:    cfg,
		now:    time.Now,
		logger: zap.NewNop(),
		states: make(map[string]*keyState),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "admission_controller"))
	return c
}

// Config returns the effective configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// TryAcquire records one request for key if the sliding window has room.
func (c *Controller) TryAcquire(key string) Decision {
	limit := c.cfg.MaxRequestsPerWindow
	if limit <= 0 {
		c.allowed.Add(1)
		return Decision{Allowed: true, Remaining: Unlimited}
	}

	var d Decision
	c.withState(key, func(st *keyState, now time.Time) {
		st.purge(now.Add(-c.cfg.Window))

		if len(st.requests) >= limit {
			d = Decision{
				Allowed:    false,
				Remaining:  0,
				RetryAfter: st.requests[0].Add(c.cfg.Window).Sub(now),
				Reason:     ReasonRateLimited,
			}
			return
		}

		d = Decision{Allowed: true, Remaining: limit - len(st.requests) - 1}
		st.requests = append(st.requests, now)
	})

	if d.Allowed {
		c.allowed.Add(1)
	} else {
		c.denied.Add(1)
		c.logger.Debug("request window exhausted",
			zap.String("key", key),
			zap.Duration("retry_after", d.RetryAfter))
	}
	return d
}

// TryUseTokens charges n tokens to key's session total if both the
// per-request and the per-session limits allow it. A denial leaves the
// total unchanged.
func (c *Controller) TryUseTokens(key string, n int) TokenDecision {
	if n < 0 {
		c.tokensDenied.Add(1)
		return TokenDecision{Allowed: false, Reason: ReasonInvalidTokenCount}
	}
	if limit := c.cfg.MaxTokensPerRequest; limit > 0 && n > limit {
		c.tokensDenied.Add(1)
		c.logger.Debug("request token limit exceeded",
			zap.String("key", key), zap.Int("tokens", n), zap.Int("limit", limit))
		used := c.tokensUsed(key)
		return TokenDecision{Allowed: false, Used: used, Remaining: c.tokensRemaining(used), Reason: ReasonRequestTokensLimit}
	}

	var d TokenDecision
	c.withState(key, func(st *keyState, _ time.Time) {
		session := c.cfg.MaxTokensPerSession
		if session > 0 && st.tokens+n > session {
			d = TokenDecision{Allowed: false, Used: st.tokens, Remaining: session - st.tokens, Reason: ReasonSessionTokensLimit}
			return
		}
		st.tokens += n
		d = TokenDecision{Allowed: true, Used: st.tokens, Remaining: c.tokensRemaining(st.tokens)}
	})

	if d.Allowed {
		c.tokensAllowed.Add(1)
	} else {
		c.tokensDenied.Add(1)
		c.logger.Debug("session token quota exceeded",
			zap.String("key", key), zap.Int("tokens", n), zap.Int("used", d.Used))
	}
	return d
}

// GetStatus reports the current state of key without creating it.
func (c *Controller) GetStatus(key string) Status {
	status := Status{
		Key:               key,
		RemainingRequests: c.requestsRemaining(0),
		RemainingTokens:   c.tokensRemaining(0),
	}

	c.mu.Lock()
	st, ok := c.states[key]
	c.mu.Unlock()
	if !ok {
		return status
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.evicted {
		return status
	}

	cutoff := c.now().Add(-c.cfg.Window)
	for _, t := range st.requests {
		if t.After(cutoff) {
			status.RequestsInWindow++
		}
	}
	status.RemainingRequests = c.requestsRemaining(status.RequestsInWindow)
	status.TokensUsed = st.tokens
	status.RemainingTokens = c.tokensRemaining(st.tokens)
	status.LastSeen = st.lastSeen
	return status
}

// Reset forgets all state for key.
func (c *Controller) Reset(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st, ok := c.states[key]; ok {
		st.mu.Lock()
		st.evicted = true
		st.mu.Unlock()
		delete(c.states, key)
	}
}

// Sweep evicts keys idle for longer than IdleTTL and returns how many were removed.
// A key that still carries a session token total is only compacted: the
// quota is a running total and lives until Reset.
// Keys whose lock is held by an in-flight check are skipped until the next sweep.
func (c *Controller) Sweep() int {
	now := c.now()
	cutoff := now.Add(-c.cfg.IdleTTL)
	windowStart := now.Add(-c.cfg.Window)

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, st := range c.states {
		if !st.mu.TryLock() {
			continue
		}
		if st.lastSeen.Before(cutoff) {
			st.purge(windowStart)
			if st.tokens == 0 && len(st.requests) == 0 {
				st.evicted = true
				delete(c.states, key)
				removed++
			}
		}
		st.mu.Unlock()
	}

	if removed > 0 {
		c.evicted.Add(int64(removed))
		c.logger.Debug("idle admission state evicted", zap.Int("count", removed), zap.Int("remaining", len(c.states)))
	}
	return removed
}

// Start runs Sweep on a ticker until ctx is done or Close is called.
func (c *Controller) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		go func() {
			defer close(c.done)

			ticker := time.NewTicker(c.cfg.SweepInterval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-c.stop:
					return
				case <-ticker.C:
					c.Sweep()
				}
			}
		}()
	})
}

// Close stops the sweeper started by Start. It is safe to call more than once.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		close(c.stop)
	})
	started := true
	c.startOnce.Do(func() { started = false })
	if started {
		<-c.done
	}
	return nil
}

// Stats returns controller-wide counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	keys := len(c.states)
	c.mu.Unlock()

	return Stats{
		Keys:          keys,
		Allowed:       c.allowed.Load(),
		Denied:        c.denied.Load(),
		TokensAllowed: c.tokensAllowed.Load(),
		TokensDenied:  c.tokensDenied.Load(),
		Evicted:       c.evicted.Load(),
	}
}

// withState runs fn under the per-key lock, retrying when the state was
// evicted between lookup and lock.
func (c *Controller) withState(key string, fn func(st *keyState, now time.Time)) {
	for {
		st := c.state(key)

		st.mu.Lock()
		if st.evicted {
			st.mu.Unlock()
			continue
		}
		now := c.now()
		fn(st, now)
		st.lastSeen = now
		st.mu.Unlock()
		return
	}
}

func (c *Controller) state(key string) *keyState {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.states[key]
	if !ok {
		st = &keyState{requests: make([]time.Time, 0, 4)}
		c.states[key] = st
	}
	return st
}

func (c *Controller) tokensUsed(key string) int {
	c.mu.Lock()
	st, ok := c.states[key]
	c.mu.Unlock()
	if !ok {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.evicted {
		return 0
	}
	return st.tokens
}

func (c *Controller) requestsRemaining(count int) int {
	if c.cfg.MaxRequestsPerWindow <= 0 {
		return Unlimited
	}
	if r := c.cfg.MaxRequestsPerWindow - count; r > 0 {
		return r
	}
	return 0
}

func (c *Controller) tokensRemaining(used int) int {
	if c.cfg.MaxTokensPerSession <= 0 {
		return Unlimited
	}
	if r := c.cfg.MaxTokensPerSession - used; r > 0 {
		return r
	}
	return 0
}

// purge drops instants not after cutoff. Instants are appended in clock
// order, so the survivors are a suffix.
func (st *keyState) purge(cutoff time.Time) {
	i := 0
	for i < len(st.requests) && !st.requests[i].After(cutoff) {
		i++
	}
	if i > 0 {
		st.requests = append(st.requests[:0], st.requests[i:]...)
	}
}
