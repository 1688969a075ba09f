package ipc

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/iarcanar99/MBB-Dalamud-sub001/domain"
	"github.com/iarcanar99/MBB-Dalamud-sub001/internal/filter"
	"github.com/iarcanar99/MBB-Dalamud-sub001/internal/framing"
	"github.com/iarcanar99/MBB-Dalamud-sub001/internal/metrics"
)

const (
	defaultConnectWait    = 10 * time.Second
	defaultReadBufferSize = 4096
	defaultIdlePoll       = 10 * time.Millisecond
	defaultPollInterval   = 100 * time.Millisecond
	defaultStopTimeout    = 2 * time.Second
)

// ErrAlreadyRunning is returned by Start on a running manager
var ErrAlreadyRunning = errors.New("connection manager already running")

// EventHandler receives every event that passed the chat filter.
// It runs on the read loop and must not block.
type EventHandler func(event domain.IngestEvent)

// Config holds configuration for the connection Manager
type Config struct {
	ConnectWait    time.Duration // bounded wait for the endpoint to appear
	ReadBufferSize int
	IdlePoll       time.Duration // sleep after a zero-byte read
	PollInterval   time.Duration // re-check period while the backoff gate is closed
	StopTimeout    time.Duration
	Backoff        BackoffPolicy
}

func (c Config) withDefaults() Config {
	if c.ConnectWait <= 0 {
		c.ConnectWait = defaultConnectWait
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = defaultReadBufferSize
	}
	if c.IdlePoll <= 0 {
		c.IdlePoll = defaultIdlePoll
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = defaultStopTimeout
	}
	c.Backoff = c.Backoff.withDefaults()
	return c
}

// Manager owns the plugin endpoint: it connects, reads, classifies
// failures and retries with backoff for as long as it is running.
type Manager struct {
	cfg     Config
	dialer  Dialer
	handler EventHandler
	decoder *framing.Decoder
	logger  *zap.Logger
	now     func() time.Time

	mu    sync.RWMutex
	state ConnectionState
	conn  io.ReadCloser

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}

	// degradedLog throttles repeated warnings while the plugin stays away
	degradedLog rate.Sometimes
}

// NewManager creates a new connection manager
func NewManager(cfg Config, dialer Dialer, handler EventHandler, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if handler == nil {
		handler = func(domain.IngestEvent) {}
	}
	return &Manager{
		cfg:         cfg.withDefaults(),
		dialer:      dialer,
		handler:     handler,
		decoder:     framing.NewDecoder(logger),
		logger:      logger,
		now:         time.Now,
		state:       ConnectionState{Phase: PhaseDisconnected, Health: HealthHealthy},
		degradedLog: rate.Sometimes{First: 1, Interval: 30 * time.Second},
	}
}

// Start launches the read loop in the background
func (m *Manager) Start(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	m.mu.Lock()
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	go m.run(ctx, done)

	m.logger.Info("Connection manager started")
	return nil
}

// Stop stops the read loop, closing the endpoint to unblock a pending read,
// and waits up to StopTimeout for the loop to exit.
func (m *Manager) Stop() {
	if !m.running.CompareAndSwap(true, false) {
		return
	}

	m.mu.RLock()
	cancel, done := m.cancel, m.done
	m.mu.RUnlock()

	cancel()
	m.closeConn()

	select {
	case <-done:
		m.logger.Info("Connection manager stopped")
	case <-time.After(m.cfg.StopTimeout):
		m.logger.Warn("Read loop did not exit in time",
			zap.Duration("timeout", m.cfg.StopTimeout))
	}
}

// Running reports whether Start has been called without a matching Stop
func (m *Manager) Running() bool {
	return m.running.Load()
}

// IsConnected reports whether an endpoint handle is currently open
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Phase == PhaseConnected
}

// State returns a copy of the connection state
func (m *Manager) State() ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Stats returns the status snapshot
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.state
	stats := Stats{
		Connected:           s.Phase == PhaseConnected,
		Phase:               s.Phase,
		Health:              s.Health,
		Attempts:            s.TotalAttempts,
		Successes:           s.SuccessfulConnections,
		Failures:            s.TotalFailures,
		ConsecutiveFailures: s.ConsecutiveFailures,
		MessagesReceived:    s.MessagesReceived,
		BackoffUntil:        s.BackoffUntil,
	}
	if stats.Connected && !s.ConnectedAt.IsZero() {
		stats.UptimeSeconds = m.now().Sub(s.ConnectedAt).Seconds()
	}
	return stats
}

// Reset clears the failure streak and the backoff gate. Used after the
// user restarts the plugin.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.state.ConsecutiveFailures = 0
	m.state.Health = HealthHealthy
	m.state.BackoffUntil = time.Time{}
	if m.state.Phase == PhaseBackingOff {
		m.state.Phase = PhaseDisconnected
	}
	m.mu.Unlock()

	m.logger.Info("Connection state reset")
}

func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer m.setPhase(PhaseDisconnected)

	for m.running.Load() && ctx.Err() == nil {
		if until := m.backoffUntil(); m.now().Before(until) {
			m.setPhase(PhaseBackingOff)
			if !sleep(ctx, m.cfg.PollInterval) {
				return
			}
			continue
		}

		conn, err := m.connect(ctx)
		if err != nil {
			if !m.running.Load() || ctx.Err() != nil {
				return
			}
			if !sleep(ctx, m.recordFailure(err)) {
				return
			}
			continue
		}

		err = m.readLoop(ctx, conn)
		m.closeConn()
		m.decoder.Reset()

		if !m.running.Load() || ctx.Err() != nil {
			return
		}

		m.logger.Info("Disconnected from game plugin", zap.Error(err))
		if !sleep(ctx, m.recordFailure(err)) {
			return
		}
	}
}

func (m *Manager) connect(ctx context.Context) (io.ReadCloser, error) {
	m.mu.Lock()
	m.state.Phase = PhaseConnecting
	m.state.TotalAttempts++
	attempt := m.state.TotalAttempts
	m.mu.Unlock()
	metrics.ConnectionAttempts.Inc()

	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectWait)
	defer cancel()

	conn, err := m.dialer.Dial(dialCtx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if !m.running.Load() {
		m.mu.Unlock()
		conn.Close()
		return nil, context.Canceled
	}
	m.conn = conn
	m.state.Phase = PhaseConnected
	m.state.ConsecutiveFailures = 0
	m.state.Health = HealthHealthy
	m.state.BackoffUntil = time.Time{}
	m.state.SuccessfulConnections++
	m.state.ConnectedAt = m.now()
	m.state.LastError = ""
	m.mu.Unlock()
	metrics.Connected.Set(1)

	m.logger.Info("Connected to game plugin", zap.Int("attempt", attempt))
	return conn, nil
}

func (m *Manager) readLoop(ctx context.Context, conn io.Reader) error {
	buf := make([]byte, m.cfg.ReadBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			m.dispatch(m.decoder.Feed(buf[:n]))
		}
		if err != nil {
			return err
		}
		if n == 0 {
			// No data yet; the plugin has not written anything
			if !sleep(ctx, m.cfg.IdlePoll) {
				return ctx.Err()
			}
		}
	}
}

func (m *Manager) dispatch(events []domain.IngestEvent) {
	for _, event := range events {
		if !filter.Allow(event) {
			metrics.EventsReceived.WithLabelValues("filtered").Inc()
			m.logger.Debug("Filtered chat line",
				zap.Int("chatCode", event.ChatCode),
				zap.String("category", event.Category))
			continue
		}

		m.mu.Lock()
		m.state.MessagesReceived++
		m.mu.Unlock()
		metrics.EventsReceived.WithLabelValues("allowed").Inc()

		m.handler(event)
	}
}

// recordFailure updates the failure counters and returns how long the loop
// should sleep before retrying. In the Failed state the wait is enforced
// through the backoff gate instead and the returned delay is zero.
func (m *Manager) recordFailure(err error) time.Duration {
	m.mu.Lock()
	prevHealth := m.state.Health
	m.state.ConsecutiveFailures++
	m.state.TotalFailures++
	m.state.LastFailureAt = m.now()
	if err != nil {
		m.state.LastError = err.Error()
	}
	failures := m.state.ConsecutiveFailures
	health := m.cfg.Backoff.Health(failures)
	m.state.Health = health
	delay := m.cfg.Backoff.Delay(failures)
	if health == HealthFailed {
		m.state.BackoffUntil = m.state.LastFailureAt.Add(delay)
		m.state.Phase = PhaseBackingOff
	} else {
		m.state.Phase = PhaseDisconnected
	}
	m.mu.Unlock()
	metrics.ConnectionFailures.Inc()

	fields := []zap.Field{
		zap.Int("consecutiveFailures", failures),
		zap.Duration("retryIn", delay),
		zap.Error(err),
	}
	switch health {
	case HealthHealthy:
		m.logger.Debug("Game plugin endpoint not available yet", fields...)
	case HealthDegraded:
		m.degradedLog.Do(func() {
			m.logger.Warn("Game plugin endpoint still unavailable", fields...)
		})
	case HealthFailed:
		if prevHealth != HealthFailed {
			m.logger.Error("Game plugin connection failed repeatedly, backing off", fields...)
		}
		return 0
	}
	return delay
}

func (m *Manager) backoffUntil() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.BackoffUntil
}

func (m *Manager) setPhase(phase Phase) {
	m.mu.Lock()
	m.state.Phase = phase
	m.mu.Unlock()
}

func (m *Manager) closeConn() {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		metrics.Connected.Set(0)
		if err := conn.Close(); err != nil {
			m.logger.Debug("Failed to close endpoint", zap.Error(err))
		}
	}
}

// sleep waits for d or until ctx is done; it reports whether the full wait
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
