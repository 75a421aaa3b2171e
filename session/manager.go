package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/isdmx/codepad/apperr"
	"github.com/isdmx/codepad/gateway"
)

// StopConfirmation is returned by a successful Stop.
const StopConfirmation = "Container stopped successfully"

type trigger string

const (
	triggerExplicit trigger = "explicit"
	triggerExpiry   trigger = "expiry"
	triggerReplaced trigger = "replaced"
	triggerShutdown trigger = "shutdown"
)

// Config holds the lifecycle settings of a Manager
type Config struct {
	ControllerURL    string
	ProjectID        string
	MaxResponseBytes int64
	Expiry           time.Duration
	StopReplaced     bool
	StopOnShutdown   bool

	CleanupMaxRetries     int
	CleanupInitialBackoff time.Duration
	CleanupMaxBackoff     time.Duration
}

// Manager starts and stops controller sessions and guarantees every started
// container is stopped once its lifetime elapses.
//
// The registry is never held across a gateway call: each operation reads or
// writes it before the call and again after the reply, so concurrent starts,
// stops and expiries interleave safely.
type Manager struct {
	logger    *zap.Logger
	cfg       Config
	gateway   gateway.Caller
	registry  *Registry
	scheduler Scheduler
	alerter   Alerter
	metrics   *Metrics
	now       func() time.Time

	// ctx bounds timer-driven stops; it is cancelled by Shutdown.
	ctx    context.Context
	cancel context.CancelFunc
}

// Option defines a functional option for Manager
type Option func(*Manager)

// WithScheduler sets the Scheduler used for expiry timers and cleanup retries
func WithScheduler(s Scheduler) Option {
	return func(m *Manager) {
		m.scheduler = s
	}
}

// WithAlerter sets the Alerter notified of abandoned cleanups
func WithAlerter(a Alerter) Option {
	return func(m *Manager) {
		m.alerter = a
	}
}

// WithMetrics sets the Prometheus collectors
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithClock sets the time source for Handle.CreatedAt
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a Manager with a TimerScheduler and LogAlerter unless
// overridden by options.
func NewManager(logger *zap.Logger, cfg Config, gw gateway.Caller, registry *Registry, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		logger:    logger,
		cfg:       cfg,
		gateway:   gw,
		registry:  registry,
		scheduler: NewTimerScheduler(),
		alerter:   NewLogAlerter(logger),
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}

	for _, opt := range opts {
		opt(m)
	}
	registry.onResize(m.metrics.setLive)

	return m
}

// Start asks the controller for a new container for userID, registers it and
// arms its expiry. It returns the editor URL.
//
// Cancelling ctx does not abort the controller call once issued: a container
// created by the controller must always be registered so that it expires. The
// gateway timeout is the only bound on the call.
func (m *Manager) Start(ctx context.Context, userID string) (string, error) {
	const op = "start_session"
	if userID == "" {
		return "", apperr.InvalidArgument(op, "user_id must not be empty")
	}
	log := m.logger.With(zap.String("user_id", userID))
	log.Debug("session transition", zap.Stringer("state", StateRequested))

	payload, err := encodeStart(m.cfg.ProjectID, userID)
	if err != nil {
		return "", fmt.Errorf("%s: failed to encode payload: %w", op, err)
	}

	log.Debug("session transition", zap.Stringer("state", StateStarting))
	resp, err := m.gateway.Call(context.WithoutCancel(ctx), m.request(startPath, payload))
	if err != nil {
		return "", m.failStart(log, apperr.GatewayUnreachable(op, err))
	}
	if resp.Status != http.StatusOK {
		return "", m.failStart(log, apperr.ControllerRejected(op, resp.Status))
	}
	reply, err := decodeStart(resp.Body)
	if err != nil {
		return "", m.failStart(log, apperr.MalformedResponse(op, err))
	}

	handle := Handle{
		ContainerID: reply.ContainerID,
		EditorURL:   reply.EditorURL,
		Owner:       userID,
		CreatedAt:   m.now(),
	}
	replaced := m.registry.Put(handle)
	m.armExpiry(handle.ContainerID)
	m.metrics.observeStart("ok")

	log.Info("session transition",
		zap.Stringer("state", StateLive),
		zap.String("container_id", handle.ContainerID),
		zap.Duration("expires_in", m.cfg.Expiry))

	if replaced != nil && replaced.ContainerID != handle.ContainerID {
		log.Warn("live session replaced",
			zap.String("container_id", handle.ContainerID),
			zap.String("replaced_container_id", replaced.ContainerID),
			zap.Bool("stop_replaced", m.cfg.StopReplaced))
		if m.cfg.StopReplaced {
			oldID := replaced.ContainerID
			m.scheduler.Schedule("replaced/"+oldID, 0, func() {
				_, _ = m.stop(m.ctx, oldID, triggerReplaced)
			})
		}
	}

	return reply.EditorURL, nil
}

func (m *Manager) failStart(log *zap.Logger, err error) error {
	m.metrics.observeStart("error")
	log.Warn("session transition", zap.Stringer("state", StateFailed), zap.Error(err))
	return err
}

// Stop asks the controller to destroy containerID and drops its registry
// entry. Stopping an unknown container still reaches the controller and
// succeeds if the controller does. Like Start, the controller call outlives
// cancellation of ctx.
func (m *Manager) Stop(ctx context.Context, containerID string) (string, error) {
	return m.stop(ctx, containerID, triggerExplicit)
}

func (m *Manager) stop(ctx context.Context, containerID string, t trigger) (string, error) {
	const op = "stop_session"
	if containerID == "" {
		return "", apperr.InvalidArgument(op, "container_id must not be empty")
	}
	log := m.logger.With(zap.String("container_id", containerID), zap.String("trigger", string(t)))

	if m.registry.MarkStopping(containerID) {
		log.Debug("session transition", zap.Stringer("state", StateStopping))
	}

	payload, err := encodeStop(containerID)
	if err != nil {
		return "", fmt.Errorf("%s: failed to encode payload: %w", op, err)
	}

	resp, err := m.gateway.Call(context.WithoutCancel(ctx), m.request(stopPath, payload))
	if err != nil {
		return "", m.failStop(log, t, apperr.GatewayUnreachable(op, err))
	}
	if resp.Status != http.StatusOK {
		return "", m.failStop(log, t, apperr.ControllerRejected(op, resp.Status))
	}

	handle, removed := m.registry.RemoveContainer(containerID)
	m.metrics.observeStop(t, "ok")

	fields := []zap.Field{zap.Stringer("state", StateStopped), zap.Bool("registry_entry_removed", removed)}
	if removed {
		fields = append(fields, zap.String("user_id", handle.Owner))
	}
	log.Info("session transition", fields...)

	return StopConfirmation, nil
}

func (m *Manager) failStop(log *zap.Logger, t trigger, err error) error {
	m.metrics.observeStop(t, "error")
	log.Warn("session stop failed", zap.Stringer("state", StateStopping), zap.Error(err))
	return err
}

func (m *Manager) request(path string, payload []byte) gateway.Request {
	return gateway.Request{
		URL:              endpoint(m.cfg.ControllerURL, path),
		Method:           http.MethodPost,
		Headers:          gateway.JSONHeaders(),
		Body:             payload,
		MaxResponseBytes: m.cfg.MaxResponseBytes,
	}
}

func (m *Manager) armExpiry(containerID string) {
	m.scheduler.Schedule(containerID, m.cfg.Expiry, func() {
		m.expire(containerID, 1, nil)
	})
}

// expire runs the stop path for an elapsed session. Transient failures are
// re-scheduled with exponential backoff until the retry budget is spent.
func (m *Manager) expire(containerID string, attempt int, b backoff.BackOff) {
	_, err := m.stop(m.ctx, containerID, triggerExpiry)
	if err == nil || m.ctx.Err() != nil {
		return
	}

	if b == nil {
		b = m.cleanupBackOff()
	}
	delay := backoff.Stop
	if retryable(err) {
		delay = b.NextBackOff()
	}
	if delay == backoff.Stop {
		m.metrics.observeCleanupFailure()
		m.alerter.CleanupFailed(m.ctx, containerID, attempt, err)
		return
	}

	m.metrics.observeRetry()
	m.logger.Warn("retrying expired session cleanup",
		zap.String("container_id", containerID),
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
		zap.Error(err))
	m.scheduler.Schedule(containerID, delay, func() {
		m.expire(containerID, attempt+1, b)
	})
}

func (m *Manager) cleanupBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.cfg.CleanupInitialBackoff
	b.MaxInterval = m.cfg.CleanupMaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(m.cfg.CleanupMaxRetries)) //nolint:gosec // validated non-negative
}

func retryable(err error) bool {
	switch apperr.KindOf(err) {
	case apperr.KindGatewayUnreachable:
		return true
	case apperr.KindControllerRejected:
		return apperr.StatusOf(err) >= http.StatusInternalServerError
	default:
		return false
	}
}

// CancelExpiry drops the pending expiry (or cleanup retry) of containerID.
func (m *Manager) CancelExpiry(containerID string) bool {
	cancelled := m.scheduler.Cancel(containerID)
	if cancelled {
		m.logger.Info("session expiry cancelled", zap.String("container_id", containerID))
	}
	return cancelled
}

// Lookup returns the live session of userID.
func (m *Manager) Lookup(userID string) (Handle, bool) {
	return m.registry.Get(userID)
}

// Sessions returns every registered session, oldest first.
func (m *Manager) Sessions() []Handle {
	return m.registry.List()
}

// State returns the lifecycle state of a registered container.
func (m *Manager) State(containerID string) (State, bool) {
	return m.registry.State(containerID)
}

// Shutdown cancels pending timers and, when configured, stops every
// registered session before returning.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.scheduler.Stop()
	defer m.cancel()

	if !m.cfg.StopOnShutdown {
		return nil
	}

	var errs []error
	for _, h := range m.registry.List() {
		if _, err := m.stop(ctx, h.ContainerID, triggerShutdown); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
