package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"audiofleet-dashboard/internal/model"
)

const defaultFetchTimeout = 8 * time.Second

// Source is the transport the engine polls. A data fetch failure of any
// kind (network, non-2xx, malformed body) surfaces as a plain error; the
// engine applies one flat retry policy to all of them.
type Source interface {
	GetDashboardData(ctx context.Context) (model.DashboardSnapshot, error)
	GetHealthCheck(ctx context.Context) error
}

// Engine owns the recurring fetch cycle against the collection service and
// publishes whole DashboardSnapshot values. At most one fetch is in flight
// at a time: a tick that fires while a fetch is pending is skipped, never
// queued. Polling continues at the same fixed cadence regardless of how
// many consecutive fetches fail, so transient outages self-heal within one
// interval.
type Engine struct {
	source       Source
	interval     time.Duration
	fetchTimeout time.Duration
	clock        Clock
	log          zerolog.Logger

	forceCh chan struct{}

	mu           sync.Mutex
	active       bool
	generation   uint64
	inFlight     bool
	forcePending bool
	stopCh       chan struct{}
	retryCount   int
	lastError    string
	connStatus   model.ConnectionStatus
	snapshot     model.DashboardSnapshot
	hasSnapshot  bool
}

func New(source Source, interval time.Duration, clock Clock, log zerolog.Logger) *Engine {
	if clock == nil {
		clock = realClock{}
	}

	return &Engine{
		source:       source,
		interval:     interval,
		fetchTimeout: defaultFetchTimeout,
		clock:        clock,
		log:          log.With().Str("component", "engine").Logger(),
		forceCh:      make(chan struct{}, 1),
		connStatus:   model.ConnectionConnecting,
	}
}

// Start is idempotent. It triggers one immediate fetch, then schedules
// fetches at the fixed interval.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.active {
		e.mu.Unlock()
		return
	}
	e.active = true
	e.generation++
	e.inFlight = false
	e.forcePending = false
	e.stopCh = make(chan struct{})
	generation := e.generation
	stopCh := e.stopCh
	e.mu.Unlock()

	// A force token enqueued just before the previous Stop must not leak
	// into this run.
	select {
	case <-e.forceCh:
	default:
	}

	e.log.Info().Dur("interval", e.interval).Msg("starting polling loop")

	e.tryFetch(generation)
	go e.run(generation, stopCh)
}

// Stop is idempotent. It cancels future timer firings; a fetch already in
// flight is allowed to complete but its result is discarded.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	e.active = false
	close(e.stopCh)
	e.stopCh = nil
	e.mu.Unlock()

	e.log.Info().Msg("polling loop stopped")
}

// ForcePoll triggers one immediate fetch outside the regular cadence,
// typically after a command dispatch. The timer is not reset. A force
// arriving while a fetch is already in flight is latched, not dropped:
// the in-flight fetch predates the request, so a fresh fetch starts as
// soon as it resolves.
func (e *Engine) ForcePoll() {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	e.forcePending = true
	e.mu.Unlock()

	select {
	case e.forceCh <- struct{}{}:
	default:
	}
}

// Snapshot returns the most recent published snapshot, if any. The value
// is a copy; a failed poll never blanks previously-shown devices.
func (e *Engine) Snapshot() (model.DashboardSnapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.hasSnapshot {
		return model.DashboardSnapshot{}, false
	}
	return e.snapshot, true
}

func (e *Engine) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasSnapshot
}

func (e *Engine) State() model.PollState {
	e.mu.Lock()
	defer e.mu.Unlock()

	state := model.PollState{
		IsActive:         e.active,
		ConnectionStatus: e.connStatus,
		RetryCount:       e.retryCount,
		LastError:        e.lastError,
	}
	if e.hasSnapshot {
		state.LastUpdated = e.snapshot.LastUpdated
	}
	return state
}

func (e *Engine) run(generation uint64, stopCh chan struct{}) {
	ticker := e.clock.Ticker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.Chan():
			e.tryFetch(generation)
		case <-e.forceCh:
			e.tryForce(generation)
		}
	}
}

func (e *Engine) tryFetch(generation uint64) {
	e.mu.Lock()
	if !e.active || generation != e.generation {
		e.mu.Unlock()
		return
	}
	if e.inFlight {
		// forcePending, if set, stays latched for publish to resume.
		e.mu.Unlock()
		e.log.Debug().Msg("fetch still pending, skipping tick")
		return
	}
	e.inFlight = true
	e.forcePending = false
	e.mu.Unlock()

	go e.fetch(generation)
}

// tryForce services a force token. The token alone is not enough to start
// a fetch: the latch may already have been satisfied by a fetch that
// started after the force was requested.
func (e *Engine) tryForce(generation uint64) {
	e.mu.Lock()
	if !e.active || generation != e.generation || !e.forcePending {
		e.mu.Unlock()
		return
	}
	if e.inFlight {
		// Stays latched; publish starts the fetch once the pending one
		// resolves.
		e.mu.Unlock()
		return
	}
	e.forcePending = false
	e.inFlight = true
	e.mu.Unlock()

	go e.fetch(generation)
}

func (e *Engine) fetch(generation uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), e.fetchTimeout)
	defer cancel()

	// Advisory liveness probe. A failure here is logged but never blocks
	// the data fetch; the data fetch is authoritative for connection
	// status.
	if err := e.source.GetHealthCheck(ctx); err != nil {
		e.log.Warn().Err(err).Msg("health precheck failed")
	}

	snapshot, err := e.source.GetDashboardData(ctx)
	e.publish(generation, snapshot, err)
}

func (e *Engine) publish(generation uint64, snapshot model.DashboardSnapshot, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if generation == e.generation {
		e.inFlight = false
	}
	if !e.active || generation != e.generation {
		// Result landed after Stop (or after a restart); discard it.
		return
	}

	if err != nil {
		e.retryCount++
		e.lastError = err.Error()
		e.connStatus = model.ConnectionError
		if e.hasSnapshot {
			e.snapshot.ConnectionStatus = model.ConnectionError
		}
		e.log.Error().Err(err).Int("retry_count", e.retryCount).Msg("poll failed")
	} else {
		snapshot.ConnectionStatus = model.ConnectionConnected
		snapshot.ReceivedAt = e.clock.Now().UTC()

		e.snapshot = snapshot
		e.hasSnapshot = true
		e.retryCount = 0
		e.lastError = ""
		e.connStatus = model.ConnectionConnected
	}

	// A force latched while this fetch was in flight starts a fresh fetch
	// now; the finished one predates whatever prompted the force.
	if e.forcePending {
		e.forcePending = false
		e.inFlight = true
		go e.fetch(generation)
	}
}
