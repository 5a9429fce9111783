package usecases

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/tripline/internal/core/domain"
	"github.com/samirrijal/tripline/internal/core/ports"
	"github.com/samirrijal/tripline/internal/pkg/logging"
	"github.com/samirrijal/tripline/internal/pkg/metrics"
)

// DefaultPollAttempts is the number of non-generated observations tolerated
// before a session times out.
const DefaultPollAttempts = 8

// PollState is the lifecycle state of a PollSession.
type PollState string

const (
	PollIdle            PollState = "idle"
	PollPolling         PollState = "polling"
	PollGenerated       PollState = "generated"
	PollTimedOut        PollState = "timed_out"
	PollTransportFailed PollState = "transport_failed"
	PollSuperseded      PollState = "superseded"
)

// Terminal reports whether no further transitions can happen.
func (s PollState) Terminal() bool {
	return s != PollIdle && s != PollPolling
}

var errStreamClosed = errors.New("status stream closed")

// PollerConfig configures a GenerationPoller.
type PollerConfig struct {
	MaxAttempts int
}

// GenerationPoller waits for server-side generation after a segment write and
// runs a continuation once the content is visible. It keeps at most one live
// session per trip: starting a new one supersedes the previous.
type GenerationPoller struct {
	source ports.GenerationStatusSource
	cfg    PollerConfig
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*PollSession
}

// NewGenerationPoller creates a GenerationPoller reading from source.
func NewGenerationPoller(source ports.GenerationStatusSource, cfg PollerConfig) *GenerationPoller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultPollAttempts
	}
	return &GenerationPoller{
		source:   source,
		cfg:      cfg,
		logger:   logging.Component("generation-poller"),
		sessions: make(map[string]*PollSession),
	}
}

// Start opens a status stream for tripHash and polls it in the background.
// The new session is registered as idle while the stream opens and only
// supersedes the previous one once the stream is up; if opening fails the
// previous session stays current. onGenerated runs at most once, only if the
// session is still current when generation is observed. The session outlives
// ctx's cancellation but keeps its values.
func (p *GenerationPoller) Start(ctx context.Context, tripHash string, onGenerated func(ctx context.Context) error) (*PollSession, error) {
	base := context.WithoutCancel(ctx)
	pollCtx, cancel := context.WithCancel(base)

	s := &PollSession{
		id:        uuid.New(),
		tripHash:  tripHash,
		state:     PollIdle,
		startedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	p.mu.Lock()
	prev := p.sessions[tripHash]
	p.sessions[tripHash] = s
	p.mu.Unlock()

	statuses, err := p.source.ObserveGenerationStatus(pollCtx, tripHash)
	if err != nil {
		terr := &domain.TransportError{Op: "observe generation", Err: err}
		p.mu.Lock()
		current := p.sessions[tripHash] == s
		if current {
			if prev != nil {
				p.sessions[tripHash] = prev
			} else {
				delete(p.sessions, tripHash)
			}
		}
		p.mu.Unlock()
		if !current && prev != nil {
			prev.supersede()
		}
		s.finish(PollTransportFailed, terr)
		cancel()
		return nil, terr
	}

	if prev != nil {
		prev.supersede()
		p.logger.Info("generation poll superseded", "trip", tripHash, "session", prev.id, "by", s.id)
	}
	s.markPolling()

	p.logger.Info("generation poll started", "trip", tripHash, "session", s.id, "max_attempts", p.cfg.MaxAttempts)
	go p.run(pollCtx, base, s, statuses, onGenerated)
	return s, nil
}

// Session returns the most recent session for tripHash.
func (p *GenerationPoller) Session(tripHash string) (*PollSession, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[tripHash]
	return s, ok
}

// Close supersedes every live session.
func (p *GenerationPoller) Close() {
	p.mu.Lock()
	sessions := make([]*PollSession, 0, len(p.sessions))
	for _, s := range p.sessions {
		sessions = append(sessions, s)
	}
	p.mu.Unlock()
	for _, s := range sessions {
		s.supersede()
	}
}

func (p *GenerationPoller) run(
	ctx, base context.Context,
	s *PollSession,
	statuses <-chan domain.GenerationStatus,
	onGenerated func(ctx context.Context) error,
) {
	defer s.cancel()
	log := p.logger.With("trip", s.tripHash, "session", s.id)

	for {
		select {
		case <-ctx.Done():
			s.finish(PollSuperseded, domain.ErrPollSuperseded)
			log.Info("generation poll stopped", "attempts", s.Attempts())
			return

		case st, ok := <-statuses:
			switch {
			case !ok:
				s.finish(PollTransportFailed, &domain.TransportError{Op: "observe generation", Err: errStreamClosed})
				log.Warn("generation status stream closed", "attempts", s.Attempts())
				return
			case st.Err != nil:
				s.finish(PollTransportFailed, &domain.TransportError{Op: "observe generation", Err: st.Err})
				log.Warn("generation status failed", "error", st.Err, "attempts", s.Attempts())
				return
			case st.Generated:
				if !s.beginContinuation() {
					s.finish(PollSuperseded, domain.ErrPollSuperseded)
					return
				}
				var err error
				if onGenerated != nil {
					err = onGenerated(base)
				}
				s.finish(PollGenerated, err)
				log.Info("generation observed", "attempts", s.Attempts(), "continuation_error", err)
				return
			}

			metrics.GenerationPollAttempts.Inc()
			if n := s.recordAttempt(); n >= p.cfg.MaxAttempts {
				s.finish(PollTimedOut, &domain.GenerationTimeoutError{TripHash: s.tripHash, Attempts: n})
				log.Warn("generation poll timed out", "attempts", n)
				return
			}
		}
	}
}

// PollSession is one poll cycle for a trip.
type PollSession struct {
	id        uuid.UUID
	tripHash  string
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}

	mu         sync.Mutex
	state      PollState
	attempts   int
	err        error
	superseded bool
	continued  bool
	finishedAt time.Time
}

// PollStatus is a point-in-time view of a PollSession.
type PollStatus struct {
	ID         string     `json:"id"`
	TripHash   string     `json:"trip_hash"`
	State      PollState  `json:"state"`
	Attempts   int        `json:"attempts"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func (s *PollSession) ID() uuid.UUID    { return s.id }
func (s *PollSession) TripHash() string { return s.tripHash }

// Done is closed once the session reaches a terminal state.
func (s *PollSession) Done() <-chan struct{} { return s.done }

func (s *PollSession) State() PollState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *PollSession) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Err returns the terminal error: nil after a successful continuation.
func (s *PollSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Generated reports whether generation was observed and the continuation ran.
func (s *PollSession) Generated() bool {
	return s.State() == PollGenerated
}

// Wait blocks until the session finishes or ctx is done.
func (s *PollSession) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns a snapshot of the session.
func (s *PollSession) Status() PollStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := PollStatus{
		ID:        s.id.String(),
		TripHash:  s.tripHash,
		State:     s.state,
		Attempts:  s.attempts,
		StartedAt: s.startedAt,
	}
	if s.err != nil {
		st.Error = s.err.Error()
	}
	if !s.finishedAt.IsZero() {
		t := s.finishedAt
		st.FinishedAt = &t
	}
	return st
}

func (s *PollSession) recordAttempt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	return s.attempts
}

// markPolling moves an idle session to polling unless it was superseded
// while its stream opened.
func (s *PollSession) markPolling() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == PollIdle && !s.superseded {
		s.state = PollPolling
	}
}

func (s *PollSession) supersede() {
	s.mu.Lock()
	s.superseded = true
	s.mu.Unlock()
	s.cancel()
}

// beginContinuation claims the continuation unless the session was superseded.
func (s *PollSession) beginContinuation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.superseded {
		return false
	}
	s.continued = true
	return true
}

func (s *PollSession) finish(state PollState, err error) {
	s.mu.Lock()
	if s.superseded && !s.continued {
		state, err = PollSuperseded, domain.ErrPollSuperseded
	}
	s.state = state
	s.err = err
	s.finishedAt = time.Now()
	s.mu.Unlock()

	close(s.done)
	metrics.GenerationPollOutcomes.WithLabelValues(string(state)).Inc()
}
