package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"yieldctl/pkg/metrics"
)

// ErrAlreadySettled is returned when a run that already succeeded or failed
// is settled again
var ErrAlreadySettled = errors.New("operation already settled")

// Phase is the lifecycle position of an operation run
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseFulfilled Phase = "fulfilled"
	PhaseRejected  Phase = "rejected"
)

// Result is what a fulfilled operation stores
type Result struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	GasUsed     uint64 `json:"gas_used"`
}

// OperationStatus is the observable state of one operation run
type OperationStatus struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Phase     Phase      `json:"phase"`
	Loading   bool       `json:"loading"`
	Executed  bool       `json:"executed"`
	Error     string     `json:"error,omitempty"`
	Result    *Result    `json:"result,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	SettledAt *time.Time `json:"settled_at,omitempty"`
}

// Settled reports whether the run reached a terminal phase
func (s OperationStatus) Settled() bool {
	return s.Phase == PhaseFulfilled || s.Phase == PhaseRejected
}

// Subscriber receives every status transition after it is applied
type Subscriber interface {
	OnTransition(ctx context.Context, status OperationStatus) error
}

// Store holds the latest status per operation name. Statuses are written
// only through Start, Succeed and Fail.
type Store struct {
	clock clock.Clock
	log   zerolog.Logger

	mu     sync.RWMutex
	latest map[string]OperationStatus
	runs   map[string]OperationStatus
	subs   []Subscriber
}

// New creates an empty store
func New(log zerolog.Logger) *Store {
	return &Store{
		clock:  clock.New(),
		log:    log.With().Str("component", "store").Logger(),
		latest: make(map[string]OperationStatus),
		runs:   make(map[string]OperationStatus),
	}
}

// WithClock swaps the clock used for timestamps
func (s *Store) WithClock(c clock.Clock) *Store {
	s.clock = c
	return s
}

// Subscribe registers sub for all future transitions
func (s *Store) Subscribe(sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, sub)
}

// Start begins a new run of name: loading is set and any previous error cleared
func (s *Store) Start(ctx context.Context, name string) OperationStatus {
	status := OperationStatus{
		ID:        uuid.New().String(),
		Name:      name,
		Phase:     PhasePending,
		Loading:   true,
		StartedAt: s.clock.Now(),
	}

	s.mu.Lock()
	s.runs[status.ID] = status
	s.latest[name] = status
	s.mu.Unlock()

	metrics.OperationsInFlight.Inc()
	s.publish(ctx, status)
	return status
}

// Succeed settles run id as fulfilled with result
func (s *Store) Succeed(ctx context.Context, id string, result *Result) (OperationStatus, error) {
	return s.settle(ctx, id, func(status *OperationStatus) {
		status.Phase = PhaseFulfilled
		status.Executed = true
		status.Result = result
	})
}

// Fail settles run id as rejected with the error's message
func (s *Store) Fail(ctx context.Context, id string, cause error) (OperationStatus, error) {
	return s.settle(ctx, id, func(status *OperationStatus) {
		status.Phase = PhaseRejected
		if cause != nil {
			status.Error = cause.Error()
		}
	})
}

func (s *Store) settle(ctx context.Context, id string, apply func(*OperationStatus)) (OperationStatus, error) {
	s.mu.Lock()
	status, ok := s.runs[id]
	if !ok {
		s.mu.Unlock()
		return OperationStatus{}, fmt.Errorf("operation run %s not found", id)
	}
	if status.Settled() {
		s.mu.Unlock()
		return status, fmt.Errorf("run %s of %s: %w", id, status.Name, ErrAlreadySettled)
	}

	now := s.clock.Now()
	status.Loading = false
	status.SettledAt = &now
	apply(&status)

	s.runs[id] = status
	s.latest[status.Name] = status
	s.mu.Unlock()

	metrics.OperationsInFlight.Dec()
	metrics.OperationsSettled.WithLabelValues(string(status.Phase)).Inc()
	s.publish(ctx, status)
	return status, nil
}

// Get returns the latest status recorded under name
func (s *Store) Get(name string) (OperationStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.latest[name]
	return status, ok
}

// List returns the latest status of every operation, sorted by name
func (s *Store) List() []OperationStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]OperationStatus, 0, len(s.latest))
	for _, status := range s.latest {
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Name < statuses[j].Name
	})
	return statuses
}

// Reset discards the status recorded under name. Runs still in flight can
// settle and will record it again.
func (s *Store) Reset(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.latest, name)
}

func (s *Store) publish(ctx context.Context, status OperationStatus) {
	s.mu.RLock()
	subs := append([]Subscriber(nil), s.subs...)
	s.mu.RUnlock()

	// Settlements after a cancelled run must still reach subscribers
	ctx = context.WithoutCancel(ctx)

	s.log.Debug().
		Str("operation", status.Name).
		Str("id", status.ID).
		Str("phase", string(status.Phase)).
		Msg("operation transition")

	for _, sub := range subs {
		if err := sub.OnTransition(ctx, status); err != nil {
			s.log.Warn().Err(err).Str("operation", status.Name).Msg("subscriber failed")
		}
	}
}

// Run wraps fn in the three status transitions under name. The error from
// fn is returned unchanged alongside the settled status.
func Run(ctx context.Context, s *Store, name string, fn func(ctx context.Context) (*Result, error)) (OperationStatus, error) {
	started := s.Start(ctx, name)

	result, err := fn(ctx)
	if err != nil {
		status, settleErr := s.Fail(ctx, started.ID, err)
		if settleErr != nil {
			return status, errors.Join(err, settleErr)
		}
		return status, err
	}

	return s.Succeed(ctx, started.ID, result)
}
