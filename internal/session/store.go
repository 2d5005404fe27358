package session

import (
	"context"
	"sync"
	"time"

	"casebook/internal/auth"
	"casebook/internal/backend"
	"casebook/internal/pkg/logger"
)

// Source is the auth surface a Store needs.
type Source interface {
	GetUser(ctx context.Context, clientID string) (*backend.AuthSession, error)
	OnAuthStateChange(ctx context.Context, clientID string, handler auth.Handler) (func(), error)
}

type Listener func(State)

// Store owns the session state of one browser client.
type Store struct {
	clientID string
	source   Source
	logger   logger.ILogger

	mu           sync.RWMutex
	state        State
	listeners    map[uint64]Listener
	nextListener uint64
	stopped      bool

	ready     chan struct{}
	readyOnce sync.Once

	startOnce   sync.Once
	cancel      context.CancelFunc
	unsubscribe func()
}

func NewStore(clientID string, source Source, log logger.ILogger) *Store {
	return &Store{
		clientID:  clientID,
		source:    source,
		logger:    log,
		listeners: make(map[uint64]Listener),
		ready:     make(chan struct{}),
	}
}

func (s *Store) ClientID() string {
	return s.clientID
}

// Start subscribes to auth changes, then runs the startup query in the background.
// Calling it more than once has no effect.
func (s *Store) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)

		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			cancel()
			return
		}
		s.cancel = cancel
		s.mu.Unlock()

		unsubscribe, err := s.source.OnAuthStateChange(ctx, s.clientID, func(e auth.Event) {
			s.Dispatch(EventFromAuth(e))
		})
		if err != nil {
			s.logger.Error("SESSION", "Failed to subscribe to auth changes", map[string]interface{}{
				"client_id": s.clientID,
				"error":     err,
			})
		} else {
			s.mu.Lock()
			s.unsubscribe = unsubscribe
			s.mu.Unlock()
		}

		go s.resolveStartup(ctx)
	})
}

func (s *Store) resolveStartup(ctx context.Context) {
	current, err := s.source.GetUser(ctx, s.clientID)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		// Treat an unreachable backend as signed out.
		s.logger.Warn("SESSION", "Startup session query failed", map[string]interface{}{
			"client_id": s.clientID,
			"error":     err.Error(),
		})
		current = nil
	}
	s.Dispatch(Event{Kind: StartupResolved, Session: FromAuth(current)})
}

// Dispatch runs ev through Reduce and notifies listeners when state changed.
// Events dispatched after Stop are dropped.
func (s *Store) Dispatch(ev Event) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	next := Reduce(s.state, ev)
	changed := next.Version != s.state.Version
	s.state = next

	var listeners []Listener
	if changed {
		listeners = make([]Listener, 0, len(s.listeners))
		for _, l := range s.listeners {
			listeners = append(listeners, l)
		}
	}
	s.mu.Unlock()

	if next.Resolved {
		s.readyOnce.Do(func() { close(s.ready) })
	}
	for _, l := range listeners {
		l(next)
	}
}

func (s *Store) Current() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Ready is closed once the state is resolved.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Await waits for Ready, at most timeout, and returns the state at that point.
// An unresolved state reads as signed out.
func (s *Store) Await(ctx context.Context, timeout time.Duration) State {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.ready:
	case <-timer.C:
	case <-ctx.Done():
	}
	return s.Current()
}

// Subscribe registers l for every later state change.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Stop cancels the startup query and the auth subscription.
func (s *Store) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel, unsubscribe := s.cancel, s.unsubscribe
	s.listeners = make(map[uint64]Listener)
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
}
