// Package service owns the authoritative in-memory collection of échéances.
// It bridges to the backend API for durable storage and to a push channel for
// external change notification, fans events out to subscribers, and runs the
// periodic approaching/overdue deadline scans.
//
// A Service is explicitly constructed and passed to its consumers; there is
// no package-level instance. Tests build as many isolated services as they
// need.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mverdier/echeancier/internal/realtime"
	"github.com/mverdier/echeancier/internal/transport"
	"github.com/mverdier/echeancier/pkg/echeance"
)

// API is the backend surface the service depends on.
// *transport.Client satisfies it.
type API interface {
	List(ctx context.Context, filtres *echeance.FilterSet) ([]echeance.Echeance, error)
	Get(ctx context.Context, id string) (*echeance.Echeance, error)
	Create(ctx context.Context, req transport.CreateRequest, correlationID string) (*echeance.Echeance, error)
	Update(ctx context.Context, id string, req transport.UpdateRequest, correlationID string) (*echeance.Echeance, error)
	Delete(ctx context.Context, id string, correlationID string) error
	Analytics(ctx context.Context, periode string) (*transport.AnalyticsSummary, error)
	StartCollaboration(ctx context.Context, id string) (*transport.Session, error)
	StopCollaboration(ctx context.Context, id string) error
}

// Options tune a Service. Zero values get sensible defaults.
type Options struct {
	// Channel is the optional realtime push channel. Without one the cache
	// is always treated as stale and every List hits the backend.
	Channel realtime.Channel

	// OnError receives every degraded-read and scan failure. Write
	// failures are additionally returned to the caller.
	OnError func(error)

	// OnApproaching receives (record, whole days remaining) for each
	// non-terminal record due within the approaching window.
	OnApproaching func(echeance.Echeance, int)

	// OnOverdue receives (record, whole days overdue) for each
	// non-terminal record past its due date.
	OnOverdue func(echeance.Echeance, int)

	ApproachingWindow   time.Duration // default 72h
	ApproachingInterval time.Duration // default 1h
	OverdueInterval     time.Duration // default 24h

	// FreshnessWindow bounds how long the cache stays fresh after the
	// last confirmed push event or full sync. Freshness is a function of
	// observed channel activity, not of the channel merely existing.
	FreshnessWindow time.Duration // default 5m

	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

const (
	defaultApproachingWindow   = 72 * time.Hour
	defaultApproachingInterval = time.Hour
	defaultOverdueInterval     = 24 * time.Hour
	defaultFreshnessWindow     = 5 * time.Minute
)

// Service is the process-wide owner of the échéance cache.
// All methods are safe for concurrent use.
type Service struct {
	api  API
	opts Options
	now  func() time.Time

	mu          sync.RWMutex
	cache       map[string]echeance.Echeance
	sessions    map[string]transport.Session
	subscribers map[int]func(echeance.Event)
	nextSubID   int
	lastSyncAt  time.Time
	lastEventAt time.Time
	closed      bool

	// writeMu serializes mutations so concurrent updates to the same id
	// apply in a defined order instead of last-to-resolve-wins.
	writeMu sync.Mutex
}

// New creates a Service on top of the given backend API.
func New(backend API, opts Options) (*Service, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend API cannot be nil")
	}

	if opts.ApproachingWindow <= 0 {
		opts.ApproachingWindow = defaultApproachingWindow
	}
	if opts.ApproachingInterval <= 0 {
		opts.ApproachingInterval = defaultApproachingInterval
	}
	if opts.OverdueInterval <= 0 {
		opts.OverdueInterval = defaultOverdueInterval
	}
	if opts.FreshnessWindow <= 0 {
		opts.FreshnessWindow = defaultFreshnessWindow
	}

	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	return &Service{
		api:         backend,
		opts:        opts,
		now:         now,
		cache:       make(map[string]echeance.Echeance),
		sessions:    make(map[string]transport.Session),
		subscribers: make(map[int]func(echeance.Event)),
	}, nil
}

// List returns the échéances matching the filter set. When the cache is
// fresh it is served directly; otherwise the backend is fetched and the
// cache wholesale replaced. A backend failure is reported through OnError
// and the call degrades to the (possibly stale) cache contents - list
// failures never propagate to the caller.
func (s *Service) List(ctx context.Context, filtres *echeance.FilterSet) []echeance.Echeance {
	now := s.now()

	if !s.fresh(now) {
		records, err := s.api.List(ctx, nil)
		if err != nil {
			s.reportError(fmt.Errorf("list degraded to cache: %w", err))
		} else {
			s.replaceCache(records, now)
		}
	}

	return echeance.Apply(s.snapshot(), filtres, now)
}

// Get returns one échéance, or nil when it does not exist. Cache hits are
// served when fresh; a miss always falls through to the backend, fresh or
// not. A backend not-found maps to nil; any other backend failure is
// reported through OnError and the call falls back to the cache.
func (s *Service) Get(ctx context.Context, id string) *echeance.Echeance {
	now := s.now()

	if s.fresh(now) {
		if e, ok := s.cached(id); ok {
			return &e
		}
		// Freshness only licenses serving hits without a fetch. An absent
		// id may simply predate the channel attach.
	}

	remote, err := s.api.Get(ctx, id)
	if err != nil {
		if transport.IsNotFound(err) {
			return nil
		}
		s.reportError(fmt.Errorf("get degraded to cache: %w", err))
		if e, ok := s.cached(id); ok {
			return &e
		}
		return nil
	}

	s.mu.Lock()
	s.cache[remote.ID] = *remote
	s.mu.Unlock()

	copied := *remote
	return &copied
}

// Create creates an échéance remote-first: the cache is only mutated and
// subscribers only notified after the backend confirms. An empty
// correlationID gets a generated one; the id used is echoed on the
// broadcast event.
func (s *Service) Create(ctx context.Context, req transport.CreateRequest, correlationID string) (*echeance.Echeance, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	created, err := s.api.Create(ctx, req, correlationID)
	if err != nil {
		err = fmt.Errorf("create failed: %w", err)
		s.reportError(err)
		return nil, err
	}

	s.mu.Lock()
	s.cache[created.ID] = *created
	s.mu.Unlock()

	s.broadcast(echeance.Event{
		Type:          echeance.EventCreated,
		EcheanceID:    created.ID,
		Echeance:      created,
		CorrelationID: correlationID,
		At:            s.now(),
	})

	copied := *created
	return &copied, nil
}

// Update applies a partial update remote-first. A status change is checked
// against the lifecycle transition table before the backend is called;
// illegal transitions fail with a TransitionError and nothing is sent.
func (s *Service) Update(ctx context.Context, id string, req transport.UpdateRequest, correlationID string) (*echeance.Echeance, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	if err := s.checkUpdate(ctx, id, req); err != nil {
		s.reportError(err)
		return nil, err
	}

	updated, err := s.api.Update(ctx, id, req, correlationID)
	if err != nil {
		err = fmt.Errorf("update failed: %w", err)
		s.reportError(err)
		return nil, err
	}

	s.mu.Lock()
	s.cache[updated.ID] = *updated
	s.mu.Unlock()

	s.broadcast(echeance.Event{
		Type:          echeance.EventUpdated,
		EcheanceID:    updated.ID,
		Echeance:      updated,
		CorrelationID: correlationID,
		At:            s.now(),
	})

	copied := *updated
	return &copied, nil
}

// checkUpdate validates a partial update against the current record state.
func (s *Service) checkUpdate(ctx context.Context, id string, req transport.UpdateRequest) error {
	if req.Progression != nil && (*req.Progression < 0 || *req.Progression > 100) {
		return fmt.Errorf("progression must be in [0,100], got %d", *req.Progression)
	}

	if req.Statut == nil {
		return nil
	}

	current, ok := s.cached(id)
	if !ok {
		remote, err := s.api.Get(ctx, id)
		if err != nil {
			if transport.IsNotFound(err) {
				return transport.ErrNotFound
			}
			return fmt.Errorf("cannot verify statut transition: %w", err)
		}
		current = *remote
	}

	if err := echeance.CheckTransition(current.Statut, *req.Statut); err != nil {
		return err
	}

	if *req.Statut == echeance.StatutCompleted {
		progression := current.Progression
		if req.Progression != nil {
			progression = *req.Progression
		}
		if progression != 100 {
			return fmt.Errorf("statut COMPLETED requires progression 100, got %d", progression)
		}
	}

	return nil
}

// Delete removes an échéance remote-first. Deletion is immediate: on
// backend success the record leaves the cache and subscribers are notified.
func (s *Service) Delete(ctx context.Context, id string, correlationID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	if err := s.api.Delete(ctx, id, correlationID); err != nil {
		err = fmt.Errorf("delete failed: %w", err)
		s.reportError(err)
		return err
	}

	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()

	s.broadcast(echeance.Event{
		Type:          echeance.EventDeleted,
		EcheanceID:    id,
		CorrelationID: correlationID,
		At:            s.now(),
	})

	return nil
}

// Analytics is a stateless passthrough to the backend aggregate endpoint.
func (s *Service) Analytics(ctx context.Context, periode string) (*transport.AnalyticsSummary, error) {
	summary, err := s.api.Analytics(ctx, periode)
	if err != nil {
		err = fmt.Errorf("analytics failed: %w", err)
		s.reportError(err)
		return nil, err
	}
	return summary, nil
}

// Subscribe registers an observer for all cache-mutation and deadline
// events. The returned function deregisters exactly that observer; after it
// returns the callback receives no further events. Delivery is synchronous
// in registration order.
func (s *Service) Subscribe(fn func(echeance.Event)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// StartCollaboration opens a collaborative-editing session for one
// échéance and tracks it. Sessions are advisory markers only; they do not
// serialize cache mutations.
func (s *Service) StartCollaboration(ctx context.Context, id string) (*transport.Session, error) {
	session, err := s.api.StartCollaboration(ctx, id)
	if err != nil {
		err = fmt.Errorf("start collaboration failed: %w", err)
		s.reportError(err)
		return nil, err
	}

	s.mu.Lock()
	s.sessions[id] = *session
	s.mu.Unlock()

	copied := *session
	return &copied, nil
}

// StopCollaboration ends the tracked session for one échéance.
func (s *Service) StopCollaboration(ctx context.Context, id string) error {
	if err := s.api.StopCollaboration(ctx, id); err != nil {
		err = fmt.Errorf("stop collaboration failed: %w", err)
		s.reportError(err)
		return err
	}

	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	return nil
}

// Session returns the tracked collaboration session for an échéance, if any.
func (s *Service) Session(id string) (transport.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Run consumes the realtime channel and drives the periodic deadline scans
// until ctx is cancelled. It is a no-op loop when no channel is configured
// (the scans still run).
func (s *Service) Run(ctx context.Context) error {
	approachingTicker := time.NewTicker(s.opts.ApproachingInterval)
	defer approachingTicker.Stop()
	overdueTicker := time.NewTicker(s.opts.OverdueInterval)
	defer overdueTicker.Stop()

	var events <-chan echeance.Event
	var errs <-chan error
	if s.opts.Channel != nil {
		events = s.opts.Channel.Events()
		errs = s.opts.Channel.Errors()
	}

	s.logEvent("service_started", map[string]any{
		"realtime": s.opts.Channel != nil,
	})

	for {
		select {
		case <-ctx.Done():
			s.logEvent("service_stopped", nil)
			return nil

		case ev, ok := <-events:
			if !ok {
				events = nil
				s.logEvent("channel_closed", nil)
				continue
			}
			s.applyRemote(ev)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.reportError(fmt.Errorf("realtime channel: %w", err))

		case <-approachingTicker.C:
			s.ScanApproaching()

		case <-overdueTicker.C:
			s.ScanOverdue()
		}
	}
}

// applyRemote folds one push-channel event into the cache and re-broadcasts
// it to subscribers. Events carry the originating correlation id, so
// subscribers that initiated the write can recognize it.
func (s *Service) applyRemote(ev echeance.Event) {
	now := s.now()

	s.mu.Lock()
	s.lastEventAt = now
	switch ev.Type {
	case echeance.EventCreated, echeance.EventUpdated:
		if ev.Echeance != nil {
			s.cache[ev.Echeance.ID] = *ev.Echeance
		}
	case echeance.EventDeleted:
		delete(s.cache, ev.EcheanceID)
	}
	s.mu.Unlock()

	s.logEvent("remote_event", map[string]any{
		"type":           string(ev.Type),
		"echeance_id":    ev.EcheanceID,
		"correlation_id": ev.CorrelationID,
	})

	s.broadcast(ev)
}

// Close stops the realtime channel and clears all collections. The service
// must not be used afterwards.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cache = make(map[string]echeance.Echeance)
	s.sessions = make(map[string]transport.Session)
	s.subscribers = make(map[int]func(echeance.Event))
	s.mu.Unlock()

	if s.opts.Channel != nil {
		return s.opts.Channel.Close()
	}
	return nil
}

// fresh reports whether the cache can be served without a backend fetch:
// a realtime channel must be attached and a push event or full sync must
// have been confirmed within the freshness window.
func (s *Service) fresh(now time.Time) bool {
	if s.opts.Channel == nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	last := s.lastEventAt
	if s.lastSyncAt.After(last) {
		last = s.lastSyncAt
	}
	return !last.IsZero() && now.Sub(last) <= s.opts.FreshnessWindow
}

// replaceCache wholesale swaps the cache for a fresh backend listing.
func (s *Service) replaceCache(records []echeance.Echeance, now time.Time) {
	next := make(map[string]echeance.Echeance, len(records))
	for _, e := range records {
		next[e.ID] = e
	}

	s.mu.Lock()
	s.cache = next
	s.lastSyncAt = now
	s.mu.Unlock()
}

// snapshot copies the cache contents in a deterministic order.
func (s *Service) snapshot() []echeance.Echeance {
	s.mu.RLock()
	out := make([]echeance.Echeance, 0, len(s.cache))
	for _, e := range s.cache {
		out = append(out, e)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Service) cached(id string) (echeance.Echeance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.cache[id]
	return e, ok
}

// broadcast delivers one event to every subscriber, synchronously, in
// registration order. Callbacks run outside the service lock so they may
// call back into the service.
func (s *Service) broadcast(ev echeance.Event) {
	s.mu.RLock()
	ids := make([]int, 0, len(s.subscribers))
	for id := range s.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(echeance.Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subscribers[id])
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (s *Service) reportError(err error) {
	if s.opts.OnError != nil {
		s.opts.OnError(err)
	}
}

// logEvent logs a structured event in JSON format.
func (s *Service) logEvent(eventType string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	data["timestamp"] = s.now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "service"
	data["event_type"] = eventType

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Service] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
