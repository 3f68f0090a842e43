// Package tracker adapts the service's event-driven API into a synchronous
// state container for presentation code (CLI commands, report generators).
// It owns a store.State advanced by the pure reducer, exposes imperative
// operations that orchestrate the service, and keeps derived views memoized.
//
// Every failed operation is surfaced three ways: through the optional error
// callback, in the state's Erreur field, and as a user-visible notice. The
// error is then returned so the caller can react (keep a form open, retry).
package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mverdier/echeancier/internal/service"
	"github.com/mverdier/echeancier/internal/store"
	"github.com/mverdier/echeancier/internal/transport"
	"github.com/mverdier/echeancier/pkg/echeance"
)

// Notifier receives user-visible transient notices.
type Notifier interface {
	Success(msg string)
	Warning(msg string)
}

// Options tune a Tracker.
type Options struct {
	// Notifier receives success/failure notices. Nil disables notices.
	Notifier Notifier

	// OnError receives every operation failure, in addition to the state
	// Erreur field and the notifier warning.
	OnError func(error)

	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

// Tracker is the orchestration layer between the échéance service and the
// reducer-driven state. Safe for concurrent use.
type Tracker struct {
	svc  *service.Service
	opts Options
	now  func() time.Time

	mu         sync.Mutex
	state      store.State
	pending    map[string]struct{} // correlation ids of in-flight own writes
	lastSvcErr string              // most recent degraded-read/scan failure

	memo        store.Memo
	unsubscribe func()
}

// New builds a tracker on an explicitly supplied service and subscribes to
// its events. Call Close when done.
func New(svc *service.Service, opts Options) (*Tracker, error) {
	if svc == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}

	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	t := &Tracker{
		svc:     svc,
		opts:    opts,
		now:     now,
		state:   store.NewState(),
		pending: make(map[string]struct{}),
	}
	t.unsubscribe = svc.Subscribe(t.onEvent)
	return t, nil
}

// Close detaches the tracker from the service event stream.
func (t *Tracker) Close() {
	if t.unsubscribe != nil {
		t.unsubscribe()
	}
}

// onEvent folds service events into the state. Events carrying a
// correlation id of one of this tracker's in-flight writes are skipped:
// the direct return path already applied them.
func (t *Tracker) onEvent(ev echeance.Event) {
	if ev.CorrelationID != "" {
		t.mu.Lock()
		_, own := t.pending[ev.CorrelationID]
		t.mu.Unlock()
		if own {
			return
		}
	}

	switch ev.Type {
	case echeance.EventCreated, echeance.EventUpdated:
		if ev.Echeance != nil {
			t.dispatch(store.AddEcheance{Echeance: *ev.Echeance})
		}
	case echeance.EventDeleted:
		t.dispatch(store.DeleteEcheance{ID: ev.EcheanceID})
	case echeance.EventApproaching:
		if ev.Echeance != nil {
			t.warn(fmt.Sprintf("Échéance \"%s\" dans %d jour(s)", ev.Echeance.Nom, ev.JoursRestants))
		}
	case echeance.EventOverdue:
		if ev.Echeance != nil {
			t.warn(fmt.Sprintf("Échéance \"%s\" en retard de %d jour(s)", ev.Echeance.Nom, ev.JoursRetard))
		}
	}
}

// Load fetches the échéances matching the filter set and replaces the
// state's record map. Degraded service reads still load the stale cache
// contents, but the failure stays visible in the state's Erreur field.
func (t *Tracker) Load(ctx context.Context, filtres *echeance.FilterSet) {
	t.dispatch(store.SetLoading{Loading: true})

	t.mu.Lock()
	t.lastSvcErr = ""
	t.mu.Unlock()

	records := t.svc.List(ctx, filtres)
	t.dispatch(store.SetEcheances{Echeances: records, At: t.now()})

	// SetEcheances clears the error; a degraded read re-asserts it over
	// the stale records it returned.
	t.mu.Lock()
	msg := t.lastSvcErr
	t.mu.Unlock()
	if msg != "" {
		t.dispatch(store.SetErreur{Message: msg})
	}
}

// Create creates an échéance through the service and applies it to the
// state. The returned error, if any, was already reported and noticed.
func (t *Tracker) Create(ctx context.Context, req transport.CreateRequest) (*echeance.Echeance, error) {
	corrID := t.trackWrite()
	defer t.untrackWrite(corrID)

	created, err := t.svc.Create(ctx, req, corrID)
	if err != nil {
		t.fail(fmt.Errorf("création impossible: %w", err))
		return nil, err
	}

	t.dispatch(store.AddEcheance{Echeance: *created})
	t.notify(fmt.Sprintf("Échéance \"%s\" créée", created.Nom))
	return created, nil
}

// Update applies a partial update through the service and merges it into
// the state.
func (t *Tracker) Update(ctx context.Context, id string, patch transport.UpdateRequest) (*echeance.Echeance, error) {
	corrID := t.trackWrite()
	defer t.untrackWrite(corrID)

	updated, err := t.svc.Update(ctx, id, patch, corrID)
	if err != nil {
		t.fail(fmt.Errorf("mise à jour impossible: %w", err))
		return nil, err
	}

	t.dispatch(store.UpdateEcheance{ID: id, Patch: patch})
	t.notify(fmt.Sprintf("Échéance \"%s\" mise à jour", updated.Nom))
	return updated, nil
}

// Delete removes an échéance through the service and from the state.
func (t *Tracker) Delete(ctx context.Context, id string) error {
	corrID := t.trackWrite()
	defer t.untrackWrite(corrID)

	if err := t.svc.Delete(ctx, id, corrID); err != nil {
		t.fail(fmt.Errorf("suppression impossible: %w", err))
		return err
	}

	t.dispatch(store.DeleteEcheance{ID: id})
	t.notify("Échéance supprimée")
	return nil
}

// ApplyFiltres sets the active filter set and reloads with it.
func (t *Tracker) ApplyFiltres(ctx context.Context, filtres echeance.FilterSet) {
	t.dispatch(store.SetFiltres{Filtres: filtres})
	t.Load(ctx, &filtres)
}

// ClearFiltres resets the filter set and reloads unfiltered.
func (t *Tracker) ClearFiltres(ctx context.Context) {
	t.dispatch(store.SetFiltres{Filtres: echeance.FilterSet{}})
	t.Load(ctx, nil)
}

// SetVueActive selects a saved view (nil deselects). A non-nil view
// reloads using its embedded filter set.
func (t *Tracker) SetVueActive(ctx context.Context, vue *store.Vue) {
	t.dispatch(store.SetVueActive{Vue: vue})
	if vue != nil {
		t.dispatch(store.SetFiltres{Filtres: vue.Filtres})
		t.Load(ctx, &vue.Filtres)
	}
}

// StartCollaboration opens a collaborative session and reflects it into
// the state.
func (t *Tracker) StartCollaboration(ctx context.Context, id string) error {
	sess, err := t.svc.StartCollaboration(ctx, id)
	if err != nil {
		t.fail(fmt.Errorf("collaboration impossible: %w", err))
		return err
	}
	t.dispatch(store.EnableCollaboration{Session: *sess})
	return nil
}

// StopCollaboration ends the collaborative session and clears the state.
func (t *Tracker) StopCollaboration(ctx context.Context, id string) error {
	if err := t.svc.StopCollaboration(ctx, id); err != nil {
		t.fail(fmt.Errorf("fin de collaboration impossible: %w", err))
		return err
	}
	t.dispatch(store.DisableCollaboration{})
	return nil
}

// HandleServiceError is meant to be wired as the service's OnError
// callback by the composition root, so degraded reads and scan failures
// surface in the state and as a notice. Failures of this tracker's own
// in-flight writes are skipped: the operation's return path reports them.
func (t *Tracker) HandleServiceError(err error) {
	t.mu.Lock()
	ownWrite := len(t.pending) > 0
	if !ownWrite {
		t.lastSvcErr = err.Error()
	}
	t.mu.Unlock()
	if ownWrite {
		return
	}
	t.fail(err)
}

// Snapshot returns the current state value. The embedded record map must
// be treated as read-only.
func (t *Tracker) Snapshot() store.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Views returns the derived views for the current state, memoized per
// record-map generation.
func (t *Tracker) Views() store.Views {
	return t.memo.Views(t.Snapshot(), t.now())
}

func (t *Tracker) dispatch(a store.Action) {
	t.mu.Lock()
	t.state = store.Reduce(t.state, a)
	t.mu.Unlock()
}

func (t *Tracker) trackWrite() string {
	corrID := uuid.New().String()
	t.mu.Lock()
	t.pending[corrID] = struct{}{}
	t.mu.Unlock()
	return corrID
}

func (t *Tracker) untrackWrite(corrID string) {
	t.mu.Lock()
	delete(t.pending, corrID)
	t.mu.Unlock()
}

// fail reports one failure on all three channels: callback, state, notice.
func (t *Tracker) fail(err error) {
	if t.opts.OnError != nil {
		t.opts.OnError(err)
	}
	t.dispatch(store.SetErreur{Message: err.Error()})
	t.warn(err.Error())
}

func (t *Tracker) notify(msg string) {
	if t.opts.Notifier != nil {
		t.opts.Notifier.Success(msg)
	}
}

func (t *Tracker) warn(msg string) {
	if t.opts.Notifier != nil {
		t.opts.Notifier.Warning(msg)
	}
}
