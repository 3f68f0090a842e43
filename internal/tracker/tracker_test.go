package tracker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mverdier/echeancier/internal/service"
	"github.com/mverdier/echeancier/internal/store"
	"github.com/mverdier/echeancier/internal/transport"
	"github.com/mverdier/echeancier/pkg/echeance"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// fakeAPI is an in-memory stand-in for the backend.
type fakeAPI struct {
	mu        sync.Mutex
	records   map[string]echeance.Echeance
	listCalls int
	failList  bool
	failWrite bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{records: make(map[string]echeance.Echeance)}
}

func (f *fakeAPI) seed(e echeance.Echeance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[e.ID] = e
}

func (f *fakeAPI) List(ctx context.Context, filtres *echeance.FilterSet) ([]echeance.Echeance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.failList {
		return nil, fmt.Errorf("backend unavailable")
	}
	out := make([]echeance.Echeance, 0, len(f.records))
	for _, e := range f.records {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeAPI) Get(ctx context.Context, id string) (*echeance.Echeance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.records[id]
	if !ok {
		return nil, transport.ErrNotFound
	}
	return &e, nil
}

func (f *fakeAPI) Create(ctx context.Context, req transport.CreateRequest, correlationID string) (*echeance.Echeance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite {
		return nil, fmt.Errorf("backend unavailable")
	}
	e := echeance.Echeance{
		ID:           uuid.New().String(),
		Nom:          req.Nom,
		ClientID:     req.ClientID,
		ClientNom:    req.ClientNom,
		Type:         req.Type,
		Statut:       echeance.StatutPending,
		Urgence:      echeance.UrgenceMedium,
		Forfait:      echeance.ForfaitIn,
		CreatedAt:    testNow,
		DateEcheance: req.DateEcheance,
	}
	if req.Statut != "" {
		e.Statut = req.Statut
	}
	if req.Urgence != "" {
		e.Urgence = req.Urgence
	}
	f.records[e.ID] = e
	return &e, nil
}

func (f *fakeAPI) Update(ctx context.Context, id string, req transport.UpdateRequest, correlationID string) (*echeance.Echeance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite {
		return nil, fmt.Errorf("backend unavailable")
	}
	e, ok := f.records[id]
	if !ok {
		return nil, transport.ErrNotFound
	}
	if req.Nom != nil {
		e.Nom = *req.Nom
	}
	if req.Statut != nil {
		e.Statut = *req.Statut
	}
	if req.Progression != nil {
		e.Progression = *req.Progression
	}
	f.records[id] = e
	return &e, nil
}

func (f *fakeAPI) Delete(ctx context.Context, id string, correlationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite {
		return fmt.Errorf("backend unavailable")
	}
	delete(f.records, id)
	return nil
}

func (f *fakeAPI) Analytics(ctx context.Context, periode string) (*transport.AnalyticsSummary, error) {
	return &transport.AnalyticsSummary{Periode: periode}, nil
}

func (f *fakeAPI) StartCollaboration(ctx context.Context, id string) (*transport.Session, error) {
	return &transport.Session{ID: "sess-" + id, EcheanceID: id, StartedAt: testNow}, nil
}

func (f *fakeAPI) StopCollaboration(ctx context.Context, id string) error {
	return nil
}

// newWiredTracker builds a service and tracker connected both ways: the
// tracker subscribes to the service, and the service's OnError feeds
// HandleServiceError, the way the CLI composition root wires them.
func newWiredTracker(t *testing.T, backend *fakeAPI) (*Tracker, *recordingNotifier) {
	t.Helper()

	var tr *Tracker
	svc, err := service.New(backend, service.Options{
		Clock: func() time.Time { return testNow },
		OnError: func(e error) {
			if tr != nil {
				tr.HandleServiceError(e)
			}
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	notifier := &recordingNotifier{}
	tr, err = New(svc, Options{
		Notifier: notifier,
		Clock:    func() time.Time { return testNow },
	})
	require.NoError(t, err)
	t.Cleanup(tr.Close)

	return tr, notifier
}

// recordingNotifier captures notices for assertions.
type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	warnings  []string
}

func (n *recordingNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *recordingNotifier) Warning(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warnings = append(n.warnings, msg)
}

func (n *recordingNotifier) lastWarning() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.warnings) == 0 {
		return ""
	}
	return n.warnings[len(n.warnings)-1]
}

func newTestTracker(t *testing.T, backend *fakeAPI) (*Tracker, *recordingNotifier) {
	t.Helper()

	svc, err := service.New(backend, service.Options{Clock: func() time.Time { return testNow }})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	notifier := &recordingNotifier{}
	tr, err := New(svc, Options{
		Notifier: notifier,
		Clock:    func() time.Time { return testNow },
	})
	require.NoError(t, err)
	t.Cleanup(tr.Close)

	return tr, notifier
}

func seedRecord(id string) echeance.Echeance {
	return echeance.Echeance{
		ID:           id,
		Nom:          "Dossier " + id,
		ClientID:     "client-" + id,
		ClientNom:    "Client " + id,
		Type:         echeance.TypeTVA,
		Statut:       echeance.StatutPending,
		Urgence:      echeance.UrgenceMedium,
		Forfait:      echeance.ForfaitIn,
		CreatedAt:    testNow,
		DateEcheance: testNow.Add(5 * 24 * time.Hour),
	}
}

func TestNewRequiresService(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)
}

func TestLoadPopulatesState(t *testing.T) {
	backend := newFakeAPI()
	backend.seed(seedRecord("a"))
	backend.seed(seedRecord("b"))
	tr, _ := newTestTracker(t, backend)

	tr.Load(context.Background(), nil)

	s := tr.Snapshot()
	assert.Len(t, s.Echeances, 2)
	assert.False(t, s.Loading)
	assert.Empty(t, s.Erreur)
	assert.Equal(t, testNow, s.LastSync)
}

func TestCreateAppliesOnceAndNotifies(t *testing.T) {
	backend := newFakeAPI()
	tr, notifier := newTestTracker(t, backend)
	tr.Load(context.Background(), nil)
	gen := tr.Snapshot().Generation

	created, err := tr.Create(context.Background(), transport.CreateRequest{
		Nom:          "Déclaration TVA mars",
		ClientID:     "client-1",
		ClientNom:    "SARL Martin",
		Type:         echeance.TypeTVA,
		DateEcheance: testNow.Add(72 * time.Hour),
	})
	require.NoError(t, err)

	s := tr.Snapshot()
	assert.Contains(t, s.Echeances, created.ID)

	// The service broadcast carried this tracker's correlation id, so only
	// the direct return path touched the state: exactly one generation bump.
	assert.Equal(t, gen+1, s.Generation)

	require.Len(t, notifier.successes, 1)
	assert.Contains(t, notifier.successes[0], "Déclaration TVA mars")
}

func TestForeignEventsApplyToState(t *testing.T) {
	backend := newFakeAPI()

	svc, err := service.New(backend, service.Options{Clock: func() time.Time { return testNow }})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	observer, err := New(svc, Options{Clock: func() time.Time { return testNow }})
	require.NoError(t, err)
	t.Cleanup(observer.Close)

	writer, err := New(svc, Options{Clock: func() time.Time { return testNow }})
	require.NoError(t, err)
	t.Cleanup(writer.Close)

	created, err := writer.Create(context.Background(), transport.CreateRequest{
		Nom:          "Bilan annuel",
		ClientID:     "client-2",
		ClientNom:    "SAS Dupont",
		Type:         echeance.TypeBilan,
		DateEcheance: testNow.Add(30 * 24 * time.Hour),
	})
	require.NoError(t, err)

	// The observer did not originate the write, so the broadcast applies.
	assert.Contains(t, observer.Snapshot().Echeances, created.ID)

	require.NoError(t, writer.Delete(context.Background(), created.ID))
	assert.NotContains(t, observer.Snapshot().Echeances, created.ID)
}

func TestUpdateMergesIntoState(t *testing.T) {
	backend := newFakeAPI()
	backend.seed(seedRecord("a"))
	tr, _ := newTestTracker(t, backend)
	tr.Load(context.Background(), nil)

	statut := echeance.StatutInProgress
	progression := 40
	_, err := tr.Update(context.Background(), "a", transport.UpdateRequest{Statut: &statut, Progression: &progression})
	require.NoError(t, err)

	got := tr.Snapshot().Echeances["a"]
	assert.Equal(t, echeance.StatutInProgress, got.Statut)
	assert.Equal(t, 40, got.Progression)
	assert.Equal(t, "Dossier a", got.Nom)
}

func TestFailedUpdateReportsEverywhere(t *testing.T) {
	backend := newFakeAPI()
	backend.seed(seedRecord("a"))

	svc, err := service.New(backend, service.Options{Clock: func() time.Time { return testNow }})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	var reported error
	notifier := &recordingNotifier{}
	tr, err := New(svc, Options{
		Notifier: notifier,
		OnError:  func(e error) { reported = e },
		Clock:    func() time.Time { return testNow },
	})
	require.NoError(t, err)
	t.Cleanup(tr.Close)

	tr.Load(context.Background(), nil)

	// PENDING cannot jump straight to COMPLETED.
	statut := echeance.StatutCompleted
	progression := 100
	_, err = tr.Update(context.Background(), "a", transport.UpdateRequest{Statut: &statut, Progression: &progression})
	require.Error(t, err)

	assert.Error(t, reported)
	assert.NotEmpty(t, tr.Snapshot().Erreur)
	assert.NotEmpty(t, notifier.lastWarning())
	assert.Equal(t, echeance.StatutPending, tr.Snapshot().Echeances["a"].Statut, "state untouched on failure")
}

func TestDegradedLoadKeepsErrorVisible(t *testing.T) {
	backend := newFakeAPI()
	tr, notifier := newWiredTracker(t, backend)

	backend.mu.Lock()
	backend.failList = true
	backend.mu.Unlock()

	tr.Load(context.Background(), nil)

	s := tr.Snapshot()
	assert.NotEmpty(t, s.Erreur, "a degraded load must stay visible in the state")
	assert.False(t, s.Loading)
	assert.NotEmpty(t, notifier.lastWarning())

	t.Run("a successful reload clears the error", func(t *testing.T) {
		backend.mu.Lock()
		backend.failList = false
		backend.records["a"] = seedRecord("a")
		backend.mu.Unlock()

		tr.Load(context.Background(), nil)

		s := tr.Snapshot()
		assert.Empty(t, s.Erreur)
		assert.Contains(t, s.Echeances, "a")
	})
}

func TestOwnWriteFailureReportedOnce(t *testing.T) {
	backend := newFakeAPI()
	tr, notifier := newWiredTracker(t, backend)

	backend.mu.Lock()
	backend.failWrite = true
	backend.mu.Unlock()

	_, err := tr.Create(context.Background(), transport.CreateRequest{
		Nom:          "TVA mai",
		ClientID:     "client-3",
		ClientNom:    "EURL Petit",
		Type:         echeance.TypeTVA,
		DateEcheance: testNow.Add(72 * time.Hour),
	})
	require.Error(t, err)

	// The service's OnError also fired for this write, but only the
	// operation's own failure path may surface it.
	notifier.mu.Lock()
	warnings := len(notifier.warnings)
	notifier.mu.Unlock()
	assert.Equal(t, 1, warnings)
	assert.NotEmpty(t, tr.Snapshot().Erreur)
}

func TestDeleteRemovesFromState(t *testing.T) {
	backend := newFakeAPI()
	backend.seed(seedRecord("a"))
	tr, notifier := newTestTracker(t, backend)
	tr.Load(context.Background(), nil)

	require.NoError(t, tr.Delete(context.Background(), "a"))
	assert.NotContains(t, tr.Snapshot().Echeances, "a")
	assert.NotEmpty(t, notifier.successes)
}

func TestApplyAndClearFiltres(t *testing.T) {
	backend := newFakeAPI()
	backend.seed(seedRecord("a"))
	tr, _ := newTestTracker(t, backend)

	f := echeance.FilterSet{Types: []echeance.TypeEcheance{echeance.TypeBilan}}
	tr.ApplyFiltres(context.Background(), f)
	assert.Equal(t, f, tr.Snapshot().Filtres)

	tr.ClearFiltres(context.Background())
	filtres := tr.Snapshot().Filtres
	assert.True(t, filtres.Vide())
}

func TestSetVueActiveReloadsWithViewFilters(t *testing.T) {
	backend := newFakeAPI()
	backend.seed(seedRecord("a"))
	tr, _ := newTestTracker(t, backend)
	tr.Load(context.Background(), nil)

	backend.mu.Lock()
	before := backend.listCalls
	backend.mu.Unlock()

	vue := &store.Vue{
		ID:      "v1",
		Nom:     "Critiques",
		Filtres: echeance.FilterSet{Urgences: []echeance.Urgence{echeance.UrgenceCritical}},
	}
	tr.SetVueActive(context.Background(), vue)

	s := tr.Snapshot()
	require.NotNil(t, s.VueActive)
	assert.Equal(t, "Critiques", s.VueActive.Nom)
	assert.Equal(t, vue.Filtres, s.Filtres)

	backend.mu.Lock()
	assert.Equal(t, before+1, backend.listCalls, "selecting a view reloads")
	backend.mu.Unlock()

	t.Run("deselecting does not reload", func(t *testing.T) {
		backend.mu.Lock()
		before := backend.listCalls
		backend.mu.Unlock()

		tr.SetVueActive(context.Background(), nil)
		assert.Nil(t, tr.Snapshot().VueActive)

		backend.mu.Lock()
		assert.Equal(t, before, backend.listCalls)
		backend.mu.Unlock()
	})
}

func TestCollaborationLifecycle(t *testing.T) {
	backend := newFakeAPI()
	backend.seed(seedRecord("a"))
	tr, _ := newTestTracker(t, backend)

	require.NoError(t, tr.StartCollaboration(context.Background(), "a"))
	s := tr.Snapshot()
	assert.True(t, s.Collaboration)
	require.NotNil(t, s.Session)
	assert.Equal(t, "a", s.Session.EcheanceID)

	require.NoError(t, tr.StopCollaboration(context.Background(), "a"))
	s = tr.Snapshot()
	assert.False(t, s.Collaboration)
	assert.Nil(t, s.Session)
}

func TestViewsFollowState(t *testing.T) {
	backend := newFakeAPI()
	backend.seed(seedRecord("a"))
	backend.seed(seedRecord("b"))
	tr, _ := newTestTracker(t, backend)
	tr.Load(context.Background(), nil)

	v := tr.Views()
	assert.Equal(t, 2, v.Stats.Total)

	require.NoError(t, tr.Delete(context.Background(), "a"))
	v = tr.Views()
	assert.Equal(t, 1, v.Stats.Total)
}
