package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mverdier/echeancier/internal/transport"
	"github.com/mverdier/echeancier/pkg/echeance"
)

type flagged struct {
	id    string
	jours int
}

func TestScanApproaching(t *testing.T) {
	backend := newFakeAPI()
	var hits []flagged
	svc := newTestService(t, backend, Options{
		ApproachingWindow: 72 * time.Hour,
		OnApproaching:     func(e echeance.Echeance, jours int) { hits = append(hits, flagged{e.ID, jours}) },
	})
	ctx := context.Background()

	soon, err := svc.Create(ctx, createReq("TVA", testNow.Add(48*time.Hour)), "")
	require.NoError(t, err)

	// Completed record with the same due date must not be flagged.
	doneReq := createReq("Bilan", testNow.Add(48*time.Hour))
	done, err := svc.Create(ctx, doneReq, "")
	require.NoError(t, err)
	statut := echeance.StatutInProgress
	_, err = svc.Update(ctx, done.ID, transport.UpdateRequest{Statut: &statut}, "")
	require.NoError(t, err)
	statut = echeance.StatutCompleted
	progression := 100
	_, err = svc.Update(ctx, done.ID, transport.UpdateRequest{Statut: &statut, Progression: &progression}, "")
	require.NoError(t, err)

	// Outside the 3-day window.
	_, err = svc.Create(ctx, createReq("Clôture", testNow.Add(10*24*time.Hour)), "")
	require.NoError(t, err)

	// Already past due: approaching does not cover it.
	_, err = svc.Create(ctx, createReq("IR", testNow.Add(-24*time.Hour)), "")
	require.NoError(t, err)

	var events []echeance.Event
	svc.Subscribe(func(ev echeance.Event) { events = append(events, ev) })

	svc.ScanApproaching()

	require.Len(t, hits, 1)
	assert.Equal(t, soon.ID, hits[0].id)
	assert.Equal(t, 2, hits[0].jours)

	require.Len(t, events, 1)
	assert.Equal(t, echeance.EventApproaching, events[0].Type)
	assert.Equal(t, 2, events[0].JoursRestants)
}

func TestScanOverdue(t *testing.T) {
	backend := newFakeAPI()
	var hits []flagged
	svc := newTestService(t, backend, Options{
		OnOverdue: func(e echeance.Echeance, jours int) { hits = append(hits, flagged{e.ID, jours}) },
	})
	ctx := context.Background()

	late, err := svc.Create(ctx, createReq("TVA février", testNow.Add(-72*time.Hour)), "")
	require.NoError(t, err)

	// Future due date is never flagged.
	_, err = svc.Create(ctx, createReq("TVA avril", testNow.Add(72*time.Hour)), "")
	require.NoError(t, err)

	// Cancelled record past due is not flagged either.
	cancelled, err := svc.Create(ctx, createReq("Ancien dossier", testNow.Add(-240*time.Hour)), "")
	require.NoError(t, err)
	statut := echeance.StatutCancelled
	_, err = svc.Update(ctx, cancelled.ID, transport.UpdateRequest{Statut: &statut}, "")
	require.NoError(t, err)

	svc.ScanOverdue()

	require.Len(t, hits, 1)
	assert.Equal(t, late.ID, hits[0].id)
	assert.Equal(t, 3, hits[0].jours)
}

func TestScanDoesNotRewriteStatus(t *testing.T) {
	backend := newFakeAPI()
	svc := newTestService(t, backend, Options{OnOverdue: func(echeance.Echeance, int) {}})
	ctx := context.Background()

	late, err := svc.Create(ctx, createReq("URSSAF", testNow.Add(-48*time.Hour)), "")
	require.NoError(t, err)

	svc.ScanOverdue()

	got := svc.Get(ctx, late.ID)
	require.NotNil(t, got)
	// The stored statut stays PENDING; OVERDUE is a display overlay.
	assert.Equal(t, echeance.StatutPending, got.Statut)
	assert.Equal(t, echeance.StatutOverdue, got.StatutAffiche(testNow))
}
