package store

import (
	"sync"
	"time"

	"github.com/mverdier/echeancier/pkg/echeance"
)

// ProchainesWindow bounds the "upcoming" derived view: records due within
// the next seven days.
const ProchainesWindow = 7 * 24 * time.Hour

// Stats aggregates the record map for dashboard counters.
type Stats struct {
	Total     int
	Terminees int
	EnCours   int
	EnRetard  int // due-date strictly past, non-terminal
	Urgentes  int // urgence URGENT or CRITICAL, non-terminal
}

// Views are the derived, read-only projections of one state generation.
type Views struct {
	// Toutes is every record sorted by urgency descending then due date
	// ascending.
	Toutes []echeance.Echeance

	Stats     Stats
	ParType   map[echeance.TypeEcheance]int
	ParStatut map[echeance.Statut]int

	// Prochaines holds the non-terminal records due within the next seven
	// days, same priority order as Toutes.
	Prochaines []echeance.Echeance

	ParResponsable map[string]int
}

// Derive computes the views for a state snapshot at the given instant.
// Pure: the state is only read.
func Derive(s State, now time.Time) Views {
	v := Views{
		Toutes:         s.Toutes(),
		ParType:        make(map[echeance.TypeEcheance]int),
		ParStatut:      make(map[echeance.Statut]int),
		ParResponsable: make(map[string]int),
	}
	echeance.SortParPriorite(v.Toutes)

	horizon := now.Add(ProchainesWindow)

	for _, e := range v.Toutes {
		v.Stats.Total++
		v.ParType[e.Type]++
		v.ParStatut[e.Statut]++
		if e.ResponsableID != "" {
			v.ParResponsable[e.ResponsableID]++
		}

		switch e.Statut {
		case echeance.StatutCompleted:
			v.Stats.Terminees++
		case echeance.StatutInProgress:
			v.Stats.EnCours++
		}

		if e.EnRetard(now) {
			v.Stats.EnRetard++
		}

		if !e.Statut.Terminal() && (e.Urgence == echeance.UrgenceUrgent || e.Urgence == echeance.UrgenceCritical) {
			v.Stats.Urgentes++
		}

		if !e.Statut.Terminal() && !e.DateEcheance.Before(now) && !e.DateEcheance.After(horizon) {
			v.Prochaines = append(v.Prochaines, e)
		}
	}

	return v
}

// Memo caches Derive results per state generation, so repeated reads of an
// unchanged record map do not recompute the aggregates.
type Memo struct {
	mu     sync.Mutex
	gen    uint64
	primed bool
	views  Views
}

// Views returns the derived views for the state, recomputing only when the
// record-map generation changed since the last call.
func (m *Memo) Views(s State, now time.Time) Views {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.primed && m.gen == s.Generation {
		return m.views
	}

	m.views = Derive(s, now)
	m.gen = s.Generation
	m.primed = true
	return m.views
}
