// Package store holds the UI-facing projection of the échéance cache: an
// immutable-feeling State advanced by a pure reducer, plus memoized derived
// views (counts, histograms, prioritized upcoming list).
//
// The service cache stays authoritative; this state is a read-mostly
// projection rebuilt from cache snapshots and targeted patches.
package store

import (
	"time"

	"github.com/mverdier/echeancier/internal/transport"
	"github.com/mverdier/echeancier/pkg/echeance"
)

// Vue is a saved view: a named, reusable filter set.
type Vue struct {
	ID      string             `json:"id"`
	Nom     string             `json:"nom"`
	Filtres echeance.FilterSet `json:"filtres"`
}

// State is the full store state. Treat it as a value: the reducer never
// mutates an input state, and consumers must not write to the Echeances map
// they are handed.
type State struct {
	// Echeances maps id to record and is authoritative for what the
	// consumer currently believes.
	Echeances map[string]echeance.Echeance

	Filtres   echeance.FilterSet
	VueActive *Vue

	Loading  bool
	Erreur   string
	LastSync time.Time

	Collaboration bool
	Session       *transport.Session

	// Generation increments whenever the record map changes; derived
	// views recompute only on a generation bump.
	Generation uint64
}

// NewState returns an empty initial state.
func NewState() State {
	return State{Echeances: make(map[string]echeance.Echeance)}
}

// Toutes returns the records as a slice, unsorted. The slice is fresh; the
// records are copies.
func (s State) Toutes() []echeance.Echeance {
	out := make([]echeance.Echeance, 0, len(s.Echeances))
	for _, e := range s.Echeances {
		out = append(out, e)
	}
	return out
}
