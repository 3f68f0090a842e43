package store

import (
	"time"

	"github.com/mverdier/echeancier/internal/transport"
	"github.com/mverdier/echeancier/pkg/echeance"
)

// Action is a store transition request. The set is closed: every
// implementation lives in this package.
type Action interface {
	isAction()
}

// SetLoading toggles the loading flag only.
type SetLoading struct{ Loading bool }

// SetErreur records the failure message and forces loading off.
type SetErreur struct{ Message string }

// SetEcheances wholesale replaces the record map, clears the error, turns
// loading off and stamps the sync time.
type SetEcheances struct {
	Echeances []echeance.Echeance
	At        time.Time
}

// AddEcheance upserts one record.
type AddEcheance struct{ Echeance echeance.Echeance }

// UpdateEcheance shallow-merges a partial patch into an existing record.
// Unknown ids are ignored: the state comes back unchanged.
type UpdateEcheance struct {
	ID    string
	Patch transport.UpdateRequest
}

// DeleteEcheance removes one record if present.
type DeleteEcheance struct{ ID string }

// SetFiltres replaces the active filter set.
type SetFiltres struct{ Filtres echeance.FilterSet }

// SetVueActive replaces the selected saved view (nil deselects).
type SetVueActive struct{ Vue *Vue }

// EnableCollaboration records an open collaborative session.
type EnableCollaboration struct{ Session transport.Session }

// DisableCollaboration clears the collaboration state.
type DisableCollaboration struct{}

func (SetLoading) isAction()           {}
func (SetErreur) isAction()            {}
func (SetEcheances) isAction()         {}
func (AddEcheance) isAction()          {}
func (UpdateEcheance) isAction()       {}
func (DeleteEcheance) isAction()       {}
func (SetFiltres) isAction()           {}
func (SetVueActive) isAction()         {}
func (EnableCollaboration) isAction()  {}
func (DisableCollaboration) isAction() {}

// Reduce is the pure transition function: it returns the state that follows
// from applying one action, never mutating its input. Unknown actions fall
// through to the unchanged state.
func Reduce(s State, a Action) State {
	switch act := a.(type) {
	case SetLoading:
		s.Loading = act.Loading
		return s

	case SetErreur:
		s.Erreur = act.Message
		s.Loading = false
		return s

	case SetEcheances:
		next := make(map[string]echeance.Echeance, len(act.Echeances))
		for _, e := range act.Echeances {
			next[e.ID] = e
		}
		s.Echeances = next
		s.Erreur = ""
		s.Loading = false
		s.LastSync = act.At
		s.Generation++
		return s

	case AddEcheance:
		next := cloneRecords(s.Echeances)
		next[act.Echeance.ID] = act.Echeance
		s.Echeances = next
		s.Generation++
		return s

	case UpdateEcheance:
		current, ok := s.Echeances[act.ID]
		if !ok {
			// Silently ignored: patching an unknown id is a no-op.
			return s
		}
		next := cloneRecords(s.Echeances)
		next[act.ID] = merge(current, act.Patch)
		s.Echeances = next
		s.Generation++
		return s

	case DeleteEcheance:
		if _, ok := s.Echeances[act.ID]; !ok {
			return s
		}
		next := cloneRecords(s.Echeances)
		delete(next, act.ID)
		s.Echeances = next
		s.Generation++
		return s

	case SetFiltres:
		s.Filtres = act.Filtres
		return s

	case SetVueActive:
		s.VueActive = act.Vue
		return s

	case EnableCollaboration:
		sess := act.Session
		s.Collaboration = true
		s.Session = &sess
		return s

	case DisableCollaboration:
		s.Collaboration = false
		s.Session = nil
		return s

	default:
		return s
	}
}

func cloneRecords(in map[string]echeance.Echeance) map[string]echeance.Echeance {
	out := make(map[string]echeance.Echeance, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

// merge applies the non-nil fields of a partial update onto a record copy.
func merge(e echeance.Echeance, p transport.UpdateRequest) echeance.Echeance {
	if p.Nom != nil {
		e.Nom = *p.Nom
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.ClientNom != nil {
		e.ClientNom = *p.ClientNom
	}
	if p.Type != nil {
		e.Type = *p.Type
	}
	if p.Statut != nil {
		e.Statut = *p.Statut
	}
	if p.Urgence != nil {
		e.Urgence = *p.Urgence
	}
	if p.Forfait != nil {
		e.Forfait = *p.Forfait
	}
	if p.DateEcheance != nil {
		e.DateEcheance = *p.DateEcheance
	}
	if p.DateDebut != nil {
		e.DateDebut = p.DateDebut
	}
	if p.DateFin != nil {
		e.DateFin = p.DateFin
	}
	if p.Progression != nil {
		e.Progression = *p.Progression
	}
	if p.Etapes != nil {
		e.Etapes = p.Etapes
	}
	if p.ResponsableID != nil {
		e.ResponsableID = *p.ResponsableID
	}
	if p.Equipe != nil {
		e.Equipe = p.Equipe
	}
	if p.Tags != nil {
		e.Tags = p.Tags
	}
	if p.Details != nil {
		e.Details = p.Details
	}
	return e
}
