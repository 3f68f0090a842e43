package service

import (
	"github.com/mverdier/echeancier/pkg/echeance"
)

// ScanApproaching evaluates every cached non-terminal échéance whose due
// date falls within [now, now+window] and raises a deadline_approaching
// event with the whole days remaining (partial days round up). The stored
// statut is never rewritten - the scan only notifies.
func (s *Service) ScanApproaching() {
	now := s.now()
	horizon := now.Add(s.opts.ApproachingWindow)

	for _, e := range s.snapshot() {
		if e.Statut.Terminal() {
			continue
		}
		if e.DateEcheance.Before(now) || e.DateEcheance.After(horizon) {
			continue
		}

		e := e
		restants := e.JoursRestants(now)

		if s.opts.OnApproaching != nil {
			s.opts.OnApproaching(e, restants)
		}

		s.broadcast(echeance.Event{
			Type:          echeance.EventApproaching,
			EcheanceID:    e.ID,
			Echeance:      &e,
			JoursRestants: restants,
			At:            now,
		})
	}
}

// ScanOverdue evaluates every cached non-terminal échéance whose due date
// is strictly before now and raises an overdue event with the whole days
// elapsed past due (partial days round up). Records due in the future are
// never flagged.
func (s *Service) ScanOverdue() {
	now := s.now()

	for _, e := range s.snapshot() {
		if e.Statut.Terminal() {
			continue
		}
		if !e.DateEcheance.Before(now) {
			continue
		}

		e := e
		retard := e.JoursRetard(now)

		if s.opts.OnOverdue != nil {
			s.opts.OnOverdue(e, retard)
		}

		s.broadcast(echeance.Event{
			Type:        echeance.EventOverdue,
			EcheanceID:  e.ID,
			Echeance:    &e,
			JoursRetard: retard,
			At:          now,
		})
	}
}
