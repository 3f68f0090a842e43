package echeance

import "fmt"

// TransitionError reports an illegal status transition request.
type TransitionError struct {
	From Statut
	To   Statut
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal statut transition: %s -> %s", e.From, e.To)
}

// transitions is the enforced lifecycle table. A status maps to the set of
// states it may move to. Terminal states map to nothing. Writing the current
// status again is always allowed (idempotent partial updates).
var transitions = map[Statut][]Statut{
	StatutPending:     {StatutInProgress, StatutCancelled},
	StatutInProgress:  {StatutUnderReview, StatutCompleted, StatutCancelled},
	StatutUnderReview: {StatutInProgress, StatutCompleted, StatutCancelled},
	StatutCompleted:   {},
	StatutCancelled:   {},
}

// CanTransition reports whether moving from one stored status to another is
// legal under the lifecycle table. Same-state writes are legal.
func CanTransition(from, to Statut) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition validates a status change request. Both states must be
// valid stored values and the move must be legal under the lifecycle table.
func CheckTransition(from, to Statut) error {
	if err := from.Validate(); err != nil {
		return err
	}
	if err := to.Validate(); err != nil {
		return err
	}
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}
