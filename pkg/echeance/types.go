package echeance

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Echeance represents a single tracked deadline for a client of the firm.
// The service's in-memory cache is the authoritative owner of instances;
// consumers receive copies and mutate only through the service operations.
type Echeance struct {
	ID           string            `json:"id"`                      // UUID - unique identifier for this deadline
	Nom          string            `json:"nom"`                     // Short display name
	Description  string            `json:"description,omitempty"`   // Free-text description
	ClientID     string            `json:"client_id"`               // UUID of the client this deadline belongs to
	ClientNom    string            `json:"client_nom"`              // Client display name (denormalized for search)
	Type         TypeEcheance      `json:"type"`                    // Fiscal/accounting obligation category
	Statut       Statut            `json:"statut"`                  // Lifecycle state (see transition table)
	Urgence      Urgence           `json:"urgence"`                 // Ordinal severity, primary sort key
	Forfait      Forfait           `json:"forfait"`                 // Billing plan: fixed fee vs time-and-materials
	CreatedAt    time.Time         `json:"created_at"`
	DateEcheance time.Time         `json:"date_echeance"`           // Due date, required
	DateDebut    *time.Time        `json:"date_debut,omitempty"`    // Actual start, if work has begun
	DateFin      *time.Time        `json:"date_fin,omitempty"`      // Actual end, if work has finished
	Progression  int               `json:"progression"`             // Completion percentage, 0-100
	Etapes       []Etape           `json:"etapes,omitempty"`        // Ordered sub-steps
	ResponsableID string           `json:"responsable_id,omitempty"` // Principal responsible
	Equipe       []string          `json:"equipe,omitempty"`        // Additional team members
	Tags         []string          `json:"tags,omitempty"`
	Details      map[string]string `json:"details,omitempty"` // Arbitrary key/value details
}

// Etape is one ordered sub-step of an échéance.
type Etape struct {
	Nom           string  `json:"nom"`
	Statut        Statut  `json:"statut"`
	ChargeEstimee float64 `json:"charge_estimee,omitempty"` // Estimated effort, hours
	ChargeReelle  float64 `json:"charge_reelle,omitempty"`  // Actual effort, hours
}

// TypeEcheance is the closed set of obligation categories the firm tracks.
type TypeEcheance string

const (
	TypeTVA                 TypeEcheance = "TVA"                  // VAT return
	TypeIR                  TypeEcheance = "IR"                   // Personal income tax
	TypeIS                  TypeEcheance = "IS"                   // Corporate tax
	TypeBilan               TypeEcheance = "BILAN"                // Balance sheet
	TypeDeclarationAnnuelle TypeEcheance = "DECLARATION_ANNUELLE" // Annual declaration
	TypeCloture             TypeEcheance = "CLOTURE"              // Fiscal-year closing
)

// Statut is the lifecycle state of an échéance.
//
// PENDING → IN_PROGRESS → COMPLETED is the expected forward path.
// UNDER_REVIEW is a side branch reachable from IN_PROGRESS. CANCELLED is
// reachable from any non-terminal state. COMPLETED and CANCELLED are terminal.
// OVERDUE is a derived overlay computed from the due date; it is never written
// to the stored status and never accepted by the transition table.
type Statut string

const (
	StatutPending     Statut = "PENDING"
	StatutInProgress  Statut = "IN_PROGRESS"
	StatutUnderReview Statut = "UNDER_REVIEW"
	StatutCompleted   Statut = "COMPLETED"
	StatutCancelled   Statut = "CANCELLED"

	// StatutOverdue is derived from due-date comparison for display only.
	StatutOverdue Statut = "OVERDUE"
)

// Urgence is an ordinal severity classification, independent of due-date
// proximity. CRITICAL > URGENT > HIGH > MEDIUM > LOW.
type Urgence string

const (
	UrgenceLow      Urgence = "LOW"
	UrgenceMedium   Urgence = "MEDIUM"
	UrgenceHigh     Urgence = "HIGH"
	UrgenceUrgent   Urgence = "URGENT"
	UrgenceCritical Urgence = "CRITICAL"
)

// Forfait distinguishes fixed-fee from time-and-materials engagements.
type Forfait string

const (
	ForfaitIn  Forfait = "IN"  // Fixed fee
	ForfaitOut Forfait = "OUT" // Time and materials
)

// Validate checks if the Echeance has valid field values.
// Returns an error if any validation fails.
func (e *Echeance) Validate() error {
	if !isValidUUID(e.ID) {
		return fmt.Errorf("invalid echeance ID: not a valid UUID")
	}

	if e.Nom == "" {
		return fmt.Errorf("nom cannot be empty")
	}

	if e.ClientID == "" {
		return fmt.Errorf("client_id cannot be empty")
	}

	if err := e.Type.Validate(); err != nil {
		return fmt.Errorf("invalid type: %w", err)
	}

	if err := e.Statut.Validate(); err != nil {
		return fmt.Errorf("invalid statut: %w", err)
	}

	if err := e.Urgence.Validate(); err != nil {
		return fmt.Errorf("invalid urgence: %w", err)
	}

	if err := e.Forfait.Validate(); err != nil {
		return fmt.Errorf("invalid forfait: %w", err)
	}

	if e.DateEcheance.IsZero() {
		return fmt.Errorf("date_echeance is required")
	}

	if e.Progression < 0 || e.Progression > 100 {
		return fmt.Errorf("progression must be in [0,100], got %d", e.Progression)
	}

	// A completed deadline must be fully progressed.
	if e.Statut == StatutCompleted && e.Progression != 100 {
		return fmt.Errorf("statut COMPLETED requires progression 100, got %d", e.Progression)
	}

	for i, etape := range e.Etapes {
		if etape.Nom == "" {
			return fmt.Errorf("etape at index %d: nom cannot be empty", i)
		}
		if err := etape.Statut.Validate(); err != nil {
			return fmt.Errorf("etape at index %d: %w", i, err)
		}
	}

	return nil
}

// Validate checks if the TypeEcheance is a valid enum value.
func (t TypeEcheance) Validate() error {
	switch t {
	case TypeTVA, TypeIR, TypeIS, TypeBilan, TypeDeclarationAnnuelle, TypeCloture:
		return nil
	default:
		return fmt.Errorf("unknown type echeance: %q", t)
	}
}

// Validate checks if the Statut is a valid stored enum value.
// StatutOverdue is rejected: it is derived, never stored.
func (s Statut) Validate() error {
	switch s {
	case StatutPending, StatutInProgress, StatutUnderReview, StatutCompleted, StatutCancelled:
		return nil
	case StatutOverdue:
		return fmt.Errorf("statut OVERDUE is derived and cannot be stored")
	default:
		return fmt.Errorf("unknown statut: %q", s)
	}
}

// Terminal reports whether the status is a terminal lifecycle state.
func (s Statut) Terminal() bool {
	return s == StatutCompleted || s == StatutCancelled
}

// Validate checks if the Urgence is a valid enum value.
func (u Urgence) Validate() error {
	switch u {
	case UrgenceLow, UrgenceMedium, UrgenceHigh, UrgenceUrgent, UrgenceCritical:
		return nil
	default:
		return fmt.Errorf("unknown urgence: %q", u)
	}
}

// Rank returns the ordinal position of the urgency (higher is more severe).
// Unknown values rank below LOW so they sort last.
func (u Urgence) Rank() int {
	switch u {
	case UrgenceCritical:
		return 5
	case UrgenceUrgent:
		return 4
	case UrgenceHigh:
		return 3
	case UrgenceMedium:
		return 2
	case UrgenceLow:
		return 1
	default:
		return 0
	}
}

// Validate checks if the Forfait is a valid enum value.
func (f Forfait) Validate() error {
	switch f {
	case ForfaitIn, ForfaitOut:
		return nil
	default:
		return fmt.Errorf("unknown forfait: %q", f)
	}
}

// EnRetard reports whether the échéance is past due and not terminal at the
// given instant. This is the derived OVERDUE overlay.
func (e *Echeance) EnRetard(now time.Time) bool {
	return !e.Statut.Terminal() && e.DateEcheance.Before(now)
}

// StatutAffiche returns the status to display at the given instant:
// the stored status, or OVERDUE when the deadline is past due.
func (e *Echeance) StatutAffiche(now time.Time) Statut {
	if e.EnRetard(now) {
		return StatutOverdue
	}
	return e.Statut
}

// JoursRestants returns the whole days remaining until the due date,
// rounding partial days up. Negative when the deadline is past due.
func (e *Echeance) JoursRestants(now time.Time) int {
	return ceilDays(e.DateEcheance.Sub(now))
}

// JoursRetard returns the whole days elapsed past the due date, rounding
// partial days up. Zero or negative when the deadline is not yet due.
func (e *Echeance) JoursRetard(now time.Time) int {
	return ceilDays(now.Sub(e.DateEcheance))
}

// ceilDays converts a duration to whole days, rounding toward positive
// infinity for positive remainders.
func ceilDays(d time.Duration) int {
	day := 24 * time.Hour
	days := d / day
	if d%day > 0 {
		days++
	}
	return int(days)
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
