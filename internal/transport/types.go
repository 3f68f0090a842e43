package transport

import (
	"time"

	"github.com/mverdier/echeancier/pkg/echeance"
)

// CreateRequest is the payload for creating an échéance. The server assigns
// the identifier, creation date and any unset defaults.
type CreateRequest struct {
	Nom           string               `json:"nom"`
	Description   string               `json:"description,omitempty"`
	ClientID      string               `json:"client_id"`
	ClientNom     string               `json:"client_nom"`
	Type          echeance.TypeEcheance `json:"type"`
	Statut        echeance.Statut      `json:"statut,omitempty"`
	Urgence       echeance.Urgence     `json:"urgence,omitempty"`
	Forfait       echeance.Forfait     `json:"forfait,omitempty"`
	DateEcheance  time.Time            `json:"date_echeance"`
	Progression   int                  `json:"progression,omitempty"`
	Etapes        []echeance.Etape     `json:"etapes,omitempty"`
	ResponsableID string               `json:"responsable_id,omitempty"`
	Equipe        []string             `json:"equipe,omitempty"`
	Tags          []string             `json:"tags,omitempty"`
	Details       map[string]string    `json:"details,omitempty"`
}

// UpdateRequest is a partial-update payload. Nil fields are left untouched
// by the server; set fields replace the stored value.
type UpdateRequest struct {
	Nom           *string                `json:"nom,omitempty"`
	Description   *string                `json:"description,omitempty"`
	ClientNom     *string                `json:"client_nom,omitempty"`
	Type          *echeance.TypeEcheance `json:"type,omitempty"`
	Statut        *echeance.Statut       `json:"statut,omitempty"`
	Urgence       *echeance.Urgence      `json:"urgence,omitempty"`
	Forfait       *echeance.Forfait      `json:"forfait,omitempty"`
	DateEcheance  *time.Time             `json:"date_echeance,omitempty"`
	DateDebut     *time.Time             `json:"date_debut,omitempty"`
	DateFin       *time.Time             `json:"date_fin,omitempty"`
	Progression   *int                   `json:"progression,omitempty"`
	Etapes        []echeance.Etape       `json:"etapes,omitempty"`
	ResponsableID *string                `json:"responsable_id,omitempty"`
	Equipe        []string               `json:"equipe,omitempty"`
	Tags          []string               `json:"tags,omitempty"`
	Details       map[string]string      `json:"details,omitempty"`
}

// AnalyticsSummary is the server-computed aggregate for a reporting period.
// Stateless passthrough: the client never caches it.
type AnalyticsSummary struct {
	Periode         string         `json:"periode"`
	Total           int            `json:"total"`
	Terminees       int            `json:"terminees"`
	EnRetard        int            `json:"en_retard"`
	TauxCompletion  float64        `json:"taux_completion"`
	RetardMoyenJours float64       `json:"retard_moyen_jours"`
	ParType         map[string]int `json:"par_type,omitempty"`
	ParStatut       map[string]int `json:"par_statut,omitempty"`
}

// Session describes an active collaborative-editing session on one échéance.
type Session struct {
	ID           string    `json:"id"`
	EcheanceID   string    `json:"echeance_id"`
	StartedAt    time.Time `json:"started_at"`
	Participants []string  `json:"participants,omitempty"`
}
