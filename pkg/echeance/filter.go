package echeance

import (
	"sort"
	"strings"
	"time"
)

// FilterSet defines filtering criteria for échéances.
// All dimensions are ANDed together - a record must match ALL supplied
// criteria to pass. Empty/zero values are treated as "match all" for that
// dimension.
type FilterSet struct {
	Types          []TypeEcheance `json:"types,omitempty"`
	Statuts        []Statut       `json:"statuts,omitempty"`
	Urgences       []Urgence      `json:"urgences,omitempty"`
	Forfaits       []Forfait      `json:"forfaits,omitempty"`
	ClientIDs      []string       `json:"client_ids,omitempty"`
	ResponsableIDs []string       `json:"responsable_ids,omitempty"`

	// Due-date range, inclusive on both bounds. Zero = no bound.
	DateDebut time.Time `json:"date_debut,omitempty"`
	DateFin   time.Time `json:"date_fin,omitempty"`

	// Progression range, inclusive. Nil = no bound.
	ProgressionMin *int `json:"progression_min,omitempty"`
	ProgressionMax *int `json:"progression_max,omitempty"`

	// EnRetardSeulement keeps only records whose due date is strictly
	// before now.
	EnRetardSeulement bool `json:"en_retard_seulement,omitempty"`

	// InclureTerminees includes COMPLETED records; by default they are
	// excluded unless explicitly listed in Statuts.
	InclureTerminees bool `json:"inclure_terminees,omitempty"`

	// Recherche is a case-insensitive substring match over nom,
	// description and client nom.
	Recherche string `json:"recherche,omitempty"`

	// Tags matches records carrying at least one of the listed tags.
	Tags []string `json:"tags,omitempty"`
}

// Vide reports whether no filter dimension is active.
func (f *FilterSet) Vide() bool {
	return len(f.Types) == 0 &&
		len(f.Statuts) == 0 &&
		len(f.Urgences) == 0 &&
		len(f.Forfaits) == 0 &&
		len(f.ClientIDs) == 0 &&
		len(f.ResponsableIDs) == 0 &&
		f.DateDebut.IsZero() &&
		f.DateFin.IsZero() &&
		f.ProgressionMin == nil &&
		f.ProgressionMax == nil &&
		!f.EnRetardSeulement &&
		!f.InclureTerminees &&
		f.Recherche == "" &&
		len(f.Tags) == 0
}

// Matches returns true if the échéance satisfies every supplied criterion at
// the given instant. The function is pure: it reads e and f only.
func (f *FilterSet) Matches(e *Echeance, now time.Time) bool {
	if len(f.Types) > 0 && !containsType(f.Types, e.Type) {
		return false
	}

	if len(f.Statuts) > 0 {
		if !containsStatut(f.Statuts, e.Statut) {
			return false
		}
	} else if e.Statut == StatutCompleted && !f.InclureTerminees {
		// Completed records are hidden unless asked for.
		return false
	}

	if len(f.Urgences) > 0 && !containsUrgence(f.Urgences, e.Urgence) {
		return false
	}

	if len(f.Forfaits) > 0 && !containsForfait(f.Forfaits, e.Forfait) {
		return false
	}

	if len(f.ClientIDs) > 0 && !containsString(f.ClientIDs, e.ClientID) {
		return false
	}

	if len(f.ResponsableIDs) > 0 && !containsString(f.ResponsableIDs, e.ResponsableID) {
		return false
	}

	if !f.DateDebut.IsZero() && e.DateEcheance.Before(f.DateDebut) {
		return false
	}
	if !f.DateFin.IsZero() && e.DateEcheance.After(f.DateFin) {
		return false
	}

	if f.ProgressionMin != nil && e.Progression < *f.ProgressionMin {
		return false
	}
	if f.ProgressionMax != nil && e.Progression > *f.ProgressionMax {
		return false
	}

	if f.EnRetardSeulement && !e.DateEcheance.Before(now) {
		return false
	}

	if f.Recherche != "" {
		needle := strings.ToLower(f.Recherche)
		haystack := strings.ToLower(e.Nom + " " + e.Description + " " + e.ClientNom)
		if !strings.Contains(haystack, needle) {
			return false
		}
	}

	if len(f.Tags) > 0 && !intersects(f.Tags, e.Tags) {
		return false
	}

	return true
}

// Apply filters a slice of échéances, preserving input order.
// A nil filter matches everything except completed records.
func Apply(records []Echeance, f *FilterSet, now time.Time) []Echeance {
	if f == nil {
		f = &FilterSet{}
	}
	out := make([]Echeance, 0, len(records))
	for i := range records {
		if f.Matches(&records[i], now) {
			out = append(out, records[i])
		}
	}
	return out
}

// SortParPriorite sorts in place by urgency descending, then due date
// ascending, then ID for a stable total order under input permutation.
func SortParPriorite(records []Echeance) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Urgence.Rank() != records[j].Urgence.Rank() {
			return records[i].Urgence.Rank() > records[j].Urgence.Rank()
		}
		if !records[i].DateEcheance.Equal(records[j].DateEcheance) {
			return records[i].DateEcheance.Before(records[j].DateEcheance)
		}
		return records[i].ID < records[j].ID
	})
}

func containsType(list []TypeEcheance, v TypeEcheance) bool {
	for _, t := range list {
		if t == v {
			return true
		}
	}
	return false
}

func containsStatut(list []Statut, v Statut) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsUrgence(list []Urgence, v Urgence) bool {
	for _, u := range list {
		if u == v {
			return true
		}
	}
	return false
}

func containsForfait(list []Forfait, v Forfait) bool {
	for _, f := range list {
		if f == v {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// intersects reports whether the two tag sets share at least one element.
func intersects(want, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if w == h {
				return true
			}
		}
	}
	return false
}
