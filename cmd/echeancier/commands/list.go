package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mverdier/echeancier/internal/timespec"
	"github.com/mverdier/echeancier/pkg/echeance"
)

var (
	listJSON         bool
	listTypes        []string
	listStatuts      []string
	listUrgences     []string
	listClients      []string
	listResponsables []string
	listTags         []string
	listEnRetard     bool
	listTerminees    bool
	listRecherche    string
	listDueAfter     string
	listDueBefore    string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List échéances, filtered and sorted by priority",
	Long: `List the échéances known to the backend, most urgent first.

All filter flags are combined with AND: a record must match every supplied
criterion. Completed échéances are hidden unless --terminees is given or
--statut explicitly names COMPLETED.

Examples:
  # Everything still open, most urgent first
  echeancier list

  # Overdue VAT returns for one client
  echeancier list --type TVA --en-retard --client client-42

  # Deadlines falling due in the next two weeks
  echeancier list --due-before 336h

  # Machine-readable output
  echeancier list --json`,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().StringSliceVar(&listTypes, "type", nil, "Filter by type (TVA, IR, IS, BILAN, DECLARATION_ANNUELLE, CLOTURE)")
	listCmd.Flags().StringSliceVar(&listStatuts, "statut", nil, "Filter by statut (PENDING, IN_PROGRESS, UNDER_REVIEW, COMPLETED, CANCELLED)")
	listCmd.Flags().StringSliceVar(&listUrgences, "urgence", nil, "Filter by urgence (LOW, MEDIUM, HIGH, URGENT, CRITICAL)")
	listCmd.Flags().StringSliceVar(&listClients, "client", nil, "Filter by client id")
	listCmd.Flags().StringSliceVar(&listResponsables, "responsable", nil, "Filter by responsable id")
	listCmd.Flags().StringSliceVar(&listTags, "tag", nil, "Keep records carrying at least one of these tags")
	listCmd.Flags().BoolVar(&listEnRetard, "en-retard", false, "Only échéances past their due date")
	listCmd.Flags().BoolVar(&listTerminees, "terminees", false, "Include completed échéances")
	listCmd.Flags().StringVar(&listRecherche, "search", "", "Substring search over nom, description and client")
	listCmd.Flags().StringVar(&listDueAfter, "due-after", "", "Lower due-date bound (duration like '24h' or RFC3339)")
	listCmd.Flags().StringVar(&listDueBefore, "due-before", "", "Upper due-date bound (duration like '336h' or RFC3339)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	filtres, err := buildFilterSet()
	if err != nil {
		return err
	}

	st, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer st.close()

	st.tracker.Load(ctx, filtres)

	snapshot := st.tracker.Snapshot()
	if snapshot.Erreur != "" {
		return fmt.Errorf("load failed: %s", snapshot.Erreur)
	}

	// The state holds only the filtered records; Toutes is already in
	// priority order.
	records := st.tracker.Views().Toutes

	if len(records) == 0 {
		if listJSON {
			fmt.Println("[]")
		} else {
			fmt.Println("No échéances match.")
		}
		return nil
	}

	if listJSON {
		outputEcheancesJSON(records)
	} else {
		outputEcheancesTable(records, time.Now())
	}

	return nil
}

// buildFilterSet translates the list flags into a filter set, validating
// every enum value up front.
func buildFilterSet() (*echeance.FilterSet, error) {
	f := &echeance.FilterSet{
		ClientIDs:         listClients,
		ResponsableIDs:    listResponsables,
		Tags:              listTags,
		EnRetardSeulement: listEnRetard,
		InclureTerminees:  listTerminees,
		Recherche:         listRecherche,
	}

	for _, v := range listTypes {
		typ := echeance.TypeEcheance(v)
		if err := typ.Validate(); err != nil {
			return nil, err
		}
		f.Types = append(f.Types, typ)
	}
	for _, v := range listStatuts {
		statut := echeance.Statut(v)
		if err := statut.Validate(); err != nil {
			return nil, err
		}
		f.Statuts = append(f.Statuts, statut)
	}
	for _, v := range listUrgences {
		urgence := echeance.Urgence(v)
		if err := urgence.Validate(); err != nil {
			return nil, err
		}
		f.Urgences = append(f.Urgences, urgence)
	}

	debut, fin, err := timespec.ParseRange(listDueAfter, listDueBefore)
	if err != nil {
		return nil, err
	}
	f.DateDebut = debut
	f.DateFin = fin

	return f, nil
}

func outputEcheancesJSON(records []echeance.Echeance) {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func outputEcheancesTable(records []echeance.Echeance, now time.Time) {
	// Print header
	fmt.Printf("%-36s %-25s %-20s %-22s %-10s %-12s %s\n",
		"ID", "NOM", "CLIENT", "TYPE", "URGENCE", "ECHEANCE", "STATUT")

	// Print rows
	for _, e := range records {
		statut := string(e.StatutAffiche(now))
		if e.EnRetard(now) {
			statut = fmt.Sprintf("%s (+%dj)", statut, e.JoursRetard(now))
		}

		fmt.Printf("%-36s %-25s %-20s %-22s %-10s %-12s %s\n",
			e.ID,
			truncate(e.Nom, 25),
			truncate(e.ClientNom, 20),
			e.Type,
			e.Urgence,
			e.DateEcheance.Format("2006-01-02"),
			statut)
	}
}

// truncate counts runes, not bytes: accented names must not be cut
// mid-character.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
