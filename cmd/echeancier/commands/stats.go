package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	statsJSON    bool
	statsPeriode string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show deadline statistics",
	Long: `Show dashboard counters for the current deadline collection, and
optionally the server-computed analytics for a reporting period.

Examples:
  echeancier stats
  echeancier stats --periode 2026-Q1`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output in JSON format")
	statsCmd.Flags().StringVar(&statsPeriode, "periode", "", "Reporting period for server-side analytics")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	st, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer st.close()

	st.tracker.Load(ctx, nil)
	snapshot := st.tracker.Snapshot()
	if snapshot.Erreur != "" {
		return fmt.Errorf("load failed: %s", snapshot.Erreur)
	}

	views := st.tracker.Views()

	if statsJSON {
		out := map[string]any{
			"stats":           views.Stats,
			"par_type":        views.ParType,
			"par_statut":      views.ParStatut,
			"par_responsable": views.ParResponsable,
		}
		if statsPeriode != "" {
			summary, err := st.service.Analytics(ctx, statsPeriode)
			if err != nil {
				return err
			}
			out["analytics"] = summary
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal stats: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	s := views.Stats
	fmt.Printf("Echéances:   %d\n", s.Total)
	fmt.Printf("  Terminées: %d\n", s.Terminees)
	fmt.Printf("  En cours:  %d\n", s.EnCours)
	fmt.Printf("  En retard: %d\n", s.EnRetard)
	fmt.Printf("  Urgentes:  %d\n", s.Urgentes)

	if len(views.ParType) > 0 {
		fmt.Println()
		fmt.Println("Par type:")
		for typ, n := range views.ParType {
			fmt.Printf("  %-22s %d\n", typ, n)
		}
	}

	if len(views.Prochaines) > 0 {
		fmt.Println()
		fmt.Printf("A venir sous 7 jours: %d\n", len(views.Prochaines))
		for _, e := range views.Prochaines {
			fmt.Printf("  %s  %-10s %s (%s)\n",
				e.DateEcheance.Format("2006-01-02"), e.Urgence, e.Nom, e.ClientNom)
		}
	}

	if statsPeriode != "" {
		summary, err := st.service.Analytics(ctx, statsPeriode)
		if err != nil {
			return err
		}
		fmt.Println()
		fmt.Printf("Période %s:\n", summary.Periode)
		fmt.Printf("  Total:            %d\n", summary.Total)
		fmt.Printf("  Terminées:        %d\n", summary.Terminees)
		fmt.Printf("  En retard:        %d\n", summary.EnRetard)
		fmt.Printf("  Taux complétion:  %.1f%%\n", summary.TauxCompletion*100)
		fmt.Printf("  Retard moyen:     %.1f jours\n", summary.RetardMoyenJours)
	}

	return nil
}
