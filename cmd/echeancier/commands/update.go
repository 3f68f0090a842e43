package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mverdier/echeancier/internal/timespec"
	"github.com/mverdier/echeancier/internal/transport"
	"github.com/mverdier/echeancier/pkg/echeance"
)

var (
	updateNom         string
	updateStatut      string
	updateUrgence     string
	updateProgression int
	updateDue         string
	updateResponsable string
)

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Apply a partial update to an échéance",
	Long: `Apply a partial update: only the flags you pass are sent, everything
else keeps its stored value.

Statut changes must follow the lifecycle:
  PENDING → IN_PROGRESS → UNDER_REVIEW → COMPLETED
with CANCELLED reachable from any non-terminal statut. Completing an
échéance requires progression 100.

Examples:
  echeancier update a1b2c3 --statut IN_PROGRESS --progression 30
  echeancier update a1b2c3 --due 2026-05-15T18:00:00Z`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().StringVar(&updateNom, "nom", "", "New name")
	updateCmd.Flags().StringVar(&updateStatut, "statut", "", "New statut")
	updateCmd.Flags().StringVar(&updateUrgence, "urgence", "", "New urgency level")
	updateCmd.Flags().IntVar(&updateProgression, "progression", 0, "New progression (0-100)")
	updateCmd.Flags().StringVar(&updateDue, "due", "", "New due date (duration or RFC3339)")
	updateCmd.Flags().StringVar(&updateResponsable, "responsable", "", "New responsable id")
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	id := args[0]

	var patch transport.UpdateRequest
	changed := false

	if cmd.Flags().Changed("nom") {
		patch.Nom = &updateNom
		changed = true
	}
	if cmd.Flags().Changed("statut") {
		statut := echeance.Statut(updateStatut)
		if err := statut.Validate(); err != nil {
			return err
		}
		patch.Statut = &statut
		changed = true
	}
	if cmd.Flags().Changed("urgence") {
		urgence := echeance.Urgence(updateUrgence)
		if err := urgence.Validate(); err != nil {
			return err
		}
		patch.Urgence = &urgence
		changed = true
	}
	if cmd.Flags().Changed("progression") {
		patch.Progression = &updateProgression
		changed = true
	}
	if cmd.Flags().Changed("due") {
		due, err := timespec.Parse(updateDue)
		if err != nil {
			return fmt.Errorf("invalid --due: %w", err)
		}
		patch.DateEcheance = &due
		changed = true
	}
	if cmd.Flags().Changed("responsable") {
		patch.ResponsableID = &updateResponsable
		changed = true
	}

	if !changed {
		return fmt.Errorf("nothing to update: pass at least one field flag")
	}

	st, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer st.close()

	if _, err := st.tracker.Update(ctx, id, patch); err != nil {
		return err
	}
	return nil
}
