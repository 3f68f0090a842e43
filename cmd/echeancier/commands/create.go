package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mverdier/echeancier/internal/printer"
	"github.com/mverdier/echeancier/internal/timespec"
	"github.com/mverdier/echeancier/internal/transport"
	"github.com/mverdier/echeancier/pkg/echeance"
)

var (
	createNom         string
	createDescription string
	createClientID    string
	createClientNom   string
	createType        string
	createUrgence     string
	createForfait     string
	createDue         string
	createResponsable string
	createTags        []string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new échéance",
	Long: `Create a new échéance on the backend.

The server assigns the id and the creation date; statut starts as PENDING.

Examples:
  echeancier create --nom "TVA mars" --client-id c42 --client-nom "SARL Martin" \
    --type TVA --due 2026-04-30T23:59:00Z

  # Due in three weeks, flagged urgent
  echeancier create --nom "Bilan 2025" --client-id c7 --client-nom "SAS Dupont" \
    --type BILAN --due 504h --urgence URGENT`,
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createNom, "nom", "", "Name of the échéance (required)")
	createCmd.Flags().StringVar(&createDescription, "description", "", "Free-form description")
	createCmd.Flags().StringVar(&createClientID, "client-id", "", "Client identifier (required)")
	createCmd.Flags().StringVar(&createClientNom, "client-nom", "", "Client display name (required)")
	createCmd.Flags().StringVar(&createType, "type", "", "Obligation type (required)")
	createCmd.Flags().StringVar(&createUrgence, "urgence", "", "Urgency level (default MEDIUM)")
	createCmd.Flags().StringVar(&createForfait, "forfait", "", "IN (covered by retainer) or OUT (billed separately)")
	createCmd.Flags().StringVar(&createDue, "due", "", "Due date (duration like '72h' or RFC3339) (required)")
	createCmd.Flags().StringVar(&createResponsable, "responsable", "", "Responsable id")
	createCmd.Flags().StringSliceVar(&createTags, "tag", nil, "Tags")

	_ = createCmd.MarkFlagRequired("nom")
	_ = createCmd.MarkFlagRequired("client-id")
	_ = createCmd.MarkFlagRequired("client-nom")
	_ = createCmd.MarkFlagRequired("type")
	_ = createCmd.MarkFlagRequired("due")

	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	typ := echeance.TypeEcheance(createType)
	if err := typ.Validate(); err != nil {
		return err
	}

	due, err := timespec.Parse(createDue)
	if err != nil {
		return fmt.Errorf("invalid --due: %w", err)
	}

	req := transport.CreateRequest{
		Nom:           createNom,
		Description:   createDescription,
		ClientID:      createClientID,
		ClientNom:     createClientNom,
		Type:          typ,
		DateEcheance:  due,
		ResponsableID: createResponsable,
		Tags:          createTags,
	}

	if createUrgence != "" {
		urgence := echeance.Urgence(createUrgence)
		if err := urgence.Validate(); err != nil {
			return err
		}
		req.Urgence = urgence
	}
	if createForfait != "" {
		forfait := echeance.Forfait(createForfait)
		if err := forfait.Validate(); err != nil {
			return err
		}
		req.Forfait = forfait
	}

	st, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer st.close()

	created, err := st.tracker.Create(ctx, req)
	if err != nil {
		// Already reported by the tracker; exit non-zero without repeating.
		return err
	}

	printer.Info("ID: %s\n", created.ID)
	return nil
}
