package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mverdier/echeancier/internal/printer"
	"github.com/mverdier/echeancier/pkg/echeance"
)

var getJSON bool

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one échéance in detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func init() {
	getCmd.Flags().BoolVar(&getJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	id := args[0]

	st, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer st.close()

	e := st.service.Get(ctx, id)
	if e == nil {
		return printer.Error(
			"échéance not found",
			fmt.Sprintf("No échéance with id '%s' exists.", id),
			[]string{"List known échéances:\n  echeancier list"},
		)
	}

	if getJSON {
		data, err := json.MarshalIndent(e, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal échéance: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	printEcheance(e, time.Now())
	return nil
}

func printEcheance(e *echeance.Echeance, now time.Time) {
	fmt.Printf("%s\n", e.Nom)
	if e.Description != "" {
		fmt.Printf("%s\n", e.Description)
	}
	fmt.Println()
	fmt.Printf("  ID:          %s\n", e.ID)
	fmt.Printf("  Client:      %s (%s)\n", e.ClientNom, e.ClientID)
	fmt.Printf("  Type:        %s\n", e.Type)
	fmt.Printf("  Statut:      %s\n", e.StatutAffiche(now))
	fmt.Printf("  Urgence:     %s\n", e.Urgence)
	fmt.Printf("  Forfait:     %s\n", e.Forfait)
	fmt.Printf("  Echéance:    %s\n", e.DateEcheance.Format("2006-01-02 15:04"))
	fmt.Printf("  Progression: %d%%\n", e.Progression)
	if e.ResponsableID != "" {
		fmt.Printf("  Responsable: %s\n", e.ResponsableID)
	}
	if len(e.Tags) > 0 {
		fmt.Printf("  Tags:        %v\n", e.Tags)
	}

	if e.EnRetard(now) {
		printer.Urgent("En retard de %d jour(s)\n", e.JoursRetard(now))
	} else if !e.Statut.Terminal() {
		fmt.Printf("  Jours restants: %d\n", e.JoursRestants(now))
	}

	if len(e.Etapes) > 0 {
		fmt.Println()
		fmt.Println("  Etapes:")
		for _, et := range e.Etapes {
			mark := " "
			if et.Statut == echeance.StatutCompleted {
				mark = "x"
			}
			fmt.Printf("    [%s] %s\n", mark, et.Nom)
		}
	}
}
