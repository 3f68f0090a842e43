package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mverdier/echeancier/internal/config"
	"github.com/mverdier/echeancier/internal/printer"
	"github.com/mverdier/echeancier/pkg/echeance"
)

var watchOutputFormat string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream deadline activity in real time",
	Long: `Stream échéance activity as it happens: creations, updates, deletions
and the periodic approaching/overdue deadline alerts.

Requires a realtime channel (redis, sse or websocket) in echeancier.yml.

Output Formats:
  default - Human-readable output with timestamps
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Watch all activity
  echeancier watch

  # Export events as JSON
  echeancier watch --output=json > events.jsonl`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchOutputFormat != "default" && watchOutputFormat != "json" {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer st.close()

	if st.cfg.Realtime.Mode == config.RealtimeNone {
		return printer.Error(
			"no realtime channel configured",
			"watch needs push events, but realtime.mode is 'none'.",
			[]string{"Set realtime.mode to 'redis', 'sse' or 'websocket' in echeancier.yml"},
		)
	}

	// Prime the cache so the deadline scans have something to chew on.
	st.tracker.Load(ctx, nil)

	unsubscribe := st.service.Subscribe(func(ev echeance.Event) {
		printWatchEvent(ev)
	})
	defer unsubscribe()

	printer.Info("Watching instance '%s' (Ctrl+C to stop)...\n", st.cfg.Instance)
	return st.service.Run(ctx)
}

func printWatchEvent(ev echeance.Event) {
	if watchOutputFormat == "json" {
		data, err := json.Marshal(ev)
		if err != nil {
			return
		}
		fmt.Println(string(data))
		return
	}

	ts := ev.At.Format(time.TimeOnly)
	nom := ev.EcheanceID
	if ev.Echeance != nil {
		nom = ev.Echeance.Nom
	}

	switch ev.Type {
	case echeance.EventCreated:
		printer.Success("%s créée: %s\n", ts, nom)
	case echeance.EventUpdated:
		printer.Info("%s mise à jour: %s\n", ts, nom)
	case echeance.EventDeleted:
		printer.Info("%s supprimée: %s\n", ts, nom)
	case echeance.EventApproaching:
		printer.Warning("%s %s arrive à échéance dans %d jour(s)\n", ts, nom, ev.JoursRestants)
	case echeance.EventOverdue:
		printer.Urgent("%s %s en retard de %d jour(s)\n", ts, nom, ev.JoursRetard)
	}
}
