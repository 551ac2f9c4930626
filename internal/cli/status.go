package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YounesEssl/molyscan-sync/offsync"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	DBPath string
	Purge  bool
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Inspect a local offline queue database",
		Long: `Print the pending and quarantined items of a device's offline queue
database, optionally purging rows that were already delivered.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "path to the queue database (overrides config)")
	cmd.Flags().BoolVar(&opts.Purge, "purge-delivered", false, "delete delivered rows before reporting")
	return cmd
}

func runStatus(cmd *cobra.Command, opts *StatusOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	dbPath := cfg.DBPath
	if opts.DBPath != "" {
		dbPath = opts.DBPath
	}

	store, err := offsync.OpenStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if opts.Purge {
		purged, err := store.PurgeDelivered(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "purged %d delivered row(s)\n", purged)
	}

	scans, actions, err := store.ListUndelivered(ctx)
	if err != nil {
		return err
	}
	qScans, qActions, err := store.ListQuarantined(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "pending: %d scan(s), %d action(s)\n", len(scans), len(actions))
	for _, scan := range scans {
		fmt.Fprintf(out, "  scan   %s  barcode=%s  created=%s  attempts=%d\n",
			scan.ID, scan.Barcode, scan.CreatedAt.Format("2006-01-02 15:04:05"), scan.Attempts)
	}
	for _, action := range actions {
		fmt.Fprintf(out, "  action %s  type=%s  created=%s  attempts=%d\n",
			action.ID, action.Type, action.CreatedAt.Format("2006-01-02 15:04:05"), action.Attempts)
	}
	if len(qScans)+len(qActions) > 0 {
		fmt.Fprintf(out, "quarantined: %d scan(s), %d action(s)\n", len(qScans), len(qActions))
		for _, scan := range qScans {
			fmt.Fprintf(out, "  scan   %s  barcode=%s  attempts=%d\n", scan.ID, scan.Barcode, scan.Attempts)
		}
		for _, action := range qActions {
			fmt.Fprintf(out, "  action %s  type=%s  attempts=%d\n", action.ID, action.Type, action.Attempts)
		}
	}
	return nil
}
