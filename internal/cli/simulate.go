package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/YounesEssl/molyscan-sync/internal/simulator"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	ServerURL string
	WorkDir   string
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the offline/online device scenario against a server",
		Long: `Simulate one field device: capture scans and a price action while
offline, flip back online, let the automatic sync run drain the queue and
verify the server ended up with every record.

Example:
  molysync serve &
  molysync simulate --server http://localhost:8080`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts)
		},
	}

	cmd.Flags().StringVar(&opts.ServerURL, "server", "", "API server URL (overrides config)")
	cmd.Flags().StringVar(&opts.WorkDir, "work-dir", "", "directory for the device database (default: temp dir)")
	return cmd
}

func runSimulate(opts *SimulateOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.ServerURL != "" {
		cfg.ServerURL = opts.ServerURL
	}

	workDir := opts.WorkDir
	if workDir == "" {
		workDir, err = os.MkdirTemp("", "molysync-sim-")
		if err != nil {
			return fmt.Errorf("failed to create work dir: %w", err)
		}
		defer os.RemoveAll(workDir)
	}

	ctx := context.Background()
	sim, err := simulator.New(ctx, cfg, workDir)
	if err != nil {
		return err
	}
	defer sim.Close()

	return sim.RunOfflineOnline(ctx)
}
