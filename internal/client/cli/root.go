package cli

import (
	"context"

	"github.com/dmitrijs2005/offlinesync/internal/client/config"
	"github.com/spf13/cobra"
)

// Execute runs the command line in os.Args.
func Execute(ctx context.Context) error {
	a := &App{}
	defer a.Close()
	return newRootCmd(a).ExecuteContext(ctx)
}

func newRootCmd(a *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "offlinesync",
		Short: "Offline-first action queue and data cache",
		Long: `offlinesync queues state-changing requests while the server is
unreachable, replays them in order once it is back, and keeps cached data
sets and request responses available offline.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipsEngine(cmd) {
				return nil
			}
			fresh := a.engine == nil
			if err := a.open(cmd.Context(), cmd.Flags()); err != nil {
				return err
			}
			if fresh {
				a.warnDisabled(cmd.ErrOrStderr())
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.release()
		},
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newEnqueueCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newEffectsCmd(a),
		newSyncCmd(a),
		newRequeueCmd(a),
		newDeleteCmd(a),
		newPreloadCmd(a),
		newFetchCmd(a),
		newAssetsCmd(a),
		newDeviceCmd(a),
		newStatusCmd(a),
		newWatchCmd(a),
		newShellCmd(a),
	)
	return root
}

// skipsEngine reports cobra's built-in commands, which need no store.
func skipsEngine(cmd *cobra.Command) bool {
	if cmd.Name() == "help" {
		return true
	}
	return cmd.HasParent() && cmd.Parent().Name() == "completion"
}
