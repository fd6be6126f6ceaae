package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/offlinesync/internal/client/models"
	"github.com/dmitrijs2005/offlinesync/internal/client/services"
	"github.com/spf13/cobra"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newEnqueueCmd(a *App) *cobra.Command {
	var (
		url, method, object, action, data string
		keyColumn                         string
		keys                              []string
	)
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue a state-changing request for later delivery",
		Long: `Queue a request. The payload given with --data is merged with the
action name and the assignment time. Use --data - to type a multi-line payload.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if data == "-" {
				var err error
				data, err = GetMultiline(bufio.NewReader(cmd.InOrStdin()), "Payload (JSON object)", cmd.OutOrStdout())
				if err != nil {
					return err
				}
			}
			payload := map[string]any{}
			if strings.TrimSpace(data) != "" {
				if err := json.Unmarshal([]byte(data), &payload); err != nil {
					return fmt.Errorf("payload must be a JSON object: %w", err)
				}
			}

			env, err := models.NewEnvelope(url, method, action, payload, time.Now())
			if err != nil {
				return err
			}

			var effects []models.Effect
			if keyColumn != "" {
				effects = []models.Effect{{
					Name:                action,
					EffectedObjectAlias: object,
					KeyColumn:           keyColumn,
					KeyValues:           keys,
				}}
			}

			id, err := a.engine.Enqueue(cmd.Context(), env, object, action, effects)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "request url, absolute or relative to the server")
	cmd.Flags().StringVar(&method, "method", http.MethodPost, "request method")
	cmd.Flags().StringVar(&object, "object", "", "alias of the object the action changes")
	cmd.Flags().StringVar(&action, "action", "", "action name")
	cmd.Flags().StringVar(&data, "data", "", "JSON payload, - to read it from stdin")
	cmd.Flags().StringVar(&keyColumn, "key-column", "", "key column of the rows the action changes")
	cmd.Flags().StringSliceVar(&keys, "keys", nil, "key values of the rows the action changes")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("object")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}

func newListCmd(a *App) *cobra.Command {
	var (
		status, object string
		asJSON         bool
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"l"},
		Short:   "List queued actions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := models.Status(status)
			if st != "" && !st.Valid() {
				return fmt.Errorf("unknown status %q", status)
			}

			rows, err := a.engine.List(cmd.Context(), services.ListFilter{Status: st, ObjectAlias: object})
			if err != nil {
				return err
			}
			views := make([]models.ActionQueueView, 0, len(rows))
			for _, r := range rows {
				views = append(views, r.View())
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), views)
			}
			if len(views) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No actions")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tOBJECT\tACTION\tSTATUS\tTRIES\tTRIGGERED")
			for _, v := range views {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", v.ID, v.ObjectAlias, v.ActionAlias, v.Status, v.Tries, v.TriggeredAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "offline, processing, synced or error")
	cmd.Flags().StringVar(&object, "object", "", "only actions on this object alias")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newShowCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one queued action without its request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			act, err := a.engine.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if act == nil {
				return nil
			}
			return printJSON(cmd.OutOrStdout(), act.View())
		},
	}
}

func newEffectsCmd(a *App) *cobra.Command {
	var keyColumn string
	cmd := &cobra.Command{
		Use:   "effects <object>",
		Short: "Show pending effects on an object, or its dirty keys with --key-column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if keyColumn != "" {
				keys, err := a.engine.DirtyKeys(cmd.Context(), args[0], keyColumn)
				if err != nil {
					return err
				}
				for _, k := range keys {
					fmt.Fprintln(cmd.OutOrStdout(), k)
				}
				return nil
			}

			effects, err := a.engine.GetEffects(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ACTION\tNAME\tKEY\tVALUES")
			for _, e := range effects {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ActionID, e.Name, e.KeyColumn, strings.Join(e.KeyValues, ","))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&keyColumn, "key-column", "", "print the dirty key values of this column")
	return cmd
}

func newSyncCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sync [id...]",
		Short: "Send queued actions to the server",
		Long: `Send the given actions in order, or every offline action when no id is
given. The batch stops at the first action that fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var err error
			if len(args) == 0 {
				err = a.engine.SyncOffline(ctx)
			} else {
				err = a.engine.SyncMany(ctx, args)
			}

			var batch *services.BatchError
			if errors.As(err, &batch) {
				fmt.Fprintf(cmd.OutOrStdout(), "Sync stopped at %s, %d action(s) not attempted\n", batch.StoppedAt, len(batch.Remaining))
			}

			left, lerr := a.engine.List(ctx, services.ListFilter{Status: models.StatusOffline})
			if lerr != nil {
				return lerr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d action(s) still offline\n", len(left))
			return err
		},
	}
}

func newRequeueCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <id>",
		Short: "Move a rejected action back to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.engine.Requeue(cmd.Context(), args[0])
		},
	}
}

func newDeleteCmd(a *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id...>",
		Short: "Drop queued actions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				ok, err := Confirm(bufio.NewReader(cmd.InOrStdin()), fmt.Sprintf("Delete %d action(s)?", len(args)), cmd.OutOrStdout())
				if err != nil || !ok {
					return err
				}
			}
			return a.engine.DeleteAll(cmd.Context(), args)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
