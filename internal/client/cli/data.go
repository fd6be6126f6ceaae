package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/offlinesync/internal/client/models"
	"github.com/dmitrijs2005/offlinesync/internal/client/services"
	"github.com/spf13/cobra"
)

func newPreloadCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preload",
		Short: "Manage cached data sets",
	}
	cmd.AddCommand(
		newPreloadAddCmd(a),
		&cobra.Command{
			Use:   "sync <id>",
			Short: "Fetch a data set again",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.engine.SyncPreload(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Print the cached content of a data set",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := a.engine.GetPreload(cmd.Context(), args[0])
				if err != nil || p == nil {
					return err
				}
				if len(p.Response) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "null")
					return nil
				}
				var v any
				if err := json.Unmarshal(p.Response, &v); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), v)
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List registered data sets",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ps, err := a.engine.ListPreloads(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tOBJECT\tLAST SYNC")
				for _, p := range ps {
					last := "never"
					if p.LastSyncAt != nil {
						last = p.LastSyncAt.Local().Format(time.DateTime)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.ObjectAlias, last)
				}
				return tw.Flush()
			},
		},
		newPreloadMergeCmd(a),
		newPreloadResetCmd(a),
	)
	return cmd
}

func newPreloadAddCmd(a *App) *cobra.Command {
	var (
		p    models.Preload
		sync bool
	)
	cmd := &cobra.Command{
		Use:   "add <object>",
		Short: "Register a data set for offline use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p.ObjectAlias = args[0]
			if err := a.engine.AddPreload(cmd.Context(), &p); err != nil {
				return err
			}
			if sync {
				return a.engine.SyncPreload(cmd.Context(), p.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&p.ID, "id", "", "data set id, defaults to the object alias")
	cmd.Flags().StringVar(&p.Page, "page", "", "page scope")
	cmd.Flags().StringVar(&p.Widget, "widget", "", "widget scope")
	cmd.Flags().StringSliceVar(&p.DataColumns, "columns", nil, "columns to fetch")
	cmd.Flags().StringSliceVar(&p.ImageColumns, "image-columns", nil, "columns holding image urls to prefetch")
	cmd.Flags().BoolVar(&sync, "sync", false, "fetch the data set right away")
	return cmd
}

func newPreloadMergeCmd(a *App) *cobra.Command {
	var keyColumn, rows string
	cmd := &cobra.Command{
		Use:   "merge <id>",
		Short: "Merge rows into a cached data set by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rs []map[string]any
			if err := json.Unmarshal([]byte(rows), &rs); err != nil {
				return fmt.Errorf("rows must be a JSON array of objects: %w", err)
			}
			return a.engine.MergeRows(cmd.Context(), args[0], keyColumn, rs)
		},
	}
	cmd.Flags().StringVar(&keyColumn, "key-column", "id", "column that identifies a row")
	cmd.Flags().StringVar(&rows, "rows", "[]", "JSON array of rows")
	return cmd
}

func newPreloadResetCmd(a *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget every cached data set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				ok, err := Confirm(bufio.NewReader(cmd.InOrStdin()), "Drop all cached data sets?", cmd.OutOrStdout())
				if err != nil || !ok {
					return err
				}
			}
			return a.engine.ResetPreloads(cmd.Context())
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newFetchCmd(a *App) *cobra.Command {
	var head bool
	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "GET a url through the request cache",
		Long: `GET a url. While the server is online the network answers and the
response is cached; otherwise a cached response is served. A miss with no
network answers 503.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.engine.CheckConnectivity(cmd.Context())

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, args[0], nil)
			if err != nil {
				return err
			}
			resp, err := a.engine.Transport().RoundTrip(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			fmt.Fprintln(cmd.OutOrStdout(), resp.Status)
			if head {
				return nil
			}
			_, err = io.Copy(cmd.OutOrStdout(), resp.Body)
			return err
		},
	}
	cmd.Flags().BoolVar(&head, "status-only", false, "print the status line only")
	return cmd
}

func newAssetsCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "assets <url...>",
		Short: "Prefetch images for offline use",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.engine.SyncImages(cmd.Context(), args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d asset(s) stored\n", n, len(args))
			return nil
		},
	}
}

func newDeviceCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "device",
		Short: "Print the device identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.engine.DeviceID(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func newStatusCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity and queue counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			level := a.engine.CheckConnectivity(ctx)

			counts := map[models.Status]int{}
			rows, err := a.engine.List(ctx, services.ListFilter{})
			if err != nil {
				return err
			}
			for _, r := range rows {
				counts[r.Status]++
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "mode:         %s\n", a.engine.Mode())
			fmt.Fprintf(w, "connectivity: %s\n", level)
			for _, st := range []models.Status{models.StatusOffline, models.StatusProcessing, models.StatusSynced, models.StatusError} {
				fmt.Fprintf(w, "%-13s %d\n", string(st)+":", counts[st])
			}
			return nil
		},
	}
}

func newWatchCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch connectivity and sync whenever the server is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.engine.Run(cmd.Context())
			return nil
		},
	}
}
