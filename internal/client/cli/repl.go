package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

// execFunc runs one shell line split into fields.
type execFunc func(ctx context.Context, args []string) error

// runREPL reads commands line by line and hands them to exec until EOF or
// "exit". Errors are printed and do not end the session. Commands share
// reader, so prompts they show read the lines that follow.
//
//	help           list commands
//	exit | quit    leave the shell
//	anything else  an offlinesync command line, e.g. "list --status error"
func runREPL(ctx context.Context, exec execFunc, statusFn func() string, reader *bufio.Reader, out io.Writer, prompt bool) {
	for {
		if prompt {
			fmt.Fprintf(out, "osync %s> ", statusFn())
		}
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return
		case "shell", "watch":
			fmt.Fprintln(out, "Already watching")
			continue
		}

		if err := exec(ctx, parts); err != nil {
			fmt.Fprintln(out, "Error:", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func newShellCmd(a *App) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Run commands interactively against one open store",
		Long: `Start an interactive session. The connectivity watcher runs in the
background, so queued actions are sent as soon as the server is reachable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.interactive = true
			defer func() { a.interactive = false }()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			done := make(chan struct{})
			if watch {
				go func() {
					defer close(done)
					a.engine.Run(ctx)
				}()
			} else {
				close(done)
			}

			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()
			prompt := false
			if f, ok := cmd.InOrStdin().(*os.File); ok {
				prompt = isTerminal(int(f.Fd()))
			}
			if prompt {
				fmt.Fprintln(out, "offlinesync shell (type 'help' for commands)")
			}

			exec := func(ctx context.Context, line []string) error {
				sub := newRootCmd(a)
				sub.SetArgs(line)
				sub.SetIn(in)
				sub.SetOut(out)
				sub.SetErr(out)
				sub.SilenceErrors = true
				return sub.ExecuteContext(ctx)
			}

			runREPL(ctx, exec, a.status, in, out, prompt)
			cancel()
			<-done
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", true, "sync in the background whenever the server is reachable")
	return cmd
}
