package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/scripthost/boundary"
	"github.com/wippyai/scripthost/watch"
)

func newWatchCommand(st *cliState) *cobra.Command {
	var (
		contextName string
		funcName    string
		args        []string
	)

	cmd := &cobra.Command{
		Use:   "watch [file.wasm]...",
		Short: "Keep modules loaded and reload them when their files change",
		Long: `Load the given modules into one context and watch their files. When a
file is rewritten the whole context is unloaded, collected and loaded again
under the same name. Modules in other contexts that reference it follow the
new version.

With --func the export is called once after the initial load and again
after every reload.

Examples:
  scripthost watch player.wasm --func whoami`,
		RunE: func(cmd *cobra.Command, files []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, st.cfg, contextName, files, nil)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			out := cmd.OutOrStdout()
			probe := func() {
				if funcName == "" {
					return
				}
				if err := callAndPrint(ctx, s, out, funcName, args); err != nil {
					fmt.Fprintln(out, failureStyle.Render("Error: "+err.Error()))
				}
			}

			w, err := watch.NewWatcher(s.rt, s.contextID(), s.files, watch.Options{
				Debounce: st.cfg.Watch.Debounce,
				OnReload: func(id boundary.ContextID, changed []string, err error) {
					if id != 0 {
						s.setContextID(id)
					}
					if err != nil {
						s.log.Error("reload failed", zap.Strings("files", changed), zap.Error(err))
						return
					}
					s.log.Info("context reloaded", zap.Strings("files", changed), zap.Stringer("context", id))
					probe()
				},
			})
			if err != nil {
				return err
			}
			if err := w.Start(); err != nil {
				return err
			}

			fmt.Fprintf(out, "%s watching %d file(s), press Ctrl+C to stop\n", moduleStyle.Render("scripthost"), len(s.files))
			probe()

			waitForSignal(ctx)

			if err := w.Stop(); err != nil {
				return fmt.Errorf("stop watcher: %w", err)
			}
			fmt.Fprintf(out, "stopped after %d reload(s)\n", w.Reloads())
			return nil
		},
	}

	cmd.Flags().StringVar(&contextName, "context", "", "context name (default from config)")
	cmd.Flags().StringVar(&funcName, "func", "", "export to call after each load, optionally module.export")
	cmd.Flags().StringArrayVar(&args, "arg", nil, "argument, repeat once per parameter")
	return cmd
}

func callAndPrint(ctx context.Context, s *session, out io.Writer, function string, args []string) error {
	m, fn, err := s.find(function)
	if err != nil {
		return err
	}
	res, err := s.call(ctx, m, fn, args)
	if err != nil {
		return fmt.Errorf("call %s.%s: %w", m.Name, fn, err)
	}
	fmt.Fprintf(out, "%s.%s = %s\n", m.Name, fn, valueStyle.Render(formatResults(res)))
	return nil
}

func waitForSignal(ctx context.Context) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
	case <-ctx.Done():
	}
}
