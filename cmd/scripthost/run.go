package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRunCommand(st *cliState) *cobra.Command {
	var (
		contextName string
		funcName    string
		args        []string
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "run [file.wasm]...",
		Short: "Load modules into a context and call an export",
		Long: `Load the given modules (or the modules listed in the config) into one
context, then call an export on a fresh object.

--func takes an export name or module.export. Without --func the loaded
modules and their exports are listed.

Examples:
  scripthost run player.wasm --func add --arg 2 --arg 3
  scripthost run lib.wasm app.wasm --func app.quadruple --arg 5
  scripthost run player.wasm -i`,
		RunE: func(cmd *cobra.Command, files []string) error {
			ctx := cmd.Context()
			if interactive {
				if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
					return fmt.Errorf("interactive mode needs a terminal")
				}
				return runInteractive(ctx, st.cfg, contextName, files)
			}

			s, err := openSession(ctx, st.cfg, contextName, files, nil)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			out := cmd.OutOrStdout()
			if funcName == "" {
				return listExports(s, out)
			}

			m, fn, err := s.find(funcName)
			if err != nil {
				return err
			}
			res, err := s.call(ctx, m, fn, args)
			if err != nil {
				return fmt.Errorf("call %s.%s: %w", m.Name, fn, err)
			}
			fmt.Fprintln(out, formatResults(res))
			return nil
		},
	}

	cmd.Flags().StringVar(&contextName, "context", "", "context name (default from config)")
	cmd.Flags().StringVar(&funcName, "func", "", "export to call, optionally module.export")
	cmd.Flags().StringArrayVar(&args, "arg", nil, "argument, repeat once per parameter")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "interactive mode with TUI")
	return cmd
}
