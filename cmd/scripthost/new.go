package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wippyai/scripthost/image"
)

func newNewCommand() *cobra.Command {
	var (
		name  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "new <out.wasm>",
		Short: "Write a starter module image",
		Long: `Write a small module exporting add, scale, greet, whoami, hello, report
and fail, with WIT signatures and an allocator. The module name defaults to
the file name without extension.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := args[0]
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(out), filepath.Ext(out))
			}
			if !force {
				if _, err := os.Stat(out); err == nil {
					return fmt.Errorf("%s already exists, use --force to overwrite", out)
				}
			}
			if err := os.WriteFile(out, image.Starter(name), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created module %s at %s\n", name, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "module name")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
