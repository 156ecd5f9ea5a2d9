package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wippyai/scripthost/metadata"
)

func newInspectCommand(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.wasm>",
		Short: "List the descriptors of a module",
		Long: `Load a module into a scratch context and print its type, method and
attribute descriptors together with the modules it references.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, files []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, st.cfg, "inspect", files, nil)
			if err != nil {
				return err
			}
			defer s.close(ctx)
			return inspect(ctx, s, cmd.OutOrStdout())
		},
	}
}

func inspect(_ context.Context, s *session, out io.Writer) error {
	m, err := s.rt.Module(s.modules[0])
	if err != nil {
		return err
	}
	ids, err := s.rt.Descriptors(m.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s %s\n", moduleStyle.Render(m.Name), m.Source)
	if len(m.Imports) > 0 {
		fmt.Fprintf(out, "references: %s\n", strings.Join(m.Imports, ", "))
	}
	fmt.Fprintln(out)

	for _, id := range ids {
		d, err := s.rt.Resolve(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %4d  %s\n", id, describe(d))
	}
	return nil
}

func describe(d metadata.Descriptor) string {
	line := kindLabel(d.Kind) + " " + exportStyle.Render(d.QualifiedName())
	if d.Signature != "" {
		line += ": " + d.Signature
	}
	return line
}

func listExports(s *session, out io.Writer) error {
	mods, err := s.loaded()
	if err != nil {
		return err
	}
	for _, m := range mods {
		fmt.Fprintf(out, "%s %s\n", moduleStyle.Render(m.Name), m.Source)
		for _, f := range exportsOf(m) {
			fmt.Fprintf(out, "  %s\n", f.signature())
		}
	}
	return nil
}
